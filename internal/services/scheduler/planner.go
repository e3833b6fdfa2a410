package scheduler

import (
	"math/rand"
	"time"
)

type Rand interface {
	Intn(n int) int
}

type PlannerConfig struct {
	Interval time.Duration // default: 1 hour
	Jitter   time.Duration // default: 0, added on top of Interval

	Backoff1 time.Duration // default: 5 minutes
	Backoff2 time.Duration // default: 15 minutes
	Backoff3 time.Duration // default: 30 minutes
	Backoff4 time.Duration // default: 60 minutes
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		Interval: time.Hour,

		Backoff1: 5 * time.Minute,
		Backoff2: 15 * time.Minute,
		Backoff3: 30 * time.Minute,
		Backoff4: 60 * time.Minute,
	}
}

// Planner decides when the next sync runs: the regular interval after a
// success, an escalating backoff after consecutive failures.
type Planner struct {
	cfg PlannerConfig
	r   Rand
}

func NewPlanner(cfg PlannerConfig, r Rand) *Planner {
	def := DefaultPlannerConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}
	if cfg.Backoff1 <= 0 {
		cfg.Backoff1 = def.Backoff1
	}
	if cfg.Backoff2 <= 0 {
		cfg.Backoff2 = def.Backoff2
	}
	if cfg.Backoff3 <= 0 {
		cfg.Backoff3 = def.Backoff3
	}
	if cfg.Backoff4 <= 0 {
		cfg.Backoff4 = def.Backoff4
	}
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Planner{cfg: cfg, r: r}
}

func (p *Planner) NextDelay(consecutiveFailures int) time.Duration {
	if consecutiveFailures > 0 {
		return p.BackoffDelay(consecutiveFailures)
	}
	d := p.cfg.Interval
	if sec := int(p.cfg.Jitter.Seconds()); sec > 0 {
		d += time.Duration(p.r.Intn(sec+1)) * time.Second
	}
	return d
}

func (p *Planner) BackoffDelay(failures int) time.Duration {
	var d time.Duration
	switch {
	case failures <= 1:
		d = p.cfg.Backoff1
	case failures == 2:
		d = p.cfg.Backoff2
	case failures == 3:
		d = p.cfg.Backoff3
	default:
		d = p.cfg.Backoff4
	}
	// бэкофф не дольше обычного интервала
	if d > p.cfg.Interval {
		d = p.cfg.Interval
	}
	return d
}
