// Package lookup is the serving layer in front of the resolver: a Redis
// read-through cache for local hits and a shared budget for live FAA lookups.
package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/RIDBox/internal/broker/messages"
	"github.com/BearBump/RIDBox/internal/cache"
	"github.com/BearBump/RIDBox/internal/models"
	"github.com/BearBump/RIDBox/internal/services/resolver"
	"github.com/pkg/errors"
)

type Resolver interface {
	Resolve(ctx context.Context, serial string, opts resolver.Options) (models.LookupResult, error)
}

type StatsSource interface {
	Stats(ctx context.Context) (models.StoreStats, error)
}

type Service struct {
	res   Resolver
	stats StatsSource

	cache cache.BytesCache
	ttl   time.Duration

	rl                cache.RateLimiter
	fallbackPerMinute int64

	now func() time.Time
}

func New(res Resolver, stats StatsSource, c cache.BytesCache, ttl time.Duration) *Service {
	return &Service{
		res:   res,
		stats: stats,
		cache: c,
		ttl:   ttl,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithFallbackLimit caps live FAA lookups across all API replicas.
func (s *Service) WithFallbackLimit(rl cache.RateLimiter, perMinute int64) *Service {
	s.rl = rl
	s.fallbackPerMinute = perMinute
	return s
}

func (s *Service) Lookup(ctx context.Context, serial string, opts resolver.Options) (models.LookupResult, error) {
	serial = strings.TrimSpace(serial)
	if opts.CacheRemoteResult && !opts.AllowRemoteFallback {
		return models.LookupResult{}, fmt.Errorf("%w: cache requires api", models.ErrInvalidArgument)
	}
	if serial == "" {
		return models.NotFound(serial), nil
	}

	if res, ok := s.cached(ctx, serial); ok {
		return res, nil
	}

	if opts.AllowRemoteFallback && !s.allowFallback(ctx) {
		opts = resolver.Options{}
	}

	res, err := s.res.Resolve(ctx, serial, opts)
	if err != nil {
		return res, err
	}

	// в кэш только локальные попадания: ответ api не должен утечь в запрос без api
	if res.Found && res.Source == models.SourceLocal && s.cacheEnabled() {
		if b, err := json.Marshal(res); err == nil {
			if err := s.cache.Set(ctx, serialKey(serial), b, s.ttl); err != nil {
				slog.Warn("cache set failed", "serial", serial, "error", err.Error())
			}
		}
	}
	return res, nil
}

func (s *Service) Stats(ctx context.Context) (models.StoreStats, error) {
	st, err := s.stats.Stats(ctx)
	if err != nil {
		return st, fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
	}
	return st, nil
}

// ApplySyncedEvent drops cached answers for exact serials the sync touched.
// Range changes cannot be mapped to cache keys and age out with the TTL.
func (s *Service) ApplySyncedEvent(ctx context.Context, msg messages.SerialsSynced) error {
	if msg.RunID == "" {
		return errors.New("run_id is required")
	}
	if !s.cacheEnabled() || len(msg.ExactSerials) == 0 {
		return nil
	}
	keys := make([]string, 0, len(msg.ExactSerials))
	for _, sn := range msg.ExactSerials {
		keys = append(keys, serialKey(sn))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		return err
	}
	slog.Info("lookup cache invalidated", "run_id", msg.RunID, "keys", len(keys))
	return nil
}

func (s *Service) cached(ctx context.Context, serial string) (models.LookupResult, bool) {
	if !s.cacheEnabled() {
		return models.LookupResult{}, false
	}
	b, ok, err := s.cache.Get(ctx, serialKey(serial))
	if err != nil {
		slog.Warn("cache get failed", "serial", serial, "error", err.Error())
		return models.LookupResult{}, false
	}
	if !ok {
		return models.LookupResult{}, false
	}
	var res models.LookupResult
	if json.Unmarshal(b, &res) != nil {
		return models.LookupResult{}, false
	}
	return res, true
}

// allowFallback spends one unit of the per-minute budget. A Redis failure
// does not block the lookup.
func (s *Service) allowFallback(ctx context.Context) bool {
	if s.rl == nil || s.fallbackPerMinute <= 0 {
		return true
	}
	key := "rl:fallback:" + s.now().Format("200601021504")
	allowed, n, err := s.rl.Allow(ctx, key, s.fallbackPerMinute, 70*time.Second)
	if err != nil {
		slog.Warn("fallback rate limiter failed", "error", err.Error())
		return true
	}
	if !allowed {
		slog.Warn("fallback rate limit exceeded, answering from local store only", "count", n)
	}
	return allowed
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.ttl > 0
}

func serialKey(serial string) string {
	return "serial:" + serial
}
