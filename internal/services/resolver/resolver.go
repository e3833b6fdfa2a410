// Package resolver answers "who made this drone serial?" from the local
// store, with an optional live lookup against the FAA API.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/RIDBox/internal/integrations/faa"
	"github.com/BearBump/RIDBox/internal/models"
)

type Repository interface {
	GetExact(ctx context.Context, serial string) (*models.ExactSerialEntry, error)
	FindRange(ctx context.Context, serial string) (*models.SerialRangeEntry, error)
	UpsertExact(ctx context.Context, e *models.ExactSerialEntry) error
}

type RemoteLookup interface {
	FindBySerial(ctx context.Context, serial string) (*faa.SerialMatch, error)
}

type Options struct {
	AllowRemoteFallback bool
	CacheRemoteResult   bool
}

type Resolver struct {
	repo   Repository
	remote RemoteLookup
	now    func() time.Time
}

// New builds a Resolver. remote may be nil, then fallback always misses.
func New(repo Repository, remote RemoteLookup) *Resolver {
	return &Resolver{
		repo:   repo,
		remote: remote,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *Resolver) Resolve(ctx context.Context, serial string, opts Options) (models.LookupResult, error) {
	if opts.CacheRemoteResult && !opts.AllowRemoteFallback {
		return models.LookupResult{}, fmt.Errorf("%w: cacheRemoteResult requires allowRemoteFallback", models.ErrInvalidArgument)
	}
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return models.NotFound(serial), nil
	}

	e, err := r.repo.GetExact(ctx, serial)
	if err != nil {
		return models.LookupResult{}, fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
	}
	if e != nil && !e.Deleted {
		return models.ResultFromExact(e), nil
	}

	rng, err := r.repo.FindRange(ctx, serial)
	if err != nil {
		return models.LookupResult{}, fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
	}
	if rng != nil {
		return models.ResultFromRange(serial, rng), nil
	}

	if !opts.AllowRemoteFallback || r.remote == nil {
		return models.NotFound(serial), nil
	}
	return r.resolveRemote(ctx, serial, opts.CacheRemoteResult), nil
}

// resolveRemote never fails: an unreachable or empty answer is a miss.
func (r *Resolver) resolveRemote(ctx context.Context, serial string, cacheResult bool) models.LookupResult {
	m, err := r.remote.FindBySerial(ctx, serial)
	if err != nil {
		slog.Warn("remote serial lookup failed", "serial", serial, "error", err.Error())
		return models.NotFound(serial)
	}
	if m == nil {
		return models.NotFound(serial)
	}

	entry := &models.ExactSerialEntry{
		SerialNumber: serial,
		RIDTracking:  m.TrackingNumber,
		Description:  models.DescriptionRID,
		Status:       m.Status,
		Make:         m.MakeName,
		Model:        m.ModelName,
		MfrSerial:    models.StrPtr(serial),
		SyncedAt:     r.now(),
	}
	if m.UpdatedAt != "" {
		if t, err := faa.ParseTimestamp(m.UpdatedAt); err == nil {
			entry.FAAUpdatedAt = &t
		}
	}

	res := models.ResultFromExact(entry)
	res.Source = models.SourceAPI

	if cacheResult {
		// результат уже у клиента, ошибка записи только в лог
		if err := r.repo.UpsertExact(ctx, entry); err != nil {
			slog.Error("cache remote result failed", "serial", serial, "error", err.Error())
		}
	}
	return res
}
