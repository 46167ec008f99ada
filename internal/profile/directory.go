// Package profile resolves sender display metadata for chat messages.
package profile

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/CutzuDev/itec2025/internal/cache"
	"github.com/CutzuDev/itec2025/internal/domain"
	"github.com/CutzuDev/itec2025/internal/repository"
	"github.com/CutzuDev/itec2025/pkg/log"
)

// UnknownName is shown for senders whose profile cannot be found.
const UnknownName = "Unknown user"

// Directory looks up sender profiles. Lookups never fail: a sender that
// cannot be resolved gets a placeholder profile.
type Directory interface {
	Lookup(ctx context.Context, userID string) *domain.SenderProfile
	LookupMany(ctx context.Context, userIDs []string) map[string]*domain.SenderProfile
}

type directoryImpl struct {
	repo     repository.ProfileRepository
	cache    cache.ProfileCache
	cacheTTL time.Duration
	sf       singleflight.Group
}

// NewDirectory creates a Directory. profileCache may be nil.
func NewDirectory(repo repository.ProfileRepository, profileCache cache.ProfileCache, cacheTTL time.Duration) Directory {
	return &directoryImpl{
		repo:     repo,
		cache:    profileCache,
		cacheTTL: cacheTTL,
	}
}

func (d *directoryImpl) Lookup(ctx context.Context, userID string) *domain.SenderProfile {
	// Concurrent lookups of the same sender share one fetch
	result, _, _ := d.sf.Do(userID, func() (interface{}, error) {
		return d.fetch(ctx, userID), nil
	})
	p := *result.(*domain.SenderProfile)
	return &p
}

func (d *directoryImpl) LookupMany(ctx context.Context, userIDs []string) map[string]*domain.SenderProfile {
	out := make(map[string]*domain.SenderProfile, len(userIDs))
	var missing []string

	for _, id := range userIDs {
		if _, seen := out[id]; seen {
			continue
		}
		if p := d.fromCache(ctx, id); p != nil {
			out[id] = p
			continue
		}
		out[id] = nil
		missing = append(missing, id)
	}

	if len(missing) > 0 {
		found, err := d.repo.GetByIDs(ctx, missing)
		if err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Int("count", len(missing)).Msg("profile lookup failed")
		}
		for _, id := range missing {
			if p, ok := found[id]; ok {
				d.store(p)
				out[id] = p
			} else {
				out[id] = placeholder(id)
			}
		}
	}
	return out
}

func (d *directoryImpl) fetch(ctx context.Context, userID string) *domain.SenderProfile {
	if p := d.fromCache(ctx, userID); p != nil {
		return p
	}

	found, err := d.repo.GetByIDs(ctx, []string{userID})
	if err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldUserID, userID).Msg("profile lookup failed")
		return placeholder(userID)
	}
	p, ok := found[userID]
	if !ok {
		return placeholder(userID)
	}
	d.store(p)
	return p
}

func (d *directoryImpl) fromCache(ctx context.Context, userID string) *domain.SenderProfile {
	if d.cache == nil {
		return nil
	}
	p, err := d.cache.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Msg("cache get error")
		}
		return nil
	}
	return p
}

func (d *directoryImpl) store(p *domain.SenderProfile) {
	if d.cache == nil {
		return
	}
	// Store in cache asynchronously
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := d.cache.Set(ctx, p, d.cacheTTL); err != nil {
			l := log.L()
			l.Warn().Err(err).Msg("cache set error")
		}
	}()
}

func placeholder(userID string) *domain.SenderProfile {
	return &domain.SenderProfile{ID: userID, FullName: UnknownName}
}
