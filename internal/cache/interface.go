package cache

import (
	"context"
	"errors"
	"time"

	"github.com/CutzuDev/itec2025/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// ProfileCache caches sender display metadata by user id.
type ProfileCache interface {
	Get(ctx context.Context, userID string) (*domain.SenderProfile, error)
	Set(ctx context.Context, profile *domain.SenderProfile, ttl time.Duration) error
	Delete(ctx context.Context, userID string) error
	Close() error
}
