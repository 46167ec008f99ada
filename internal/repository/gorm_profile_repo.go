package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/CutzuDev/itec2025/internal/domain"
	"github.com/CutzuDev/itec2025/pkg/log"
)

// GormProfileRepository reads profiles from the users table.
type GormProfileRepository struct {
	db *gorm.DB
}

// NewGormProfileRepository creates a new GORM-based profile repository.
func NewGormProfileRepository(db *gorm.DB) *GormProfileRepository {
	return &GormProfileRepository{db: db}
}

// GetByIDs returns the profiles found for ids, keyed by user id. Unknown ids
// are absent from the result.
func (r *GormProfileRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.SenderProfile, error) {
	out := make(map[string]*domain.SenderProfile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var models []domain.UserModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Int("count", len(ids)).Msg("failed to load profiles")
		return nil, err
	}
	for i := range models {
		out[models[i].ID] = models[i].ToProfile()
	}
	return out, nil
}
