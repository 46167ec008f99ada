package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/CutzuDev/itec2025/internal/domain"
	"github.com/CutzuDev/itec2025/pkg/log"
)

// GormRoomRepository implements RoomRepository using GORM.
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository creates a new GORM-based room repository.
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	return &GormRoomRepository{db: db}
}

// Create creates a room and makes its creator the first member.
func (r *GormRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	l := log.Ctx(ctx)

	model := domain.RoomToModel(room)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		return tx.Create(&domain.RoomMemberModel{RoomID: room.ID, UserID: room.CreatorID}).Error
	})
	if err != nil {
		l.Error().Err(err).Str(log.FieldRoomID, room.ID).Msg("failed to create room in db")
		return err
	}

	// Update the domain object with generated timestamps
	room.CreatedAt = model.CreatedAt
	l.Debug().Str(log.FieldRoomID, room.ID).Msg("room created in db")
	return nil
}

// GetByID retrieves a room by ID.
func (r *GormRoomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	var model domain.RoomModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		l := log.Ctx(ctx)
		l.Error().Err(result.Error).Str(log.FieldRoomID, id).Msg("failed to get room by id")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// ListForUser returns the rooms a user created or joined, newest first.
func (r *GormRoomRepository) ListForUser(ctx context.Context, userID string) ([]domain.Room, error) {
	var models []domain.RoomModel
	result := r.db.WithContext(ctx).
		Where("creator_id = ? OR id IN (?)", userID,
			r.db.Model(&domain.RoomMemberModel{}).Select("room_id").Where("user_id = ?", userID)).
		Order("created_at DESC").
		Find(&models)
	if result.Error != nil {
		l := log.Ctx(ctx)
		l.Error().Err(result.Error).Str(log.FieldUserID, userID).Msg("failed to list user rooms from db")
		return nil, result.Error
	}

	rooms := make([]domain.Room, len(models))
	for i, model := range models {
		rooms[i] = *model.ToDomain()
	}
	return rooms, nil
}

// AddMember adds a user to a room. Joining twice is not an error.
func (r *GormRoomRepository) AddMember(ctx context.Context, roomID, userID string) error {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.RoomMemberModel{RoomID: roomID, UserID: userID})
	if result.Error != nil {
		l := log.Ctx(ctx)
		l.Error().Err(result.Error).
			Str(log.FieldRoomID, roomID).
			Str(log.FieldUserID, userID).
			Msg("failed to add room member")
		return result.Error
	}
	return nil
}

// RemoveMember deletes a user's membership of a room.
func (r *GormRoomRepository) RemoveMember(ctx context.Context, roomID, userID string) error {
	result := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Delete(&domain.RoomMemberModel{})
	if result.Error != nil {
		l := log.Ctx(ctx)
		l.Error().Err(result.Error).
			Str(log.FieldRoomID, roomID).
			Str(log.FieldUserID, userID).
			Msg("failed to remove room member")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// ListMembers returns the members of a room, earliest joiner first.
func (r *GormRoomRepository) ListMembers(ctx context.Context, roomID string) ([]domain.RoomMember, error) {
	var models []domain.RoomMemberModel
	result := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("joined_at ASC, user_id ASC").
		Find(&models)
	if result.Error != nil {
		l := log.Ctx(ctx)
		l.Error().Err(result.Error).Str(log.FieldRoomID, roomID).Msg("failed to list room members")
		return nil, result.Error
	}

	members := make([]domain.RoomMember, len(models))
	for i, m := range models {
		members[i] = domain.RoomMember{UserID: m.UserID, JoinedAt: m.JoinedAt.UTC()}
	}
	return members, nil
}

// IsMember reports whether a user is a member of a room.
func (r *GormRoomRepository) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&domain.RoomMemberModel{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

// CountMembers counts the members of a room.
func (r *GormRoomRepository) CountMembers(ctx context.Context, roomID string) (int, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&domain.RoomMemberModel{}).
		Where("room_id = ?", roomID).
		Count(&count)
	if result.Error != nil {
		l := log.Ctx(ctx)
		l.Error().Err(result.Error).Str(log.FieldRoomID, roomID).Msg("failed to count room members")
	}
	return int(count), result.Error
}
