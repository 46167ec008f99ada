package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/CutzuDev/itec2025/internal/domain"
	"github.com/CutzuDev/itec2025/pkg/log"
)

// GormMessageRepository implements MessageRepository using GORM.
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GORM-based message repository.
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// Create inserts a new message.
func (r *GormMessageRepository) Create(ctx context.Context, msg *domain.ChatMessage) error {
	l := log.Ctx(ctx)

	model := domain.MessageToModel(msg)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		l.Error().Err(err).Str(log.FieldMessageID, msg.ID).Msg("failed to create message in db")
		return err
	}

	l.Debug().Str(log.FieldMessageID, msg.ID).Msg("message created in db")
	return nil
}

// GetByID retrieves a message by ID.
func (r *GormMessageRepository) GetByID(ctx context.Context, id string) (*domain.ChatMessage, error) {
	var model domain.MessageModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		l := log.Ctx(ctx)
		l.Error().Err(result.Error).Str(log.FieldMessageID, id).Msg("failed to get message by id")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// Update rewrites the body of a message. The sender guard makes a foreign
// edit affect no rows.
func (r *GormMessageRepository) Update(ctx context.Context, msg *domain.ChatMessage) error {
	l := log.Ctx(ctx)

	result := r.db.WithContext(ctx).Model(&domain.MessageModel{}).
		Where("id = ? AND sender_id = ?", msg.ID, msg.SenderID).
		Updates(map[string]interface{}{
			"body":       msg.Body,
			"updated_at": msg.UpdatedAt,
		})
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldMessageID, msg.ID).Msg("failed to update message in db")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// Delete removes a message owned by senderID.
func (r *GormMessageRepository) Delete(ctx context.Context, id, senderID string) error {
	l := log.Ctx(ctx)

	result := r.db.WithContext(ctx).
		Where("id = ? AND sender_id = ?", id, senderID).
		Delete(&domain.MessageModel{})
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldMessageID, id).Msg("failed to delete message in db")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// ListByRoom returns every message of a room in display order.
func (r *GormMessageRepository) ListByRoom(ctx context.Context, roomID string) ([]domain.ChatMessage, error) {
	var models []domain.MessageModel
	result := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&models)
	if result.Error != nil {
		l := log.Ctx(ctx)
		l.Error().Err(result.Error).Str(log.FieldRoomID, roomID).Msg("failed to list messages from db")
		return nil, result.Error
	}

	messages := make([]domain.ChatMessage, len(models))
	for i, model := range models {
		messages[i] = *model.ToDomain()
	}
	return messages, nil
}

// Close is a no-op; the *gorm.DB is owned by the caller.
func (r *GormMessageRepository) Close() error {
	return nil
}
