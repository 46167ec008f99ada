package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocql/gocql"

	"github.com/CutzuDev/itec2025/internal/config"
	"github.com/CutzuDev/itec2025/internal/domain"
	"github.com/CutzuDev/itec2025/pkg/log"
)

// cassandraSchema creates the two query tables. messages_by_room serves
// history loads; messages_by_id serves point lookups for edit and delete.
var cassandraSchema = []string{
	`CREATE TABLE IF NOT EXISTS messages_by_room (
		room_id text,
		created_at timestamp,
		message_id text,
		sender_id text,
		body text,
		attachments list<text>,
		updated_at timestamp,
		PRIMARY KEY ((room_id), created_at, message_id)
	) WITH CLUSTERING ORDER BY (created_at ASC, message_id ASC)`,
	`CREATE TABLE IF NOT EXISTS messages_by_id (
		message_id text PRIMARY KEY,
		room_id text,
		sender_id text,
		body text,
		attachments list<text>,
		created_at timestamp,
		updated_at timestamp
	)`,
}

// CassandraMessageRepository implements MessageRepository on Cassandra.
type CassandraMessageRepository struct {
	session *gocql.Session
}

// NewCassandraSession opens a session for the configured cluster.
func NewCassandraSession(cfg config.CassandraConfig) (*gocql.Session, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = parseConsistency(cfg.Consistency)
	cluster.ConnectTimeout = cfg.ConnectTimeout
	cluster.Timeout = cfg.Timeout
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		NumRetries: 3,
		Min:        100 * time.Millisecond,
		Max:        2 * time.Second,
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create cassandra session: %w", err)
	}
	return session, nil
}

// NewCassandraMessageRepository creates a repository over an open session.
func NewCassandraMessageRepository(session *gocql.Session) *CassandraMessageRepository {
	return &CassandraMessageRepository{session: session}
}

// EnsureSchema creates the message tables when missing.
func (r *CassandraMessageRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range cassandraSchema {
		if err := r.session.Query(stmt).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("failed to apply cassandra schema: %w", err)
		}
	}
	return nil
}

// Create writes the message to both tables in a logged batch.
func (r *CassandraMessageRepository) Create(ctx context.Context, msg *domain.ChatMessage) error {
	batch := r.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`INSERT INTO messages_by_room (room_id, created_at, message_id, sender_id, body, attachments, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.RoomID, msg.CreatedAt, msg.ID, msg.SenderID, msg.Body, msg.Attachments, msg.UpdatedAt)
	batch.Query(`INSERT INTO messages_by_id (message_id, room_id, sender_id, body, attachments, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.RoomID, msg.SenderID, msg.Body, msg.Attachments, msg.CreatedAt, msg.UpdatedAt)

	if err := r.session.ExecuteBatch(batch); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldMessageID, msg.ID).Msg("failed to save message to cassandra")
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// GetByID retrieves a message by ID.
func (r *CassandraMessageRepository) GetByID(ctx context.Context, id string) (*domain.ChatMessage, error) {
	var (
		msg       domain.ChatMessage
		updatedAt time.Time
	)
	err := r.session.Query(`SELECT message_id, room_id, sender_id, body, attachments, created_at, updated_at
		FROM messages_by_id WHERE message_id = ?`, id).
		WithContext(ctx).
		Scan(&msg.ID, &msg.RoomID, &msg.SenderID, &msg.Body, &msg.Attachments, &msg.CreatedAt, &updatedAt)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	msg.CreatedAt = msg.CreatedAt.UTC()
	if !updatedAt.IsZero() {
		u := updatedAt.UTC()
		msg.UpdatedAt = &u
	}
	return &msg, nil
}

// Update rewrites body and updated_at in both tables. Cassandra has no row
// guard across tables, so ownership is checked on the current row first.
func (r *CassandraMessageRepository) Update(ctx context.Context, msg *domain.ChatMessage) error {
	current, err := r.GetByID(ctx, msg.ID)
	if err != nil {
		return err
	}
	if current.SenderID != msg.SenderID {
		return ErrMessageNotFound
	}

	batch := r.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`UPDATE messages_by_room SET body = ?, updated_at = ?
		WHERE room_id = ? AND created_at = ? AND message_id = ?`,
		msg.Body, msg.UpdatedAt, current.RoomID, current.CreatedAt, current.ID)
	batch.Query(`UPDATE messages_by_id SET body = ?, updated_at = ? WHERE message_id = ?`,
		msg.Body, msg.UpdatedAt, current.ID)

	if err := r.session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	return nil
}

// Delete removes a message owned by senderID from both tables.
func (r *CassandraMessageRepository) Delete(ctx context.Context, id, senderID string) error {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current.SenderID != senderID {
		return ErrMessageNotFound
	}

	batch := r.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`DELETE FROM messages_by_room WHERE room_id = ? AND created_at = ? AND message_id = ?`,
		current.RoomID, current.CreatedAt, current.ID)
	batch.Query(`DELETE FROM messages_by_id WHERE message_id = ?`, current.ID)

	if err := r.session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

// ListByRoom returns the messages of a room in display order.
func (r *CassandraMessageRepository) ListByRoom(ctx context.Context, roomID string) ([]domain.ChatMessage, error) {
	iter := r.session.Query(`SELECT message_id, room_id, sender_id, body, attachments, created_at, updated_at
		FROM messages_by_room WHERE room_id = ?`, roomID).
		WithContext(ctx).
		Iter()

	var (
		messages  []domain.ChatMessage
		msg       domain.ChatMessage
		updatedAt time.Time
	)
	for iter.Scan(&msg.ID, &msg.RoomID, &msg.SenderID, &msg.Body, &msg.Attachments, &msg.CreatedAt, &updatedAt) {
		msg.CreatedAt = msg.CreatedAt.UTC()
		if !updatedAt.IsZero() {
			u := updatedAt.UTC()
			msg.UpdatedAt = &u
		}
		messages = append(messages, msg)
		msg = domain.ChatMessage{}
		updatedAt = time.Time{}
	}

	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	return messages, nil
}

// Close closes the session.
func (r *CassandraMessageRepository) Close() error {
	r.session.Close()
	return nil
}

func parseConsistency(s string) gocql.Consistency {
	switch strings.ToUpper(s) {
	case "ONE":
		return gocql.One
	case "QUORUM":
		return gocql.Quorum
	case "ALL":
		return gocql.All
	case "LOCAL_ONE":
		return gocql.LocalOne
	case "EACH_QUORUM":
		return gocql.EachQuorum
	default:
		return gocql.LocalQuorum
	}
}
