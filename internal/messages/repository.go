package messages

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/raven-chat/backend/internal/models"
	"github.com/raven-chat/backend/pkg/database"
)

// Repository handles channel message persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a messages repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores a message and fills in its ID and CreatedAt.
// It joins the caller's transaction when ctx carries one.
func (r *Repository) Insert(ctx context.Context, m *models.Message) error {
	const q = `INSERT INTO messages (channel_id, owner_id, text, content, message_type, poll_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	return database.Conn(ctx, r.pool).QueryRow(ctx, q, m.ChannelID, m.OwnerID, m.Text, m.Content, string(m.MessageType), m.PollID).
		Scan(&m.ID, &m.CreatedAt)
}

// GetByID returns a message by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	const q = `SELECT id, channel_id, owner_id, text, content, message_type, poll_id, created_at
		FROM messages WHERE id = $1`
	var m models.Message
	var msgType string
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q, id).
		Scan(&m.ID, &m.ChannelID, &m.OwnerID, &m.Text, &m.Content, &msgType, &m.PollID, &m.CreatedAt)
	if err != nil {
		return nil, database.NotFound(err)
	}
	m.MessageType = models.MessageType(msgType)
	return &m, nil
}

// PollID returns the poll a message points to, or nil for a non-poll message.
func (r *Repository) PollID(ctx context.Context, messageID uuid.UUID) (*uuid.UUID, error) {
	const q = `SELECT poll_id FROM messages WHERE id = $1`
	var pollID *uuid.UUID
	if err := database.Conn(ctx, r.pool).QueryRow(ctx, q, messageID).Scan(&pollID); err != nil {
		return nil, database.NotFound(err)
	}
	return pollID, nil
}
