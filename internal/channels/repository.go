package channels

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/raven-chat/backend/internal/models"
	"github.com/raven-chat/backend/pkg/database"
)

// Repository handles channel and channel membership persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a channels repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a channel.
func (r *Repository) Create(ctx context.Context, ch *models.Channel) error {
	const q = `INSERT INTO channels (name, is_private, created_by)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	return database.Conn(ctx, r.pool).QueryRow(ctx, q, ch.Name, ch.IsPrivate, ch.CreatedBy).
		Scan(&ch.ID, &ch.CreatedAt)
}

// GetByID returns a channel by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	const q = `SELECT id, name, is_private, created_by, created_at FROM channels WHERE id = $1`
	var ch models.Channel
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q, id).
		Scan(&ch.ID, &ch.Name, &ch.IsPrivate, &ch.CreatedBy, &ch.CreatedAt)
	if err != nil {
		return nil, database.NotFound(err)
	}
	return &ch, nil
}

// AddMember adds a user to a channel. Adding an existing member is a no-op.
func (r *Repository) AddMember(ctx context.Context, channelID, userID uuid.UUID) error {
	const q = `INSERT INTO channel_members (channel_id, user_id) VALUES ($1, $2)
		ON CONFLICT (channel_id, user_id) DO NOTHING`
	_, err := database.Conn(ctx, r.pool).Exec(ctx, q, channelID, userID)
	return err
}

// HasReadAccess reports whether the user may read the entity. Public channels
// are readable by everyone, private ones by members only; a message is
// readable when its channel is. Unknown entities are not readable.
func (r *Repository) HasReadAccess(ctx context.Context, entityType string, entityID, userID uuid.UUID) (bool, error) {
	const channelVisible = `(NOT c.is_private OR EXISTS (
		SELECT 1 FROM channel_members m WHERE m.channel_id = c.id AND m.user_id = $2))`

	var q string
	switch entityType {
	case models.EntityChannel:
		q = `SELECT EXISTS (SELECT 1 FROM channels c WHERE c.id = $1 AND ` + channelVisible + `)`
	case models.EntityMessage:
		q = `SELECT EXISTS (SELECT 1 FROM messages msg JOIN channels c ON c.id = msg.channel_id
			WHERE msg.id = $1 AND ` + channelVisible + `)`
	default:
		return false, fmt.Errorf("unknown entity type %q", entityType)
	}

	var ok bool
	if err := database.Conn(ctx, r.pool).QueryRow(ctx, q, entityID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("check %s access: %w", entityType, err)
	}
	return ok, nil
}
