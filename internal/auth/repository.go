package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/raven-chat/backend/internal/models"
	"github.com/raven-chat/backend/pkg/database"
)

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const q = `SELECT id, email, password_hash, full_name, created_at, updated_at FROM users WHERE id = $1`
	return r.scanOne(ctx, q, id)
}

// GetByEmail returns a user by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `SELECT id, email, password_hash, full_name, created_at, updated_at FROM users WHERE email = $1`
	return r.scanOne(ctx, q, email)
}

// Create inserts a new user. A taken email is reported as a unique violation.
func (r *Repository) Create(ctx context.Context, email, passwordHash, fullName string) (*models.User, error) {
	const q = `INSERT INTO users (email, password_hash, full_name)
		VALUES ($1, $2, $3)
		RETURNING id, email, password_hash, full_name, created_at, updated_at`
	return r.scanOne(ctx, q, email, passwordHash, fullName)
}

func (r *Repository) scanOne(ctx context.Context, q string, args ...any) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, q, args...).Scan(&u.ID, &u.Email, &u.Password, &u.FullName, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, database.NotFound(err)
	}
	return &u, nil
}
