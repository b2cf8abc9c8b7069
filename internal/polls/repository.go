package polls

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/raven-chat/backend/internal/models"
	"github.com/raven-chat/backend/pkg/database"
)

// Repository handles poll, option and vote persistence.
type Repository struct {
	pool *pgxpool.Pool
	tx   *database.Transactor
}

// NewRepository creates a polls repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, tx: database.NewTransactor(pool)}
}

// Create inserts a poll and its options in order, filling in generated ids.
func (r *Repository) Create(ctx context.Context, p *models.Poll) error {
	const insertPoll = `INSERT INTO polls (channel_id, question, is_multi_choice, is_anonymous, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	const insertOption = `INSERT INTO poll_options (poll_id, text, position)
		VALUES ($1, $2, $3)
		RETURNING id`

	return r.tx.WithinTx(ctx, func(ctx context.Context) error {
		conn := database.Conn(ctx, r.pool)
		err := conn.QueryRow(ctx, insertPoll, p.ChannelID, p.Question, p.IsMultiChoice, p.IsAnonymous, p.CreatedBy).
			Scan(&p.ID, &p.CreatedAt)
		if err != nil {
			return err
		}
		for i := range p.Options {
			o := &p.Options[i]
			o.PollID = p.ID
			o.Position = i
			if err := conn.QueryRow(ctx, insertOption, p.ID, o.Text, o.Position).Scan(&o.ID); err != nil {
				return fmt.Errorf("option %d: %w", i, err)
			}
		}
		return nil
	})
}

// GetByID returns a poll with its options ordered by position.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Poll, error) {
	const q = `SELECT id, channel_id, question, is_multi_choice, is_anonymous, created_by, created_at
		FROM polls WHERE id = $1`
	conn := database.Conn(ctx, r.pool)

	var p models.Poll
	err := conn.QueryRow(ctx, q, id).
		Scan(&p.ID, &p.ChannelID, &p.Question, &p.IsMultiChoice, &p.IsAnonymous, &p.CreatedBy, &p.CreatedAt)
	if err != nil {
		return nil, database.NotFound(err)
	}

	rows, err := conn.Query(ctx, `SELECT id, poll_id, text, position FROM poll_options WHERE poll_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var o models.PollOption
		if err := rows.Scan(&o.ID, &o.PollID, &o.Text, &o.Position); err != nil {
			return nil, err
		}
		p.Options = append(p.Options, o)
	}
	return &p, rows.Err()
}

// CountVotes returns per-option vote counts and the number of distinct voters.
func (r *Repository) CountVotes(ctx context.Context, pollID uuid.UUID) (models.VoteCounts, error) {
	conn := database.Conn(ctx, r.pool)
	counts := models.VoteCounts{ByOption: make(map[uuid.UUID]int)}

	rows, err := conn.Query(ctx, `SELECT option_id, COUNT(*) FROM poll_votes WHERE poll_id = $1 GROUP BY option_id`, pollID)
	if err != nil {
		return counts, err
	}
	defer rows.Close()
	for rows.Next() {
		var optionID uuid.UUID
		var n int
		if err := rows.Scan(&optionID, &n); err != nil {
			return counts, err
		}
		counts.ByOption[optionID] = n
	}
	if err := rows.Err(); err != nil {
		return counts, err
	}

	err = conn.QueryRow(ctx, `SELECT COUNT(DISTINCT voter_id) FROM poll_votes WHERE poll_id = $1`, pollID).Scan(&counts.Voters)
	return counts, err
}

// VotesByVoter returns one voter's votes on a poll, oldest first.
func (r *Repository) VotesByVoter(ctx context.Context, pollID, voterID uuid.UUID) ([]models.PollVote, error) {
	const q = `SELECT id, poll_id, option_id, voter_id, created_at FROM poll_votes
		WHERE poll_id = $1 AND voter_id = $2 ORDER BY created_at, id`
	return r.queryVotes(ctx, q, pollID, voterID)
}

// ListVotes returns all votes on a poll, oldest first.
func (r *Repository) ListVotes(ctx context.Context, pollID uuid.UUID) ([]models.PollVote, error) {
	const q = `SELECT id, poll_id, option_id, voter_id, created_at FROM poll_votes
		WHERE poll_id = $1 ORDER BY created_at, id`
	return r.queryVotes(ctx, q, pollID)
}

func (r *Repository) queryVotes(ctx context.Context, q string, args ...any) ([]models.PollVote, error) {
	rows, err := database.Conn(ctx, r.pool).Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.PollVote
	for rows.Next() {
		var v models.PollVote
		if err := rows.Scan(&v.ID, &v.PollID, &v.OptionID, &v.VoterID, &v.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, rows.Err()
}

// LockVoter takes a transaction-scoped advisory lock on (poll, voter) so that
// concurrent votes by the same user on the same poll run one after another.
// It must be called inside a transaction.
func (r *Repository) LockVoter(ctx context.Context, pollID, voterID uuid.UUID) error {
	const q = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`
	_, err := database.Conn(ctx, r.pool).Exec(ctx, q, pollID.String()+":"+voterID.String())
	return err
}

// InsertVotes stores votes, filling in ids and timestamps.
// A unique-index conflict is reported as ErrDuplicateVote.
func (r *Repository) InsertVotes(ctx context.Context, votes []models.PollVote) error {
	const q = `INSERT INTO poll_votes (poll_id, option_id, voter_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	return r.tx.WithinTx(ctx, func(ctx context.Context) error {
		conn := database.Conn(ctx, r.pool)
		for i := range votes {
			v := &votes[i]
			if err := conn.QueryRow(ctx, q, v.PollID, v.OptionID, v.VoterID).Scan(&v.ID, &v.CreatedAt); err != nil {
				if database.IsUniqueViolation(err) {
					return ErrDuplicateVote
				}
				return err
			}
		}
		return nil
	})
}
