package polls

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raven-chat/backend/internal/models"
	"github.com/raven-chat/backend/pkg/cache"
)

// Store persists polls and votes.
type Store interface {
	Create(ctx context.Context, p *models.Poll) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Poll, error)
	CountVotes(ctx context.Context, pollID uuid.UUID) (models.VoteCounts, error)
	VotesByVoter(ctx context.Context, pollID, voterID uuid.UUID) ([]models.PollVote, error)
	ListVotes(ctx context.Context, pollID uuid.UUID) ([]models.PollVote, error)
	LockVoter(ctx context.Context, pollID, voterID uuid.UUID) error
	InsertVotes(ctx context.Context, votes []models.PollVote) error
}

// MessageStore inserts channel messages and resolves the poll a message carries.
// PollID returns nil for messages without a poll.
type MessageStore interface {
	Insert(ctx context.Context, m *models.Message) error
	PollID(ctx context.Context, messageID uuid.UUID) (*uuid.UUID, error)
}

// Authorizer decides whether a user can read a channel or message.
type Authorizer interface {
	HasReadAccess(ctx context.Context, entityType string, entityID, userID uuid.UUID) (bool, error)
}

// Transactor runs fn inside one database transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CreateInput describes a poll to create.
type CreateInput struct {
	ChannelID     uuid.UUID
	Question      string
	Options       []string
	IsMultiChoice bool
	IsAnonymous   bool
}

// CreateResult is the created poll and the channel message that carries it.
type CreateResult struct {
	Poll      *models.Poll `json:"poll"`
	MessageID uuid.UUID    `json:"message_id"`
}

// Service implements poll creation, reading and voting. The acting user is
// passed explicitly to every call.
type Service struct {
	store    Store
	messages MessageStore
	authz    Authorizer
	tx       Transactor
	cache    cache.Cache
	logger   *zap.Logger
}

// NewService creates a poll service.
func NewService(store Store, messages MessageStore, authz Authorizer, tx Transactor, c cache.Cache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, messages: messages, authz: authz, tx: tx, cache: c, logger: logger}
}

// CreatePoll creates a poll in a channel and posts the poll message. The poll,
// its options and the message are written in one transaction.
func (s *Service) CreatePoll(ctx context.Context, in CreateInput, actor uuid.UUID) (*CreateResult, error) {
	if strings.TrimSpace(in.Question) == "" {
		return nil, fmt.Errorf("%w: question is required", ErrInvalidPoll)
	}
	if len(in.Options) == 0 {
		return nil, fmt.Errorf("%w: at least one option is required", ErrInvalidPoll)
	}
	for i, o := range in.Options {
		if strings.TrimSpace(o) == "" {
			return nil, fmt.Errorf("%w: option %d is blank", ErrInvalidPoll, i+1)
		}
	}
	if err := s.requireAccess(ctx, models.EntityChannel, in.ChannelID, actor); err != nil {
		return nil, err
	}

	p := &models.Poll{
		ChannelID:     in.ChannelID,
		Question:      in.Question,
		IsMultiChoice: in.IsMultiChoice,
		IsAnonymous:   in.IsAnonymous,
		CreatedBy:     actor,
		Options:       make([]models.PollOption, len(in.Options)),
	}
	for i, text := range in.Options {
		p.Options[i] = models.PollOption{Text: text, Position: i}
	}
	msg := &models.Message{
		ChannelID:   in.ChannelID,
		OwnerID:     actor,
		Content:     Summary(in.Question, in.Options),
		MessageType: models.MessageTypePoll,
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, p); err != nil {
			return fmt.Errorf("insert poll: %w", err)
		}
		msg.PollID = &p.ID
		if err := s.messages.Insert(ctx, msg); err != nil {
			return fmt.Errorf("insert poll message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cachePut(ctx, pollKey(p.ID), p)
	s.cachePut(ctx, messagePollKey(msg.ID), p.ID)
	s.logger.Info("poll created",
		zap.String("poll_id", p.ID.String()),
		zap.String("message_id", msg.ID.String()),
		zap.String("channel_id", p.ChannelID.String()),
		zap.Int("options", len(p.Options)),
	)
	return &CreateResult{Poll: p, MessageID: msg.ID}, nil
}

// GetPoll returns the poll carried by a message with per-option counts and the
// acting user's own votes.
func (s *Service) GetPoll(ctx context.Context, messageID, actor uuid.UUID) (*models.PollView, error) {
	if err := s.requireAccess(ctx, models.EntityMessage, messageID, actor); err != nil {
		return nil, err
	}
	p, err := s.pollForMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}

	counts, err := s.store.CountVotes(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("count votes: %w", err)
	}
	mine, err := s.store.VotesByVoter(ctx, p.ID, actor)
	if err != nil {
		return nil, fmt.Errorf("load user votes: %w", err)
	}
	if mine == nil {
		mine = []models.PollVote{}
	}

	view := &models.PollView{Poll: tally(p, counts), CurrentUserVotes: mine}
	if len(mine) > 0 {
		view.Poll.CurrentUserVote = mine
	}
	return view, nil
}

// AddVote records the acting user's choice. Single-choice polls take exactly
// one option and one vote per user; multi-choice polls take any number of
// options the user has not chosen before.
func (s *Service) AddVote(ctx context.Context, messageID uuid.UUID, optionIDs []uuid.UUID, actor uuid.UUID) error {
	if err := s.requireAccess(ctx, models.EntityMessage, messageID, actor); err != nil {
		return err
	}
	p, err := s.pollForMessage(ctx, messageID)
	if err != nil {
		return err
	}

	if len(optionIDs) == 0 {
		return fmt.Errorf("%w: no option selected", ErrInvalidOption)
	}
	if !p.IsMultiChoice && len(optionIDs) > 1 {
		return fmt.Errorf("%w: poll allows a single choice", ErrInvalidOption)
	}
	chosen := make(map[uuid.UUID]struct{}, len(optionIDs))
	for _, id := range optionIDs {
		if !p.HasOption(id) {
			return fmt.Errorf("%w: %s is not an option of this poll", ErrInvalidOption, id)
		}
		if _, dup := chosen[id]; dup {
			return fmt.Errorf("%w: option %s selected twice", ErrDuplicateVote, id)
		}
		chosen[id] = struct{}{}
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.store.LockVoter(ctx, p.ID, actor); err != nil {
			return fmt.Errorf("lock voter: %w", err)
		}
		existing, err := s.store.VotesByVoter(ctx, p.ID, actor)
		if err != nil {
			return fmt.Errorf("load user votes: %w", err)
		}
		if !p.IsMultiChoice && len(existing) > 0 {
			return fmt.Errorf("%w: already voted on this poll", ErrDuplicateVote)
		}
		for _, v := range existing {
			if _, ok := chosen[v.OptionID]; ok {
				return fmt.Errorf("%w: already voted for option %s", ErrDuplicateVote, v.OptionID)
			}
		}

		votes := make([]models.PollVote, 0, len(optionIDs))
		for _, id := range optionIDs {
			votes = append(votes, models.PollVote{PollID: p.ID, OptionID: id, VoterID: actor})
		}
		return s.store.InsertVotes(ctx, votes)
	})
	if err != nil {
		return err
	}

	s.logger.Info("vote added",
		zap.String("poll_id", p.ID.String()),
		zap.String("voter_id", actor.String()),
		zap.Int("options", len(optionIDs)),
	)
	return nil
}

// ListVoters returns who voted for each option, in option order. Anonymous
// polls refuse with ErrAnonymousPoll.
func (s *Service) ListVoters(ctx context.Context, messageID, actor uuid.UUID) ([]models.OptionVoters, error) {
	if err := s.requireAccess(ctx, models.EntityMessage, messageID, actor); err != nil {
		return nil, err
	}
	p, err := s.pollForMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if p.IsAnonymous {
		return nil, ErrAnonymousPoll
	}

	votes, err := s.store.ListVotes(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	byOption := make(map[uuid.UUID][]uuid.UUID, len(p.Options))
	for _, v := range votes {
		byOption[v.OptionID] = append(byOption[v.OptionID], v.VoterID)
	}
	out := make([]models.OptionVoters, 0, len(p.Options))
	for _, o := range p.Options {
		voters := byOption[o.ID]
		if voters == nil {
			voters = []uuid.UUID{}
		}
		out = append(out, models.OptionVoters{OptionID: o.ID, Text: o.Text, Voters: voters})
	}
	return out, nil
}

// Invalidate drops the cached message-to-poll link and the cached poll record.
func (s *Service) Invalidate(ctx context.Context, messageID uuid.UUID) error {
	keys := []string{messagePollKey(messageID)}
	var pollID uuid.UUID
	if found, err := s.cache.Get(ctx, messagePollKey(messageID), &pollID); err == nil && found {
		keys = append(keys, pollKey(pollID))
	}
	return s.cache.Delete(ctx, keys...)
}

func (s *Service) requireAccess(ctx context.Context, entityType string, id, actor uuid.UUID) error {
	ok, err := s.authz.HasReadAccess(ctx, entityType, id, actor)
	if err != nil {
		return fmt.Errorf("check %s access: %w", entityType, err)
	}
	if !ok {
		return fmt.Errorf("%w: you do not have permission to access this %s", ErrPermissionDenied, entityType)
	}
	return nil
}

func (s *Service) pollForMessage(ctx context.Context, messageID uuid.UUID) (*models.Poll, error) {
	var pollID uuid.UUID
	if !s.cacheGet(ctx, messagePollKey(messageID), &pollID) {
		id, err := s.messages.PollID(ctx, messageID)
		if err != nil {
			return nil, fmt.Errorf("resolve message %s: %w", messageID, err)
		}
		if id == nil {
			return nil, ErrNotPoll
		}
		pollID = *id
		s.cachePut(ctx, messagePollKey(messageID), pollID)
	}

	var p models.Poll
	if s.cacheGet(ctx, pollKey(pollID), &p) {
		return &p, nil
	}
	loaded, err := s.store.GetByID(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("load poll %s: %w", pollID, err)
	}
	s.cachePut(ctx, pollKey(pollID), loaded)
	return loaded, nil
}

// cacheGet and cachePut treat the cache as optional: failures are logged and
// the caller falls back to the store.
func (s *Service) cacheGet(ctx context.Context, key string, dst interface{}) bool {
	found, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		s.logger.Warn("cache get", zap.String("key", key), zap.Error(err))
		return false
	}
	return found
}

func (s *Service) cachePut(ctx context.Context, key string, v interface{}) {
	if err := s.cache.Set(ctx, key, v); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("cache set", zap.String("key", key), zap.Error(err))
	}
}

func pollKey(id uuid.UUID) string {
	return cache.Key("poll", id.String())
}

func messagePollKey(id uuid.UUID) string {
	return cache.Key("message_poll", id.String())
}
