package polls

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raven-chat/backend/internal/models"
	"github.com/raven-chat/backend/pkg/cache"
	"github.com/raven-chat/backend/pkg/database"
)

type memStore struct {
	mu       sync.Mutex
	polls    map[uuid.UUID]*models.Poll
	votes    []models.PollVote
	getCalls int
	locks    int
}

func newMemStore() *memStore {
	return &memStore{polls: make(map[uuid.UUID]*models.Poll)}
}

func (s *memStore) Create(_ context.Context, p *models.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = time.Now().UTC()
	for i := range p.Options {
		p.Options[i].ID = uuid.New()
		p.Options[i].PollID = p.ID
		p.Options[i].Position = i
	}
	cp := *p
	cp.Options = append([]models.PollOption(nil), p.Options...)
	s.polls[p.ID] = &cp
	return nil
}

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	p, ok := s.polls[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *p
	cp.Options = append([]models.PollOption(nil), p.Options...)
	return &cp, nil
}

func (s *memStore) CountVotes(_ context.Context, pollID uuid.UUID) (models.VoteCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := models.VoteCounts{ByOption: make(map[uuid.UUID]int)}
	voters := make(map[uuid.UUID]struct{})
	for _, v := range s.votes {
		if v.PollID == pollID {
			counts.ByOption[v.OptionID]++
			voters[v.VoterID] = struct{}{}
		}
	}
	counts.Voters = len(voters)
	return counts, nil
}

func (s *memStore) VotesByVoter(_ context.Context, pollID, voterID uuid.UUID) ([]models.PollVote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PollVote
	for _, v := range s.votes {
		if v.PollID == pollID && v.VoterID == voterID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *memStore) ListVotes(_ context.Context, pollID uuid.UUID) ([]models.PollVote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PollVote
	for _, v := range s.votes {
		if v.PollID == pollID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *memStore) LockVoter(context.Context, uuid.UUID, uuid.UUID) error {
	s.mu.Lock()
	s.locks++
	s.mu.Unlock()
	return nil
}

func (s *memStore) InsertVotes(_ context.Context, votes []models.PollVote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range votes {
		for _, v := range s.votes {
			if v.PollID == votes[i].PollID && v.OptionID == votes[i].OptionID && v.VoterID == votes[i].VoterID {
				return ErrDuplicateVote
			}
		}
		votes[i].ID = uuid.New()
		votes[i].CreatedAt = time.Now().UTC()
		s.votes = append(s.votes, votes[i])
	}
	return nil
}

func (s *memStore) pollCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.polls)
}

type memMessages struct {
	mu         sync.Mutex
	messages   map[uuid.UUID]*models.Message
	failInsert error
}

func newMemMessages() *memMessages {
	return &memMessages{messages: make(map[uuid.UUID]*models.Message)}
}

func (m *memMessages) Insert(_ context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert != nil {
		return m.failInsert
	}
	msg.ID = uuid.New()
	msg.CreatedAt = time.Now().UTC()
	cp := *msg
	m.messages[msg.ID] = &cp
	return nil
}

func (m *memMessages) PollID(_ context.Context, messageID uuid.UUID) (*uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[messageID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return msg.PollID, nil
}

func (m *memMessages) get(id uuid.UUID) *models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages[id]
}

func (m *memMessages) addText(channelID uuid.UUID) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.messages[id] = &models.Message{ID: id, ChannelID: channelID, MessageType: models.MessageTypeText, Text: "hi"}
	return id
}

// fakeAuthz grants read access to everything except users listed in denied.
type fakeAuthz struct {
	mu     sync.Mutex
	denied map[uuid.UUID]bool
	calls  []string
}

func (a *fakeAuthz) HasReadAccess(_ context.Context, entityType string, _, userID uuid.UUID) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, entityType)
	return !a.denied[userID], nil
}

// fakeTx emulates rollback by restoring the stores when fn fails.
type fakeTx struct {
	store    *memStore
	messages *memMessages
	calls    int
}

func (t *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++

	t.store.mu.Lock()
	polls := make(map[uuid.UUID]*models.Poll, len(t.store.polls))
	for k, v := range t.store.polls {
		polls[k] = v
	}
	votes := append([]models.PollVote(nil), t.store.votes...)
	t.store.mu.Unlock()

	t.messages.mu.Lock()
	msgs := make(map[uuid.UUID]*models.Message, len(t.messages.messages))
	for k, v := range t.messages.messages {
		msgs[k] = v
	}
	t.messages.mu.Unlock()

	if err := fn(ctx); err != nil {
		t.store.mu.Lock()
		t.store.polls, t.store.votes = polls, votes
		t.store.mu.Unlock()
		t.messages.mu.Lock()
		t.messages.messages = msgs
		t.messages.mu.Unlock()
		return err
	}
	return nil
}

type fixture struct {
	svc      *Service
	store    *memStore
	messages *memMessages
	authz    *fakeAuthz
	tx       *fakeTx
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	msgs := newMemMessages()
	authz := &fakeAuthz{denied: make(map[uuid.UUID]bool)}
	tx := &fakeTx{store: store, messages: msgs}
	svc := NewService(store, msgs, authz, tx, cache.NewMemory(time.Minute), zap.NewNop())
	return &fixture{svc: svc, store: store, messages: msgs, authz: authz, tx: tx}
}
