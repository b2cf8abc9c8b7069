package polls

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raven-chat/backend/internal/models"
	"github.com/raven-chat/backend/pkg/database"
)

func createPoll(t *testing.T, f *fixture, actor uuid.UUID, multi bool, options ...string) *CreateResult {
	t.Helper()
	res, err := f.svc.CreatePoll(context.Background(), CreateInput{
		ChannelID:     uuid.New(),
		Question:      "Lunch?",
		Options:       options,
		IsMultiChoice: multi,
	}, actor)
	require.NoError(t, err)
	return res
}

func optionID(t *testing.T, p *models.Poll, text string) uuid.UUID {
	t.Helper()
	for _, o := range p.Options {
		if o.Text == text {
			return o.ID
		}
	}
	t.Fatalf("option %q not found", text)
	return uuid.Nil
}

func TestCreatePollRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := uuid.New()
	channelID := uuid.New()

	res, err := f.svc.CreatePoll(ctx, CreateInput{
		ChannelID:   channelID,
		Question:    "Where to?",
		Options:     []string{"Beach", "Mountains", "City"},
		IsAnonymous: true,
	}, actor)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, res.Poll.ID)
	assert.Equal(t, 1, f.tx.calls, "poll and message are written in one transaction")

	msg := f.messages.get(res.MessageID)
	require.NotNil(t, msg)
	assert.Equal(t, models.MessageTypePoll, msg.MessageType)
	assert.Equal(t, "", msg.Text)
	assert.Equal(t, "Where to?\n Beach\n Mountains\n City\n", msg.Content)
	assert.Equal(t, channelID, msg.ChannelID)
	require.NotNil(t, msg.PollID)
	assert.Equal(t, res.Poll.ID, *msg.PollID)

	view, err := f.svc.GetPoll(ctx, res.MessageID, actor)
	require.NoError(t, err)
	assert.Equal(t, res.Poll.ID, view.Poll.ID)
	assert.Equal(t, "Where to?", view.Poll.Question)
	assert.True(t, view.Poll.IsAnonymous)
	assert.False(t, view.Poll.IsMultiChoice)
	require.Len(t, view.Poll.Options, 3)
	for i, want := range []string{"Beach", "Mountains", "City"} {
		assert.Equal(t, want, view.Poll.Options[i].Text)
		assert.Equal(t, i, view.Poll.Options[i].Position)
	}
}

func TestCreatePollPermissionDenied(t *testing.T) {
	f := newFixture(t)
	actor := uuid.New()
	f.authz.denied[actor] = true

	_, err := f.svc.CreatePoll(context.Background(), CreateInput{
		ChannelID: uuid.New(),
		Question:  "Q",
		Options:   []string{"a"},
	}, actor)

	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, 0, f.store.pollCount())
	assert.Empty(t, f.messages.messages)
	assert.Equal(t, []string{models.EntityChannel}, f.authz.calls)
}

func TestCreatePollValidation(t *testing.T) {
	tests := []struct {
		name     string
		question string
		options  []string
	}{
		{"no options", "Q", nil},
		{"blank question", "   ", []string{"a"}},
		{"blank option", "Q", []string{"a", " "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.CreatePoll(context.Background(), CreateInput{
				ChannelID: uuid.New(),
				Question:  tt.question,
				Options:   tt.options,
			}, uuid.New())
			assert.ErrorIs(t, err, ErrInvalidPoll)
			assert.Equal(t, 0, f.store.pollCount())
		})
	}
}

func TestCreatePollRollsBackWhenMessageInsertFails(t *testing.T) {
	f := newFixture(t)
	f.messages.failInsert = errors.New("message store down")

	_, err := f.svc.CreatePoll(context.Background(), CreateInput{
		ChannelID: uuid.New(),
		Question:  "Q",
		Options:   []string{"a", "b"},
	}, uuid.New())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "message store down")
	assert.Equal(t, 0, f.store.pollCount(), "no dangling poll after a failed message insert")
}

func TestAddVoteSingleChoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := uuid.New()
	res := createPoll(t, f, actor, false, "Pizza", "Salad")
	pizza := optionID(t, res.Poll, "Pizza")
	salad := optionID(t, res.Poll, "Salad")

	require.NoError(t, f.svc.AddVote(ctx, res.MessageID, []uuid.UUID{pizza}, actor))

	votes, _ := f.store.VotesByVoter(ctx, res.Poll.ID, actor)
	require.Len(t, votes, 1)
	assert.Equal(t, pizza, votes[0].OptionID)
	assert.Equal(t, 1, f.store.locks)

	err := f.svc.AddVote(ctx, res.MessageID, []uuid.UUID{salad}, actor)
	assert.ErrorIs(t, err, ErrDuplicateVote)
	err = f.svc.AddVote(ctx, res.MessageID, []uuid.UUID{pizza}, actor)
	assert.ErrorIs(t, err, ErrDuplicateVote)

	votes, _ = f.store.VotesByVoter(ctx, res.Poll.ID, actor)
	assert.Len(t, votes, 1, "exactly one vote per voter on a single-choice poll")

	other := uuid.New()
	err = f.svc.AddVote(ctx, res.MessageID, []uuid.UUID{pizza, salad}, other)
	assert.ErrorIs(t, err, ErrInvalidOption)
}

func TestAddVoteMultiChoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := uuid.New()
	res := createPoll(t, f, actor, true, "A", "B", "C")
	a, b, c := optionID(t, res.Poll, "A"), optionID(t, res.Poll, "B"), optionID(t, res.Poll, "C")

	require.NoError(t, f.svc.AddVote(ctx, res.MessageID, []uuid.UUID{a, b}, actor))

	votes, _ := f.store.VotesByVoter(ctx, res.Poll.ID, actor)
	require.Len(t, votes, 2)
	assert.ElementsMatch(t, []uuid.UUID{a, b}, []uuid.UUID{votes[0].OptionID, votes[1].OptionID})

	err := f.svc.AddVote(ctx, res.MessageID, []uuid.UUID{a}, actor)
	assert.ErrorIs(t, err, ErrDuplicateVote)

	err = f.svc.AddVote(ctx, res.MessageID, []uuid.UUID{c, c}, uuid.New())
	assert.ErrorIs(t, err, ErrDuplicateVote)

	require.NoError(t, f.svc.AddVote(ctx, res.MessageID, []uuid.UUID{c}, actor))
	votes, _ = f.store.VotesByVoter(ctx, res.Poll.ID, actor)
	assert.Len(t, votes, 3)
}

func TestAddVoteRejectsForeignAndEmptyOptions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := uuid.New()
	res := createPoll(t, f, actor, true, "A", "B")

	assert.ErrorIs(t, f.svc.AddVote(ctx, res.MessageID, []uuid.UUID{uuid.New()}, actor), ErrInvalidOption)
	assert.ErrorIs(t, f.svc.AddVote(ctx, res.MessageID, nil, actor), ErrInvalidOption)
	assert.Empty(t, f.store.votes)
}

func TestAddVotePermissionDenied(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	res := createPoll(t, f, owner, false, "A")

	outsider := uuid.New()
	f.authz.denied[outsider] = true
	err := f.svc.AddVote(context.Background(), res.MessageID, []uuid.UUID{res.Poll.Options[0].ID}, outsider)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Empty(t, f.store.votes)
}

func TestGetPollWithoutVotes(t *testing.T) {
	f := newFixture(t)
	actor := uuid.New()
	res := createPoll(t, f, actor, false, "A", "B")

	view, err := f.svc.GetPoll(context.Background(), res.MessageID, actor)
	require.NoError(t, err)
	assert.NotNil(t, view.CurrentUserVotes)
	assert.Empty(t, view.CurrentUserVotes)
	assert.Nil(t, view.Poll.CurrentUserVote)
	assert.Equal(t, 0, view.Poll.TotalVotes)

	raw, err := json.Marshal(view)
	require.NoError(t, err)
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.JSONEq(t, `[]`, string(body["current_user_votes"]))

	var poll map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body["poll"], &poll))
	_, present := poll["current_user_vote"]
	assert.False(t, present)
}

func TestLunchScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := uuid.New()

	res, err := f.svc.CreatePoll(ctx, CreateInput{
		ChannelID: uuid.New(),
		Question:  "Lunch?",
		Options:   []string{"Pizza", "Salad"},
	}, actor)
	require.NoError(t, err)

	view, err := f.svc.GetPoll(ctx, res.MessageID, actor)
	require.NoError(t, err)
	require.Len(t, view.Poll.Options, 2)
	assert.Equal(t, 0, view.Poll.TotalVotes)

	pizza := optionID(t, res.Poll, "Pizza")
	require.NoError(t, f.svc.AddVote(ctx, res.MessageID, []uuid.UUID{pizza}, actor))

	view, err = f.svc.GetPoll(ctx, res.MessageID, actor)
	require.NoError(t, err)
	assert.Equal(t, "Pizza", view.Poll.Options[0].Text)
	assert.Equal(t, 1, view.Poll.Options[0].Votes)
	assert.Equal(t, 100.0, view.Poll.Options[0].Percent)
	assert.Equal(t, "Salad", view.Poll.Options[1].Text)
	assert.Equal(t, 0, view.Poll.Options[1].Votes)
	assert.Equal(t, 1, view.Poll.TotalVotes)
	assert.Equal(t, 1, view.Poll.VoterCount)
	require.Len(t, view.CurrentUserVotes, 1)
	assert.Equal(t, pizza, view.CurrentUserVotes[0].OptionID)
	assert.Equal(t, view.CurrentUserVotes, view.Poll.CurrentUserVote)
}

func TestGetPollCountsVotesAndVoters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := createPoll(t, f, uuid.New(), true, "A", "B", "C")
	a, b := optionID(t, res.Poll, "A"), optionID(t, res.Poll, "B")

	u1, u2 := uuid.New(), uuid.New()
	require.NoError(t, f.svc.AddVote(ctx, res.MessageID, []uuid.UUID{a, b}, u1))
	require.NoError(t, f.svc.AddVote(ctx, res.MessageID, []uuid.UUID{a}, u2))

	view, err := f.svc.GetPoll(ctx, res.MessageID, u2)
	require.NoError(t, err)
	assert.Equal(t, 3, view.Poll.TotalVotes)
	assert.Equal(t, 2, view.Poll.VoterCount)
	assert.Equal(t, 2, view.Poll.Options[0].Votes)
	assert.Equal(t, 66.67, view.Poll.Options[0].Percent)
	assert.Equal(t, 33.33, view.Poll.Options[1].Percent)
	assert.Equal(t, 0.0, view.Poll.Options[2].Percent)
	assert.Len(t, view.CurrentUserVotes, 1)
}

func TestGetPollErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := uuid.New()

	_, err := f.svc.GetPoll(ctx, f.messages.addText(uuid.New()), actor)
	assert.ErrorIs(t, err, ErrNotPoll)

	_, err = f.svc.GetPoll(ctx, uuid.New(), actor)
	assert.ErrorIs(t, err, database.ErrNotFound)

	res := createPoll(t, f, actor, false, "A")
	outsider := uuid.New()
	f.authz.denied[outsider] = true
	_, err = f.svc.GetPoll(ctx, res.MessageID, outsider)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestGetPollReadsThroughCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := uuid.New()
	res := createPoll(t, f, actor, false, "A", "B")

	for i := 0; i < 3; i++ {
		_, err := f.svc.GetPoll(ctx, res.MessageID, actor)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, f.store.getCalls, "created polls are served from the cache")

	require.NoError(t, f.svc.Invalidate(ctx, res.MessageID))
	view, err := f.svc.GetPoll(ctx, res.MessageID, actor)
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.getCalls)
	assert.Equal(t, []string{"A", "B"}, []string{view.Poll.Options[0].Text, view.Poll.Options[1].Text})

	_, err = f.svc.GetPoll(ctx, res.MessageID, actor)
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.getCalls)
}

func TestListVoters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	res := createPoll(t, f, owner, false, "A", "B")
	a := optionID(t, res.Poll, "A")

	voter := uuid.New()
	require.NoError(t, f.svc.AddVote(ctx, res.MessageID, []uuid.UUID{a}, voter))

	list, err := f.svc.ListVoters(ctx, res.MessageID, owner)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0].Text)
	assert.Equal(t, []uuid.UUID{voter}, list[0].Voters)
	assert.NotNil(t, list[1].Voters)
	assert.Empty(t, list[1].Voters)
}

func TestListVotersAnonymous(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := uuid.New()
	res, err := f.svc.CreatePoll(ctx, CreateInput{
		ChannelID:   uuid.New(),
		Question:    "Secret?",
		Options:     []string{"yes", "no"},
		IsAnonymous: true,
	}, actor)
	require.NoError(t, err)

	_, err = f.svc.ListVoters(ctx, res.MessageID, actor)
	assert.ErrorIs(t, err, ErrAnonymousPoll)
}
