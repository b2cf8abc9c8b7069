package models

import (
	"time"

	"github.com/google/uuid"
)

// Poll is a question with an ordered list of options posted into a channel.
// Polls are immutable once created.
type Poll struct {
	ID            uuid.UUID    `json:"id"`
	ChannelID     uuid.UUID    `json:"channel_id"`
	Question      string       `json:"question"`
	Options       []PollOption `json:"options"`
	IsMultiChoice bool         `json:"is_multi_choice"`
	IsAnonymous   bool         `json:"is_anonymous"`
	CreatedBy     uuid.UUID    `json:"created_by"`
	CreatedAt     time.Time    `json:"created_at"`
}

// PollOption is one answer of a poll. Position is the display order, starting at 0.
type PollOption struct {
	ID       uuid.UUID `json:"id"`
	PollID   uuid.UUID `json:"poll_id"`
	Text     string    `json:"text"`
	Position int       `json:"position"`
}

// HasOption reports whether id is one of the poll's options.
func (p *Poll) HasOption(id uuid.UUID) bool {
	for _, o := range p.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}

// PollVote records that a voter chose an option.
type PollVote struct {
	ID        uuid.UUID `json:"id"`
	PollID    uuid.UUID `json:"poll_id"`
	OptionID  uuid.UUID `json:"option_id"`
	VoterID   uuid.UUID `json:"voter_id"`
	CreatedAt time.Time `json:"created_at"`
}

// VoteCounts is the raw aggregate of a poll's votes.
type VoteCounts struct {
	ByOption map[uuid.UUID]int
	Voters   int // distinct voters
}

// OptionResult is an option with its tally.
type OptionResult struct {
	PollOption
	Votes   int     `json:"votes"`
	Percent float64 `json:"percent"`
}

// PollResult is the poll as shown to a reader: options in display order with
// counts. TotalVotes counts vote records; VoterCount counts distinct voters,
// which differ on multi-choice polls.
type PollResult struct {
	ID              uuid.UUID      `json:"id"`
	ChannelID       uuid.UUID      `json:"channel_id"`
	Question        string         `json:"question"`
	IsMultiChoice   bool           `json:"is_multi_choice"`
	IsAnonymous     bool           `json:"is_anonymous"`
	CreatedBy       uuid.UUID      `json:"created_by"`
	CreatedAt       time.Time      `json:"created_at"`
	Options         []OptionResult `json:"options"`
	TotalVotes      int            `json:"total_votes"`
	VoterCount      int            `json:"voter_count"`
	CurrentUserVote []PollVote     `json:"current_user_vote,omitempty"`
}

// PollView is the response of a poll read: the poll plus the reader's own votes.
type PollView struct {
	Poll             PollResult `json:"poll"`
	CurrentUserVotes []PollVote `json:"current_user_votes"`
}

// OptionVoters lists who voted for an option on a non-anonymous poll.
type OptionVoters struct {
	OptionID uuid.UUID   `json:"option_id"`
	Text     string      `json:"text"`
	Voters   []uuid.UUID `json:"voters"`
}
