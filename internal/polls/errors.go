package polls

import "errors"

var (
	// ErrPermissionDenied means the acting user cannot read the channel or message.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidPoll means the poll definition is unusable (blank question, no options).
	ErrInvalidPoll = errors.New("invalid poll")
	// ErrInvalidOption means a vote referenced no option, a foreign option, or too many options.
	ErrInvalidOption = errors.New("invalid option")
	// ErrDuplicateVote means the vote would break one-vote-per-voter or one-vote-per-option.
	ErrDuplicateVote = errors.New("duplicate vote")
	// ErrNotPoll means the message exists but carries no poll.
	ErrNotPoll = errors.New("message is not a poll")
	// ErrAnonymousPoll means voter identities of the poll are hidden.
	ErrAnonymousPoll = errors.New("poll is anonymous")
)
