package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageType distinguishes plain messages from poll messages.
type MessageType string

const (
	MessageTypeText MessageType = "Text"
	MessageTypePoll MessageType = "Poll"
)

// Message is a channel message. Poll messages carry PollID and a plain-text
// summary of the poll in Content so they show up in search.
type Message struct {
	ID          uuid.UUID   `json:"id"`
	ChannelID   uuid.UUID   `json:"channel_id"`
	OwnerID     uuid.UUID   `json:"owner_id"`
	Text        string      `json:"text"`
	Content     string      `json:"content"`
	MessageType MessageType `json:"message_type"`
	PollID      *uuid.UUID  `json:"poll_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}
