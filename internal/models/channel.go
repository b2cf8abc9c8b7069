package models

import (
	"time"

	"github.com/google/uuid"
)

// Entity types understood by the read-access check.
const (
	EntityChannel = "channel"
	EntityMessage = "message"
)

// Channel is a conversation that messages and polls belong to.
type Channel struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	IsPrivate bool      `json:"is_private"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}
