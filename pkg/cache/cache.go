// Package cache provides a small read-through record cache keyed by record id.
package cache

import (
	"context"
	"time"
)

// Cache stores JSON-serialisable values by key.
type Cache interface {
	// Get decodes the value stored under key into dst and reports whether it was found.
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, keys ...string) error
}

// Key joins a record kind and id, e.g. Key("poll", id) == "poll:<id>".
func Key(kind, id string) string {
	return kind + ":" + id
}

// DefaultTTL is used when a backend is created with a non-positive TTL.
const DefaultTTL = 5 * time.Minute
