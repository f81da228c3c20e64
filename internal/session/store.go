// Package session persists play sessions. Store is the key/value contract
// every backend satisfies; Slot layers one game's save on top of it.
package session

import (
	"context"

	"github.com/google/uuid"
)

type Store[T any] interface {
	Get(ctx context.Context, id string) (T, bool, error)
	Put(ctx context.Context, id string, v T) error
	Delete(ctx context.Context, id string) error
	NewID() string
}

// newID returns a random identifier for players and sessions.
func newID() string {
	return uuid.NewString()
}
