package domain

import (
	"context"
	"errors"
)

var (
	// ErrSessionNotFound is returned when a session id is unknown
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoAssistantMessage is returned when the last message of a session
	// is not an assistant turn
	ErrNoAssistantMessage = errors.New("last message is not an assistant message")
)

// KeyValueStore is the durable key to string surface sessions persist to.
// Get reports found=false for a missing key without an error.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}
