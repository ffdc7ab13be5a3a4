// Package session holds in-flight contact dialogue state keyed by session id.
//
// State is deliberately ephemeral: a lost session only means the visitor is
// asked again, so the memory driver is the default and Redis is available
// when the relay runs with more than one replica.
package session

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL bounds abandoned dialogues. 30 minutes is generous for a
// four-question form.
const DefaultTTL = 30 * time.Minute

var (
	// ErrInvalidConfig is returned when a driver is missing required options.
	ErrInvalidConfig = errors.New("session: invalid configuration")
	// ErrInvalidStoreType is returned for an unknown driver name.
	ErrInvalidStoreType = errors.New("session: invalid store type")
)

// State is the contact-capture progress for one session.
type State struct {
	ID           string            `json:"id"`
	CurrentField int               `json:"current_field"`
	Fields       map[string]string `json:"fields"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Store is the capability contract consumed by the contact flow.
type Store interface {
	// Get retrieves a session by id. Absent sessions return (nil, nil).
	Get(ctx context.Context, id string) (*State, error)

	// Put creates or replaces a session and refreshes its TTL.
	Put(ctx context.Context, s *State) error

	// Delete removes a session. Deleting an absent session is not an error.
	Delete(ctx context.Context, id string) error

	// Close releases driver resources.
	Close() error
}
