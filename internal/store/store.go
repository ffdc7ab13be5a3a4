// Package store persists completed chat exchanges and visitor records.
// The relay core only issues create/query calls; everything behind this
// interface is an external collaborator.
package store

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a ULID. Monotonic entropy keeps ids created within the same
// millisecond in creation order, which ListTranscripts pagination relies on.
func NewID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Transcript source values. The Spanish form sources come straight from the
// frontend contract and are part of the wire format.
const (
	SourceModel       = "model"
	SourceDictionary  = "dictionary"
	SourceContactForm = "formulario-contacto"
	SourceContactDone = "formulario-completo"
	SourceError       = "error"
)

// Transcript is one durable prompt/reply exchange. Never mutated after
// creation.
type Transcript struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	Prompt    string    `json:"prompt"`
	Reply     string    `json:"reply"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// Location is the geolocation attached to a visitor.
type Location struct {
	Country string  `json:"country"`
	City    string  `json:"city"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Visitor is one anonymous visit identity.
type Visitor struct {
	VisitorID string    `json:"visitor_id"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	Location  *Location `json:"location,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter narrows transcript queries. Results are newest-first; BeforeID pages
// backwards through ULID-ordered records.
type Filter struct {
	SessionID string
	Limit     int
	BeforeID  string
}

// Store is the persistence collaborator contract.
type Store interface {
	// CreateTranscript durably records one exchange. Assigns ID when empty.
	CreateTranscript(ctx context.Context, t *Transcript) error

	// ListTranscripts returns records matching the filter, newest first.
	ListTranscripts(ctx context.Context, f Filter) ([]Transcript, error)

	// CreateVisitor records a visit identity.
	CreateVisitor(ctx context.Context, v *Visitor) error

	// SetVisitorLocation attaches geolocation to an existing visitor.
	SetVisitorLocation(ctx context.Context, visitorID string, loc Location) error

	// Close releases driver resources.
	Close(ctx context.Context) error
}
