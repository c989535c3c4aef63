package ports

import (
	"context"

	"github.com/resolvd/resolvd/pkg/domain"
)

// SessionStore defines the interface for persisting session state.
// Implementations must hand out isolated copies so callers cannot mutate
// stored state through shared pointers.
type SessionStore interface {
	// Save persists the session keyed by its ID.
	Save(ctx context.Context, session *domain.Session) error

	// Load retrieves a session by ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.Session, error)

	// Delete removes the session.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of all stored sessions.
	List(ctx context.Context) ([]string, error)
}
