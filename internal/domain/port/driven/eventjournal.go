package driven

import (
	"context"

	"github.com/ericfisherdev/edgerandom/internal/domain/model"
)

// EventJournal defines the driven port for recording bootstrap and fetch
// stage transitions.
type EventJournal interface {
	Record(ctx context.Context, event model.BootstrapEvent) error
	// ListRecent returns up to limit events, newest first.
	ListRecent(ctx context.Context, limit int) ([]model.BootstrapEvent, error)
	// ListBySession returns all events of one session in insertion order.
	ListBySession(ctx context.Context, sessionID string) ([]model.BootstrapEvent, error)
}
