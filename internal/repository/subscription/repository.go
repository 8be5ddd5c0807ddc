package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence operations for push subscriptions.
// Records are only ever added; there is no update or delete.
type Repository interface {
	// Register stores endpoint under a new unique id and returns the id.
	Register(ctx context.Context, endpoint []byte) (string, error)
	// Exists reports whether a subscription with id is stored.
	Exists(ctx context.Context, id string) (bool, error)
	// ListAll returns every stored endpoint descriptor in no particular order.
	ListAll(ctx context.Context) ([][]byte, error)
	// Close releases the backend connection.
	Close() error
}

var (
	// ErrUnavailable wraps every backend failure so callers can tell a broken
	// store apart from bad input.
	ErrUnavailable = errors.New("subscription store unavailable")
	// ErrEmptyEndpoint is returned when Register receives no descriptor.
	ErrEmptyEndpoint = errors.New("endpoint descriptor is empty")
)

// newID returns a random (version 4) UUID. Browsers subscribe independently,
// so ids must not come from a shared counter.
func newID() string {
	return uuid.NewString()
}

// now returns the registration timestamp.
func now() time.Time {
	return time.Now().UTC()
}

// unavailable wraps a backend error with ErrUnavailable and the failed operation.
func unavailable(operation string, err error) error {
	return fmt.Errorf("%s: %w: %w", operation, ErrUnavailable, err)
}

// cloneBytes copies a descriptor so stored records never alias caller memory.
func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}

	cloned := make([]byte, len(b))
	copy(cloned, b)

	return cloned
}
