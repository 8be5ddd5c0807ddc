package subscription

import (
	"context"
	"sync"

	domain "github.com/oshokin/doorwatch/internal/domain/door"
)

// MemoryRepository keeps subscriptions in process memory.
// It is intended for tests and for running without a database.
type MemoryRepository struct {
	// records maps subscription id to its record.
	records map[string]*domain.Subscription
	// mu protects records.
	mu sync.RWMutex
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records: make(map[string]*domain.Subscription),
	}
}

// Register stores endpoint under a new id.
func (r *MemoryRepository) Register(_ context.Context, endpoint []byte) (string, error) {
	if len(endpoint) == 0 {
		return "", ErrEmptyEndpoint
	}

	record := &domain.Subscription{
		CreatedAt: now(),
		ID:        newID(),
		Endpoint:  cloneBytes(endpoint),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[record.ID] = record

	return record.ID, nil
}

// Exists reports whether id is stored.
func (r *MemoryRepository) Exists(_ context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.records[id]

	return ok, nil
}

// ListAll returns copies of every stored endpoint.
func (r *MemoryRepository) ListAll(context.Context) ([][]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([][]byte, 0, len(r.records))
	for _, record := range r.records {
		result = append(result, cloneBytes(record.Endpoint))
	}

	return result, nil
}

// Close is a no-op.
func (r *MemoryRepository) Close() error {
	return nil
}
