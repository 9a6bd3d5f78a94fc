package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/InViSiB0B/TreasureGoblin/internal/common"
	"github.com/InViSiB0B/TreasureGoblin/internal/service"
)

// MockStore is an in-memory implementation of service.ObjectStore for
// testing.
type MockStore struct {
	PutFunc      func(ctx context.Context, name string, data []byte) (service.Handle, error)
	GetFunc      func(ctx context.Context, h service.Handle) ([]byte, error)
	objects      map[string][]byte
	handles      []service.Handle
	PutCallCount int
	GetCallCount int
	mu           sync.Mutex
}

// NewMockStore creates an empty mock object store.
func NewMockStore() *MockStore {
	return &MockStore{
		objects: make(map[string][]byte),
	}
}

// Put implements the ObjectStore interface.
func (m *MockStore) Put(ctx context.Context, name string, data []byte) (service.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PutCallCount++
	if m.PutFunc != nil {
		return m.PutFunc(ctx, name, data)
	}

	h := service.Handle{
		ID:        fmt.Sprintf("mock-%d", len(m.handles)+1),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	m.objects[h.ID] = stored
	// Newest first, matching the real store's list order.
	m.handles = append([]service.Handle{h}, m.handles...)
	return h, nil
}

// Get implements the ObjectStore interface.
func (m *MockStore) Get(ctx context.Context, h service.Handle) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetCallCount++
	if m.GetFunc != nil {
		return m.GetFunc(ctx, h)
	}

	data, ok := m.objects[h.ID]
	if !ok {
		return nil, common.Permanent(fmt.Errorf("%w: object %s", common.ErrNotFound, h.ID))
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// ListHandles implements the ObjectStore interface.
func (m *MockStore) ListHandles(_ context.Context) ([]service.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	handles := make([]service.Handle, len(m.handles))
	copy(handles, m.handles)
	return handles, nil
}

// SetPutError configures the mock to fail the next Put calls with err.
func (m *MockStore) SetPutError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PutFunc = func(_ context.Context, _ string, _ []byte) (service.Handle, error) {
		return service.Handle{}, err
	}
}

// PutCalls returns how many times Put has been called.
func (m *MockStore) PutCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.PutCallCount
}

// FailPutsThenSucceed fails the first n Put calls with err, then stores
// normally.
func (m *MockStore) FailPutsThenSucceed(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var remaining = n
	m.PutFunc = func(ctx context.Context, name string, data []byte) (service.Handle, error) {
		if remaining > 0 {
			remaining--
			return service.Handle{}, err
		}
		m.PutFunc = nil
		// Re-enter the default path without double-locking.
		h := service.Handle{
			ID:        fmt.Sprintf("mock-%d", len(m.handles)+1),
			Name:      name,
			CreatedAt: time.Now().UTC(),
		}
		stored := make([]byte, len(data))
		copy(stored, data)
		m.objects[h.ID] = stored
		m.handles = append([]service.Handle{h}, m.handles...)
		return h, nil
	}
}

// Reset clears all stored objects and call counts.
func (m *MockStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects = make(map[string][]byte)
	m.handles = nil
	m.PutCallCount = 0
	m.GetCallCount = 0
	m.PutFunc = nil
	m.GetFunc = nil
}
