package secrets

import "sync"

// MockStore is an in-memory Store for tests
type MockStore struct {
	values map[string]string
	mu     sync.RWMutex

	// Error injection for testing
	GetError error
	SetError error
}

// NewMockStore creates an empty mock store
func NewMockStore() *MockStore {
	return &MockStore{values: make(map[string]string)}
}

func (m *MockStore) Get(name string) (string, error) {
	if m.GetError != nil {
		return "", m.GetError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.values[name]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (m *MockStore) Set(name, value string) error {
	if m.SetError != nil {
		return m.SetError
	}
	if name == "" {
		return ErrInvalidName
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] = value
	return nil
}

func (m *MockStore) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.values[name]; !ok {
		return ErrNotFound
	}
	delete(m.values, name)
	return nil
}

// Count returns the number of stored secrets
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}
