package storage

import (
	"sync"
)

// Compile-time proof that MemBackend satisfies the Backend interface.
var _ Backend = (*MemBackend)(nil)

// MemBackend is an in-memory implementation of Backend for use in unit tests.
// It is exported so that other packages' tests can use it without touching
// the disk.
type MemBackend struct {
	mu      sync.Mutex
	records map[string][]byte
	saves   map[string]int

	// SaveErr, when set, is returned by every Save call.
	SaveErr error
}

// NewMemBackend creates an empty in-memory backend.
func NewMemBackend() *MemBackend {
	return &MemBackend{
		records: make(map[string][]byte),
		saves:   make(map[string]int),
	}
}

func (m *MemBackend) Load(name string, v any) error {
	m.mu.Lock()
	data, ok := m.records[name]
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	return codec.Unmarshal(data, v)
}

func (m *MemBackend) Save(name string, v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	data, err := codec.Marshal(v)
	if err != nil {
		return err
	}
	m.records[name] = data
	m.saves[name]++
	return nil
}

// Put stores raw bytes under name, bypassing encoding. Tests use it to seed
// corrupt or legacy records.
func (m *MemBackend) Put(name string, raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[name] = append([]byte{}, raw...)
}

// Raw returns the bytes last saved under name.
func (m *MemBackend) Raw(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.records[name]
	return data, ok
}

// Saves reports how many successful Save calls name has received.
func (m *MemBackend) Saves(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves[name]
}

func (m *MemBackend) Size() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, d := range m.records {
		n += int64(len(d))
	}
	return n, nil
}

func (m *MemBackend) Healthy() error { return nil }

func (m *MemBackend) Path() string { return "" }

// Close is a no-op for the in-memory backend.
func (m *MemBackend) Close() error { return nil }
