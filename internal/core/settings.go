package core

import "sync"

// SettingsStore persists the hub connection key for the host application.
// The real persistence layer belongs to the host; the gateway only reads
// and writes through this interface.
type SettingsStore interface {
	ConnectionKey() (string, error)
	SetConnectionKey(key string) error
}

// MemorySettings is an in-process SettingsStore, used by tests and by hosts
// without durable settings.
type MemorySettings struct {
	mu  sync.RWMutex
	key string
}

func NewMemorySettings(key string) *MemorySettings {
	return &MemorySettings{key: key}
}

func (m *MemorySettings) ConnectionKey() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.key, nil
}

func (m *MemorySettings) SetConnectionKey(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = key
	return nil
}
