package words

import (
	"fmt"
	"sort"
	"sync"
)

// Initializer is implemented by sources that need setup before first use.
type Initializer interface {
	Init() error
}

var (
	registry   = make(map[string]Source)
	registryMu sync.RWMutex
)

// RegisterSource adds a source under a key.
func RegisterSource(key string, source Source) error {
	registryMu.Lock()
	defer registryMu.Unlock()
	if key == "" {
		return fmt.Errorf("source key cannot be empty")
	}
	if source == nil {
		return fmt.Errorf("source %q is nil", key)
	}
	if _, exists := registry[key]; exists {
		return fmt.Errorf("source already registered for key %q", key)
	}
	registry[key] = source
	return nil
}

// GetSource retrieves a source by key or returns an error if not found.
func GetSource(key string) (Source, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	source, exists := registry[key]
	if !exists {
		return nil, fmt.Errorf("no word source registered for key %q", key)
	}
	return source, nil
}

// InitializeSource runs the source's Init, if it has one.
func InitializeSource(key string) error {
	registryMu.RLock()
	source, exists := registry[key]
	registryMu.RUnlock()
	if !exists {
		return fmt.Errorf("no word source registered for key %q", key)
	}
	if init, ok := source.(Initializer); ok {
		if err := init.Init(); err != nil {
			return fmt.Errorf("failed to init source %q: %w", key, err)
		}
	}
	return nil
}

// SourceKeys lists the registered keys in order.
func SourceKeys() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// UnregisterSource removes a source. Used when a configured source is closed.
func UnregisterSource(key string) {
	registryMu.Lock()
	delete(registry, key)
	registryMu.Unlock()
}
