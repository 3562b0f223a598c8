package changestore

import (
	"sync"

	"github.com/rs/zerolog"
)

// KeyedMutex hands out one mutex per identity key so that updates of the
// same resource are serialized without a global lock across resources.
type KeyedMutex struct {
	logger   zerolog.Logger
	mutexes  map[string]*sync.Mutex
	mapMutex sync.RWMutex
}

// NewKeyedMutex creates a new KeyedMutex
func NewKeyedMutex(logger zerolog.Logger) *KeyedMutex {
	return &KeyedMutex{
		logger:  logger.With().Str("component", "KeyedMutex").Logger(),
		mutexes: make(map[string]*sync.Mutex),
	}
}

// Lock locks the mutex of key and returns its unlock function.
func (km *KeyedMutex) Lock(key string) func() {
	m := km.GetMutex(key)
	m.Lock()
	return m.Unlock
}

// GetMutex gets or creates the mutex of key using double-checked locking
func (km *KeyedMutex) GetMutex(key string) *sync.Mutex {
	km.mapMutex.RLock()
	m := km.mutexes[key]
	km.mapMutex.RUnlock()
	if m != nil {
		return m
	}

	km.mapMutex.Lock()
	defer km.mapMutex.Unlock()
	if m, exists := km.mutexes[key]; exists {
		return m
	}
	m = &sync.Mutex{}
	km.mutexes[key] = m
	return m
}

// Cleanup removes the mutexes of keys that are no longer active.
func (km *KeyedMutex) Cleanup(active []string) {
	activeSet := make(map[string]struct{}, len(active))
	for _, k := range active {
		activeSet[k] = struct{}{}
	}

	km.mapMutex.Lock()
	defer km.mapMutex.Unlock()

	removed := 0
	for k := range km.mutexes {
		if _, ok := activeSet[k]; !ok {
			delete(km.mutexes, k)
			removed++
		}
	}
	if removed > 0 {
		km.logger.Debug().
			Int("removed_mutexes", removed).
			Int("remaining_mutexes", len(km.mutexes)).
			Msg("Cleaned up unused identity mutexes")
	}
}

// Count returns the current number of mutexes
func (km *KeyedMutex) Count() int {
	km.mapMutex.RLock()
	defer km.mapMutex.RUnlock()
	return len(km.mutexes)
}
