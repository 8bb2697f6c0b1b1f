package utils

import "sync"

// KeyedMutex serializes work per string key. Used for the per-tenant
// aggregate critical section and the per-parcel ingest unit.
type KeyedMutex struct {
	locks sync.Map // key -> *sync.Mutex
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{}
}

// Lock acquires the mutex for key, creating it on first use. Returns the
// unlock function.
func (m *KeyedMutex) Lock(key string) func() {
	v, _ := m.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
