package session

import "sync"

// KeyLock serializes turns on the same session id. Distinct ids only share
// the map guard, never each other's lock, so independent dialogues never
// wait on one another.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*keyLockEntry
}

type keyLockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyLock creates an empty lock set.
func NewKeyLock() *KeyLock {
	return &KeyLock{locks: make(map[string]*keyLockEntry)}
}

// Lock acquires the lock for key and returns its unlock function. Entries
// are reference counted and removed once the last holder releases.
func (k *KeyLock) Lock(key string) (unlock func()) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyLockEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
