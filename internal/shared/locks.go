package shared

import "sync"

// KeyLocks serializes read-modify-write cycles on the same storage key within this process.
// Other processes sharing the store are not coordinated. A key's mutex is dropped once nobody
// holds or waits for it.
type KeyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Lock acquires the mutex of key and returns its unlock function.
func (l *KeyLocks) Lock(key string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*keyLock)
	}
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.mu.Lock()
	return func() {
		kl.mu.Unlock()
		l.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// Len reports how many keys currently have a mutex.
func (l *KeyLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// CollectionLockKey names the lock of a collection stored under prefix+key.
func CollectionLockKey(prefix, key string) string {
	return "collection:" + prefix + key
}
