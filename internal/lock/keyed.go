package lock

import "sync"

// Keyed hands out one mutex per key so operations on the same
// conversation run one at a time while distinct conversations proceed in
// parallel. Mutexes are created lazily and never reclaimed; the key space
// (conversations the account touches) is small and bounded in practice.
type Keyed struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKeyed creates an empty keyed mutex set.
func NewKeyed() *Keyed {
	return &Keyed{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key, blocking until it is free.
func (k *Keyed) Lock(key string) {
	k.get(key).Lock()
}

// Unlock releases the mutex for key. Calling Unlock for a key that was
// never locked panics, same as sync.Mutex.
func (k *Keyed) Unlock(key string) {
	k.get(key).Unlock()
}

func (k *Keyed) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}
