package service

import "sync"

// OwnerLocks serializes optimize passes and status transitions per owner.
// Different owners never wait on each other.
type OwnerLocks struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func NewOwnerLocks() *OwnerLocks {
	return &OwnerLocks{locks: make(map[uint]*sync.Mutex)}
}

// Lock blocks until the owner's lock is held and returns the unlock func.
func (l *OwnerLocks) Lock(ownerID uint) func() {
	l.mu.Lock()
	m, ok := l.locks[ownerID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[ownerID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
