package usecase

import "sync"

// OwnerLocks is a set of non-blocking per-owner locks.
type OwnerLocks struct {
	held sync.Map
}

func NewOwnerLocks() *OwnerLocks {
	return &OwnerLocks{}
}

// TryLock claims owner and reports whether it was free.
func (l *OwnerLocks) TryLock(owner string) bool {
	_, loaded := l.held.LoadOrStore(owner, struct{}{})
	return !loaded
}

func (l *OwnerLocks) Unlock(owner string) {
	l.held.Delete(owner)
}

func (l *OwnerLocks) Held(owner string) bool {
	_, ok := l.held.Load(owner)
	return ok
}
