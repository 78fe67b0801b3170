package audioio

import (
	"sync"
	"time"
)

// Owner identifies who holds the microphone.
type Owner string

const (
	OwnerNone     Owner = ""
	OwnerTurn     Owner = "turn"
	OwnerWakeWord Owner = "wakeword"
)

// DeviceLock grants exclusive use of the microphone to one owner at a time.
type DeviceLock struct {
	mu       sync.Mutex
	owner    Owner
	acquired time.Time
}

// TryAcquire takes the lock for o if nobody holds it.
func (l *DeviceLock) TryAcquire(o Owner) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if o == OwnerNone || l.owner != OwnerNone {
		return false
	}
	l.owner = o
	l.acquired = time.Now()
	return true
}

// Release frees the lock if o holds it. Releasing a lock held by someone
// else is a no-op and returns false.
func (l *DeviceLock) Release(o Owner) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.owner != o || o == OwnerNone {
		return false
	}
	l.owner = OwnerNone
	l.acquired = time.Time{}
	return true
}

// Owner returns the current holder, or OwnerNone.
func (l *DeviceLock) Owner() Owner {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner
}

// Held reports whether anyone holds the lock.
func (l *DeviceLock) Held() bool {
	return l.Owner() != OwnerNone
}

// HeldBy reports whether o holds the lock.
func (l *DeviceLock) HeldBy(o Owner) bool {
	return o != OwnerNone && l.Owner() == o
}

// HeldFor returns how long the current owner has held the lock.
func (l *DeviceLock) HeldFor() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner == OwnerNone {
		return 0
	}
	return time.Since(l.acquired)
}
