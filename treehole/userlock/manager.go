// Package userlock serializes all progression mutations for one user.
// A like and a check-in arriving together for the same user run one after
// the other; different users never contend.
package userlock

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	mu       sync.Mutex
	lastUsed time.Time
}

type Manager struct {
	locks       sync.Map // int64 -> *entry
	idleTimeout time.Duration
}

func NewManager(idleTimeout time.Duration) *Manager {
	if idleTimeout <= 0 {
		idleTimeout = 5 * time.Minute
	}
	return &Manager{idleTimeout: idleTimeout}
}

// Lock acquires the per-user lock and returns the unlock func.
func (m *Manager) Lock(userID int64) func() {
	for {
		v, _ := m.locks.LoadOrStore(userID, &entry{})
		e := v.(*entry)
		e.mu.Lock()
		// Cleanup may have dropped this entry between the map lookup
		// and the mutex acquisition. A dropped entry no longer
		// excludes callers that mapped to its replacement, so retry
		// until we hold the entry the map currently serves.
		if cur, ok := m.locks.Load(userID); !ok || cur.(*entry) != e {
			e.mu.Unlock()
			continue
		}
		e.lastUsed = time.Now()
		return e.mu.Unlock
	}
}

func (m *Manager) cleanupIdleLocks() {
	cutoff := time.Now().Add(-m.idleTimeout)
	m.locks.Range(func(key, value interface{}) bool {
		e := value.(*entry)
		// Only drop entries nobody is holding or waiting on.
		if e.mu.TryLock() {
			if e.lastUsed.Before(cutoff) {
				m.locks.Delete(key)
			}
			e.mu.Unlock()
		}
		return true
	})
}

// StartCleanupRoutine periodically drops locks for users with no recent
// mutations so the map does not grow without bound.
func (m *Manager) StartCleanupRoutine(ctx context.Context) {
	ticker := time.NewTicker(m.idleTimeout)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.cleanupIdleLocks()
			}
		}
	}()
}
