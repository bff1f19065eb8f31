package services

import (
	"context"
	"sync"
	"time"
)

// LocalLocker is an in-process ClaimLocker used when Redis is unavailable.
// It only serializes settlements within one instance.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time)}
}

func (l *LocalLocker) TryLock(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if expiry, ok := l.held[key]; ok && now.Before(expiry) {
		return nil, false, nil
	}
	expiry := now.Add(ttl)
	l.held[key] = expiry

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			// a holder whose ttl ran out must not drop a newer holder's entry
			if l.held[key].Equal(expiry) {
				delete(l.held, key)
			}
		})
	}, true, nil
}

func claimLockKey(claimID int64) string {
	return itoa(claimID)
}
