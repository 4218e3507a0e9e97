package cache

import (
	"context"
	"sync"
	"time"
)

// InMemoryRunLock is a run lock local to the process.
// It is suitable for single-instance deployments and testing.
type InMemoryRunLock struct {
	mu        sync.Mutex
	expiries  map[string]time.Time
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryRunLock creates an in-memory run lock.
// It starts a background goroutine that drops expired locks.
func NewInMemoryRunLock() *InMemoryRunLock {
	l := &InMemoryRunLock{
		expiries: make(map[string]time.Time),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	l.wg.Add(1)
	go l.cleanupLoop()

	return l
}

// Acquire takes the lock for ttl; false means it is held and not expired
func (l *InMemoryRunLock) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if exp, held := l.expiries[key]; held && now.Before(exp) {
		return false, nil
	}
	l.expiries[key] = now.Add(ttl)
	return true, nil
}

// Release frees the lock
func (l *InMemoryRunLock) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.expiries, key)
	return nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (l *InMemoryRunLock) Close() error {
	l.closeOnce.Do(func() {
		close(l.stopChan)
		l.wg.Wait()
	})
	return nil
}

func (l *InMemoryRunLock) cleanupLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

func (l *InMemoryRunLock) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, exp := range l.expiries {
		if !now.Before(exp) {
			delete(l.expiries, key)
		}
	}
}

// Size returns the number of held or not yet cleaned locks
func (l *InMemoryRunLock) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.expiries)
}
