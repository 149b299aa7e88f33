package lock

import (
	"context"
	"sync"
)

// memoryLocker is the single-node backend: a mutex-guarded set of held names.
type memoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLocker() Locker {
	return &memoryLocker{held: make(map[string]struct{})}
}

func (l *memoryLocker) TryAcquire(ctx context.Context, name string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[name]; ok {
		return false, nil
	}
	l.held[name] = struct{}{}
	return true, nil
}

func (l *memoryLocker) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.held, name)
	return nil
}
