// Package lock serializes entity creation per normalized name. Two ingestion
// jobs resolving the same unknown name must produce one entity, not two.
package lock

import (
	"context"
	"sync"
)

// InMemoryLocker keys a mutex per name. Suitable for a single process only;
// multi-instance deployments use the Redis locker.
type InMemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func NewInMemoryLocker() *InMemoryLocker {
	return &InMemoryLocker{locks: make(map[string]*entry)}
}

func (l *InMemoryLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	acquired := make(chan struct{})
	go func() {
		e.mu.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		return func() {
			e.mu.Unlock()
			l.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(l.locks, key)
			}
			l.mu.Unlock()
		}, nil
	case <-ctx.Done():
		// The goroutine will eventually take the mutex; hand it straight back.
		go func() {
			<-acquired
			e.mu.Unlock()
			l.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(l.locks, key)
			}
			l.mu.Unlock()
		}()
		return nil, ctx.Err()
	}
}
