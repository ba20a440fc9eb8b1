// Package observable provides the read-only state projections handed to the
// presentation layer. Each Value has a single owner that calls Set; everyone
// else sees it through Readable.
package observable

import "sync"

// Readable is the read-only view of a Value.
type Readable[T any] interface {
	Get() T
	Watch(fn func(T)) (cancel func())
}

// Value holds the current state of one entity and notifies watchers on change.
// Slices and pointers passed to Set must not be mutated afterwards.
type Value[T any] struct {
	mu       sync.RWMutex
	current  T
	nextID   int
	watchers map[int]func(T)
}

func New[T any](initial T) *Value[T] {
	return &Value[T]{
		current:  initial,
		watchers: make(map[int]func(T)),
	}
}

func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// Set replaces the held value and calls every watcher with it, outside the lock.
func (v *Value[T]) Set(next T) {
	v.mu.Lock()
	v.current = next
	fns := make([]func(T), 0, len(v.watchers))
	for _, fn := range v.watchers {
		fns = append(fns, fn)
	}
	v.mu.Unlock()

	for _, fn := range fns {
		fn(next)
	}
}

// Watch registers fn for future changes. The returned cancel is idempotent.
func (v *Value[T]) Watch(fn func(T)) func() {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.watchers[id] = fn
	v.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.watchers, id)
			v.mu.Unlock()
		})
	}
}

// WatcherCount returns the number of registered watchers.
func (v *Value[T]) WatcherCount() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.watchers)
}
