// Package dedupe remembers the outcome of requests by idempotency key, so a
// retried request replays its first result instead of repeating the write.
package dedupe

import (
	"container/list"
	"context"
	"errors"
	"sync"
)

// ErrInFlight is returned when a key is still being processed.
var ErrInFlight = errors.New("request with this idempotency key is still in progress")

type entry[V any] struct {
	key   string
	done  bool
	value V
}

// Tracker records keys and their results. Once full, the oldest completed
// key is forgotten first. A zero or negative size disables tracking.
type Tracker[V any] struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // oldest at the front
	maxSize int
}

// New returns an empty Tracker.
func New[V any](opts ...Option) *Tracker[V] {
	o := options{maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(&o)
	}
	return &Tracker[V]{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		maxSize: o.maxSize,
	}
}

// SeenAndRecord atomically checks key and records it as pending if new.
// For a new key it returns seen=false and the caller must later call
// Complete or Unrecord. For a completed key it returns the stored value.
// For a pending key it returns ErrInFlight.
func (t *Tracker[V]) SeenAndRecord(_ context.Context, key string) (value V, seen bool, err error) {
	if t.maxSize <= 0 {
		return value, false, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if el, ok := t.entries[key]; ok {
		e := el.Value.(*entry[V])
		if !e.done {
			return value, true, ErrInFlight
		}
		return e.value, true, nil
	}

	for t.order.Len() >= t.maxSize {
		if !t.evictOldestDone() {
			break
		}
	}
	t.entries[key] = t.order.PushBack(&entry[V]{key: key})
	return value, false, nil
}

// evictOldestDone drops the oldest completed key. Pending keys are never
// evicted, so the tracker may briefly hold more than maxSize of them.
func (t *Tracker[V]) evictOldestDone() bool {
	for el := t.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry[V])
		if e.done {
			t.order.Remove(el)
			delete(t.entries, e.key)
			return true
		}
	}
	return false
}

// Complete stores the result of a pending key. Keys evicted in the meantime
// are ignored.
func (t *Tracker[V]) Complete(_ context.Context, key string, value V) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if el, ok := t.entries[key]; ok {
		e := el.Value.(*entry[V])
		e.done, e.value = true, value
	}
}

// Unrecord forgets key so the request can be retried, e.g. after it failed.
func (t *Tracker[V]) Unrecord(_ context.Context, key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if el, ok := t.entries[key]; ok {
		t.order.Remove(el)
		delete(t.entries, key)
	}
}

// Size returns the number of tracked keys.
func (t *Tracker[V]) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.order.Len()
}
