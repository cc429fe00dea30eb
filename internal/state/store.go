package state

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrTypeMismatch means a collection name is already registered with another record type.
var ErrTypeMismatch = errors.New("collection registered with a different type")

// Store is the application-state container shared by repositories and
// synchronizers. Its mutex is the single writer lock for every collection
// it holds; collections themselves are not safe for concurrent use.
type Store struct {
	mu          sync.Mutex
	collections map[string]any

	subMu       sync.Mutex
	subscribers map[int]chan struct{}
	nextSubID   int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		collections: map[string]any{},
		subscribers: map[int]chan struct{}{},
	}
}

// Register returns the collection stored under name, creating it on first use.
func Register[T any](s *Store, name string, key func(*T) string) (*Collection[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.collections[name]; ok {
		coll, ok := existing.(*Collection[T])
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrTypeMismatch, name)
		}
		return coll, nil
	}
	coll := newCollection(name, key)
	s.collections[name] = coll
	return coll, nil
}

// Names lists registered collection names in lexical order.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Batch runs fn with exclusive access to every collection. If fn reports a
// change, subscribers are signalled once after the lock is released, so a
// burst of mutations inside one batch yields a single notification.
func (s *Store) Batch(fn func() bool) {
	if s.apply(fn) {
		s.signal()
	}
}

func (s *Store) apply(fn func() bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

// View runs fn with exclusive access and without signalling subscribers.
func (s *Store) View(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// Subscribe returns a channel that receives a value after changed batches.
// Pending signals coalesce: a slow reader sees at most one queued value.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan struct{}, 1)
	s.subscribers[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers, id)
			s.subMu.Unlock()
		})
	}
	return ch, cancel
}

func (s *Store) signal() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
