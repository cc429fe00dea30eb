// Package repository implements the per-type entity cache: cached reads
// with stable record identity, refresh on demand, and keyed in-place edits
// applied by the synchronizers.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/micro-ha/entitycache/internal/metric"
	"github.com/micro-ha/entitycache/internal/state"
)

// Outcome says how a GetAll call was resolved.
type Outcome int

const (
	// OutcomeCached means the fast path served the cache without a fetch.
	OutcomeCached Outcome = iota
	// OutcomeFresh means the fetched snapshot was applied.
	OutcomeFresh
	// OutcomeUnchanged means the fetch matched the cache; keep what was rendered.
	OutcomeUnchanged
	// OutcomeSuperseded means a newer fetch was applied first; the response was discarded.
	OutcomeSuperseded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCached:
		return "cached"
	case OutcomeFresh:
		return "fresh"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeSuperseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// Snapshot is the resolution of GetAll. Items is nil for OutcomeUnchanged.
type Snapshot[T any] struct {
	Outcome Outcome
	Items   []*T
}

// Request tunes one GetAll call.
type Request[T any] struct {
	// Refresh bypasses the fast path and forces the fetched data to be applied.
	Refresh bool
	// Notify receives the cached records before the fetch is issued, when the
	// cache was already populated.
	Notify func(stale []*T)
}

// FetchFunc loads the full remote collection.
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// DetailFunc loads one record with fields the collection listing omits.
type DetailFunc[T any] func(ctx context.Context, key string) (T, error)

// Persister stores the last applied snapshot of a collection.
type Persister interface {
	SaveSnapshot(ctx context.Context, collection string, payload []byte, hash string) error
	LoadSnapshot(ctx context.Context, collection string) (payload []byte, hash string, ok bool, err error)
}

// Config holds the type-independent repository settings.
type Config struct {
	CacheDisabled bool
	Persister     Persister
	Logger        *slog.Logger
	Metrics       *metric.CacheMetrics
}

// Repository caches one collection of the store.
type Repository[T any] struct {
	store        *state.Store
	coll         *state.Collection[T]
	fetch        FetchFunc[T]
	detail       DetailFunc[T]
	persister    Persister
	logger       *slog.Logger
	metrics      *metric.CacheMetrics
	cacheEnabled bool

	// Guarded by the store lock.
	dirty        bool
	initialFetch bool
	lastHash     string
	issued       uint64
	applied      uint64
	details      map[string]*T

	// Saves are serialized; persisted is the generation last written.
	persistMu sync.Mutex
	persisted uint64
}

// New creates a repository over coll, loading through fetch.
func New[T any](store *state.Store, coll *state.Collection[T], fetch FetchFunc[T], cfg Config) *Repository[T] {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository[T]{
		store:        store,
		coll:         coll,
		fetch:        fetch,
		persister:    cfg.Persister,
		logger:       logger.With("collection", coll.Name()),
		metrics:      cfg.Metrics,
		cacheEnabled: !cfg.CacheDisabled,
		details:      map[string]*T{},
	}
}

// WithDetail routes GetOne hits through fn, caching one result per key.
func (r *Repository[T]) WithDetail(fn DetailFunc[T]) *Repository[T] {
	r.detail = fn
	return r
}

// Name returns the collection name.
func (r *Repository[T]) Name() string {
	return r.coll.Name()
}

// GetAll returns the collection, fetching from the server unless the cache
// is populated, clean and no refresh was requested. Exactly one of the
// snapshot or the error is meaningful; req.Notify runs at most once and
// always before GetAll returns.
func (r *Repository[T]) GetAll(ctx context.Context, req Request[T]) (Snapshot[T], error) {
	var (
		fastPath bool
		stale    []*T
		gen      uint64
	)
	r.store.View(func() {
		if r.cacheEnabled && r.initialFetch && !req.Refresh && !r.dirty {
			fastPath = true
			stale = r.coll.Items()
			return
		}
		if r.cacheEnabled && r.initialFetch {
			stale = r.coll.Items()
		}
		r.issued++
		gen = r.issued
	})

	if fastPath {
		r.metrics.Read(r.Name(), OutcomeCached.String())
		return Snapshot[T]{Outcome: OutcomeCached, Items: stale}, nil
	}
	if req.Notify != nil && stale != nil {
		req.Notify(stale)
	}

	records, err := r.fetch(ctx)
	if err != nil {
		r.metrics.FetchFailed(r.Name())
		return Snapshot[T]{}, fmt.Errorf("fetch %s: %w", r.Name(), err)
	}
	hash, err := contentHash(records)
	if err != nil {
		r.logger.Warn("hashing fetched records failed", "err", err)
		hash = ""
	}

	var snap Snapshot[T]
	r.store.Batch(func() bool {
		if gen < r.applied {
			snap = Snapshot[T]{Outcome: OutcomeSuperseded, Items: r.coll.Items()}
			return false
		}
		r.applied = gen

		changed := !r.cacheEnabled ||
			len(records) != r.coll.Len() ||
			r.dirty ||
			req.Refresh ||
			hash == "" ||
			hash != r.lastHash
		if !changed {
			r.initialFetch = true
			snap = Snapshot[T]{Outcome: OutcomeUnchanged}
			return false
		}

		r.coll.Reconcile(records)
		r.dirty = false
		r.initialFetch = true
		r.lastHash = hash
		snap = Snapshot[T]{Outcome: OutcomeFresh, Items: r.coll.Items()}
		return true
	})

	r.metrics.Read(r.Name(), snap.Outcome.String())
	if snap.Outcome == OutcomeFresh {
		r.metrics.SetSize(r.Name(), len(snap.Items))
		r.persist(ctx, gen, records, hash)
	}
	return snap, nil
}

// Refresh is GetAll with the fast path bypassed.
func (r *Repository[T]) Refresh(ctx context.Context) (Snapshot[T], error) {
	return r.GetAll(ctx, Request[T]{Refresh: true})
}

// GetOne returns the first record satisfying cond. A clean cache hit is
// served directly (through the detail loader when configured); otherwise the
// collection is refreshed and searched again. Not finding a record is not an
// error: ok is false.
func (r *Repository[T]) GetOne(ctx context.Context, cond func(*T) bool, refresh bool) (*T, bool, error) {
	var (
		found  *T
		usable bool
	)
	r.store.View(func() {
		found = r.coll.Find(cond)
		usable = found != nil && r.initialFetch && !r.dirty && !refresh
	})
	if usable {
		if r.detail == nil {
			return found, true, nil
		}
		return r.loadDetail(ctx, found)
	}

	if _, err := r.Refresh(ctx); err != nil {
		return nil, false, err
	}
	r.store.View(func() { found = r.coll.Find(cond) })
	if found == nil {
		return nil, false, nil
	}
	return found, true, nil
}

func (r *Repository[T]) loadDetail(ctx context.Context, record *T) (*T, bool, error) {
	var (
		key    string
		cached *T
	)
	r.store.View(func() {
		key = r.coll.Key(record)
		cached = r.details[key]
	})
	if cached != nil {
		return cached, true, nil
	}

	full, err := r.detail(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("fetch %s %s: %w", r.Name(), key, err)
	}
	r.store.View(func() {
		if existing := r.details[key]; existing != nil {
			cached = existing
			return
		}
		cached = &full
		r.details[key] = cached
	})
	return cached, true, nil
}

// Find returns the first cached record satisfying cond.
func (r *Repository[T]) Find(cond func(*T) bool) *T {
	var found *T
	r.store.View(func() { found = r.coll.Find(cond) })
	return found
}

// FindIndex returns the position of the first cached record satisfying cond, or -1.
func (r *Repository[T]) FindIndex(cond func(*T) bool) int {
	idx := -1
	r.store.View(func() { idx = r.coll.FindIndex(cond) })
	return idx
}

// Items returns the cached records without fetching.
func (r *Repository[T]) Items() []*T {
	var items []*T
	r.store.View(func() { items = r.coll.Items() })
	return items
}

// Len returns the number of cached records.
func (r *Repository[T]) Len() int {
	n := 0
	r.store.View(func() { n = r.coll.Len() })
	return n
}

// Add appends record unless its key is already cached.
func (r *Repository[T]) Add(record *T) bool {
	added := false
	r.store.Batch(func() bool {
		added = r.coll.Append(record)
		return added
	})
	return added
}

// Remove deletes the record with key.
func (r *Repository[T]) Remove(key string) bool {
	removed := false
	r.store.Batch(func() bool {
		removed = r.coll.Remove(key)
		if removed {
			delete(r.details, key)
		}
		return removed
	})
	return removed
}

// RemoveAt deletes the record at position i.
func (r *Repository[T]) RemoveAt(i int) bool {
	removed := false
	r.store.Batch(func() bool {
		if record := r.coll.At(i); record != nil {
			delete(r.details, r.coll.Key(record))
		}
		removed = r.coll.RemoveAt(i)
		return removed
	})
	return removed
}

// Update overwrites the cached record that has record's key. The cached
// pointer is kept, so views holding it observe the new values.
func (r *Repository[T]) Update(record *T) bool {
	updated := false
	r.store.Batch(func() bool {
		updated = r.coll.Replace(record)
		if updated {
			delete(r.details, r.coll.Key(record))
		}
		return updated
	})
	return updated
}

// Patch runs fn on the cached record with key inside one store batch. fn
// reports whether it changed the record; subscribers are signalled only
// then. Patch returns false when the key is absent or fn made no change.
func (r *Repository[T]) Patch(key string, fn func(*T) bool) bool {
	patched := false
	r.store.Batch(func() bool {
		record, ok := r.coll.Get(key)
		if !ok {
			return false
		}
		patched = fn(record)
		if patched {
			delete(r.details, key)
		}
		return patched
	})
	return patched
}

// Key returns the identity key of record.
func (r *Repository[T]) Key(record *T) string {
	return r.coll.Key(record)
}

// SetDirty forces the next read to go to the server.
func (r *Repository[T]) SetDirty() {
	r.store.View(func() {
		r.dirty = true
		clear(r.details)
	})
}

// Dirty reports whether the next read bypasses the cache.
func (r *Repository[T]) Dirty() bool {
	dirty := false
	r.store.View(func() { dirty = r.dirty })
	return dirty
}

// InitialFetch reports whether a fetch has completed.
func (r *Repository[T]) InitialFetch() bool {
	done := false
	r.store.View(func() { done = r.initialFetch })
	return done
}

// Sync runs GetAll and reports only the outcome.
func (r *Repository[T]) Sync(ctx context.Context, refresh bool) (Outcome, error) {
	snap, err := r.GetAll(ctx, Request[T]{Refresh: refresh})
	return snap.Outcome, err
}

// MarshalRecords encodes the cached records as a JSON array.
func (r *Repository[T]) MarshalRecords() ([]byte, error) {
	var (
		data []byte
		err  error
	)
	r.store.View(func() {
		data, err = json.Marshal(r.coll.Items())
	})
	return data, err
}

// MarshalRecord encodes the cached record with key.
func (r *Repository[T]) MarshalRecord(key string) ([]byte, bool, error) {
	var (
		data []byte
		ok   bool
		err  error
	)
	r.store.View(func() {
		var record *T
		record, ok = r.coll.Get(key)
		if ok {
			data, err = json.Marshal(record)
		}
	})
	return data, ok, err
}

// Warm loads the persisted snapshot into an unfetched collection so reads
// have something to show before the first fetch. The first GetAll still
// goes to the server.
func (r *Repository[T]) Warm(ctx context.Context) error {
	if r.persister == nil {
		return nil
	}
	payload, hash, ok, err := r.persister.LoadSnapshot(ctx, r.Name())
	if err != nil {
		return fmt.Errorf("load %s snapshot: %w", r.Name(), err)
	}
	if !ok {
		return nil
	}
	var records []T
	if err := json.Unmarshal(payload, &records); err != nil {
		return fmt.Errorf("decode %s snapshot: %w", r.Name(), err)
	}

	r.store.Batch(func() bool {
		if r.initialFetch {
			return false
		}
		r.coll.Reconcile(records)
		r.lastHash = hash
		return true
	})
	r.logger.Info("collection warmed from snapshot", "records", len(records))
	return nil
}

// persist saves the snapshot applied by generation gen unless a newer one
// has already been written.
func (r *Repository[T]) persist(ctx context.Context, gen uint64, records []T, hash string) {
	if r.persister == nil {
		return
	}
	r.persistMu.Lock()
	defer r.persistMu.Unlock()
	if gen <= r.persisted {
		return
	}
	payload, err := json.Marshal(records)
	if err != nil {
		r.logger.Warn("encoding snapshot failed", "err", err)
		return
	}
	if err := r.persister.SaveSnapshot(ctx, r.Name(), payload, hash); err != nil {
		r.logger.Warn("saving snapshot failed", "err", err)
		return
	}
	r.persisted = gen
}
