// Package syncer applies pushed entity events to the repositories. Each
// synchronizer owns one collection and mutates it in place so records held
// by readers stay valid.
package syncer

import (
	"log/slog"

	"github.com/micro-ha/entitycache/internal/event"
	"github.com/micro-ha/entitycache/internal/metric"
	"github.com/micro-ha/entitycache/internal/repository"
	"github.com/micro-ha/entitycache/internal/stream"
)

// Namespace is the first topic segment of every entity event.
const Namespace = "smarthome"

// Subscriber registers handlers for topic patterns. *stream.Client satisfies it.
type Subscriber interface {
	OnEvent(pattern string, handler stream.Handler)
}

// Option configures a synchronizer.
type Option func(*base)

// WithLogger sets the logger used for ignored events.
func WithLogger(logger *slog.Logger) Option {
	return func(b *base) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics counts applied and ignored events.
func WithMetrics(m *metric.SyncMetrics) Option {
	return func(b *base) { b.metrics = m }
}

type base struct {
	collection string
	logger     *slog.Logger
	metrics    *metric.SyncMetrics
}

func newBase(collection string, opts []Option) base {
	b := base{collection: collection, logger: slog.Default()}
	for _, opt := range opts {
		opt(&b)
	}
	b.logger = b.logger.With("collection", collection)
	return b
}

// Pattern returns the subscription pattern for one action on an entity type.
func Pattern(entity, action string) string {
	return Namespace + "/" + entity + "/*/" + action
}

func (b base) subscribe(sub Subscriber, handler stream.Handler, entity string, actions ...string) {
	for _, action := range actions {
		sub.OnEvent(Pattern(entity, action), handler)
	}
}

// record counts the result of applying evt. A false result is a
// precondition mismatch, left for the next full refresh to repair.
func (b base) record(evt event.Event, applied bool) {
	if applied {
		b.metrics.Applied(b.collection, evt.Kind.String())
		return
	}
	b.logger.Debug("event ignored", "topic", evt.Topic, "kind", evt.Kind.String())
	b.metrics.Ignored(b.collection, evt.Kind.String())
}

// added appends the payload record when its identity is absent.
func added[T any](repo *repository.Repository[T], evt event.Event) (bool, error) {
	record := new(T)
	if err := evt.UnmarshalCurrent(record); err != nil {
		return false, err
	}
	if repo.Key(record) == "" {
		return false, nil
	}
	return repo.Add(record), nil
}

// removed drops the record named by the payload, or by the topic id when
// the payload carries no identity.
func removed[T any](repo *repository.Repository[T], evt event.Event) bool {
	return repo.Remove(identity(repo, evt))
}

// updated merges the current half of the payload into the cached record.
func updated[T any](repo *repository.Repository[T], evt event.Event, merge func(dst, src *T)) (bool, error) {
	src := new(T)
	if err := evt.UnmarshalCurrent(src); err != nil {
		return false, err
	}
	key := repo.Key(src)
	if key == "" {
		key = evt.ID
	}
	return repo.Patch(key, func(dst *T) bool {
		merge(dst, src)
		return true
	}), nil
}

func identity[T any](repo *repository.Repository[T], evt event.Event) string {
	record := new(T)
	if err := evt.UnmarshalCurrent(record); err == nil {
		if key := repo.Key(record); key != "" {
			return key
		}
	}
	return evt.ID
}
