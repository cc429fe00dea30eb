package repository

import "context"

// Cache is the type-independent view of a Repository used by the HTTP
// layer, the reconcile loop and the composition root.
type Cache interface {
	Name() string
	Len() int
	Dirty() bool
	SetDirty()
	Sync(ctx context.Context, refresh bool) (Outcome, error)
	Warm(ctx context.Context) error
	MarshalRecords() ([]byte, error)
	MarshalRecord(key string) ([]byte, bool, error)
}

var _ Cache = (*Repository[struct{}])(nil)
