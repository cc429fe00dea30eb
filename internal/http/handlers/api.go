package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/micro-ha/entitycache/internal/repository"
	"github.com/micro-ha/entitycache/internal/storage"
)

// Poller triggers an asynchronous full refetch.
type Poller interface {
	TriggerRefresh()
}

// Collections looks up the caches served by the API.
type Collections interface {
	Collection(name string) (repository.Cache, bool)
	Collections() []repository.Cache
}

// ChangeFeed signals after every batch of cache mutations.
type ChangeFeed interface {
	Subscribe() (<-chan struct{}, func())
}

// StreamStatus reports the push connection state.
type StreamStatus interface {
	Connected() bool
}

// Snapshots exposes the persisted collection snapshots.
type Snapshots interface {
	ListSnapshots(ctx context.Context) ([]storage.SnapshotInfo, error)
	DeleteSnapshot(ctx context.Context, collection string) error
}

// API groups HTTP handlers and dependencies.
type API struct {
	collections Collections
	poller      Poller
	changes     ChangeFeed
	stream      StreamStatus
	snapshots   Snapshots
	logger      *slog.Logger
}

// New creates HTTP handlers with explicit dependencies. snapshots is nil
// when persistence is disabled.
func New(collections Collections, poller Poller, changes ChangeFeed, stream StreamStatus, snapshots Snapshots, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		collections: collections,
		poller:      poller,
		changes:     changes,
		stream:      stream,
		snapshots:   snapshots,
		logger:      logger,
	}
}

// Logger returns request logger used by HTTP middleware.
func (a *API) Logger() *slog.Logger {
	return a.logger
}

// Health reports liveness and whether the event stream is connected.
func (a *API) Health(w http.ResponseWriter, _ *http.Request) {
	connected := a.stream != nil && a.stream.Connected()
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "stream_connected": connected})
}

// Refresh triggers an immediate refetch of every collection.
func (a *API) Refresh(w http.ResponseWriter, _ *http.Request) {
	a.poller.TriggerRefresh()
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeRawJSON writes an already encoded document.
func writeRawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
