package handlers

import (
	"errors"
	"net/http"

	"github.com/micro-ha/entitycache/internal/storage"
)

// ListSnapshots returns metadata of every persisted collection snapshot.
func (a *API) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	if a.snapshots == nil {
		writeError(w, http.StatusNotFound, "persistence_disabled", "Snapshots are not persisted")
		return
	}
	infos, err := a.snapshots.ListSnapshots(r.Context())
	if err != nil {
		a.logger.Error("list snapshots failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to list snapshots")
		return
	}
	if infos == nil {
		infos = []storage.SnapshotInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": infos})
}

// DeleteSnapshot drops the persisted snapshot of a collection. The cached
// records are untouched; the next fresh fetch writes a new snapshot.
func (a *API) DeleteSnapshot(w http.ResponseWriter, r *http.Request, name string) {
	if a.snapshots == nil {
		writeError(w, http.StatusNotFound, "persistence_disabled", "Snapshots are not persisted")
		return
	}
	if err := a.snapshots.DeleteSnapshot(r.Context(), name); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "Snapshot not found")
			return
		}
		a.logger.Error("delete snapshot failed", "collection", name, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to delete snapshot")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
