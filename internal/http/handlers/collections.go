package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/micro-ha/entitycache/internal/rest"
)

// OutcomeHeader carries how a collection read was resolved.
const OutcomeHeader = "X-Cache-Outcome"

type collectionSummary struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Dirty bool   `json:"dirty"`
}

// ListCollections returns name, size and dirty flag of every collection.
func (a *API) ListCollections(w http.ResponseWriter, _ *http.Request) {
	caches := a.collections.Collections()
	items := make([]collectionSummary, 0, len(caches))
	for _, cache := range caches {
		items = append(items, collectionSummary{Name: cache.Name(), Count: cache.Len(), Dirty: cache.Dirty()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// GetCollection returns the records of one collection, fetching when the
// cache is cold, dirty or ?refresh=true was given.
func (a *API) GetCollection(w http.ResponseWriter, r *http.Request, name string) {
	cache, ok := a.collections.Collection(name)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "Collection not found")
		return
	}
	refresh, err := parseRefresh(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_refresh", "refresh must be true or false")
		return
	}

	outcome, err := cache.Sync(r.Context(), refresh)
	if err != nil {
		a.logger.Warn("collection fetch failed", "collection", name, "err", err)
		writeFetchError(w, err)
		return
	}
	body, err := cache.MarshalRecords()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode_failed", err.Error())
		return
	}
	w.Header().Set(OutcomeHeader, outcome.String())
	writeRawJSON(w, http.StatusOK, body)
}

// GetRecord returns one record by identity key. A miss on a clean cache
// triggers one forced refresh before answering 404.
func (a *API) GetRecord(w http.ResponseWriter, r *http.Request, name, id string) {
	cache, ok := a.collections.Collection(name)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "Collection not found")
		return
	}

	if _, err := cache.Sync(r.Context(), false); err != nil {
		writeFetchError(w, err)
		return
	}
	body, found, err := cache.MarshalRecord(id)
	if err == nil && !found {
		if _, err = cache.Sync(r.Context(), true); err == nil {
			body, found, err = cache.MarshalRecord(id)
		}
	}
	if err != nil {
		writeFetchError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "not_found", "Record not found")
		return
	}
	writeRawJSON(w, http.StatusOK, body)
}

// MarkDirty forces the next read of a collection to go to the server.
func (a *API) MarkDirty(w http.ResponseWriter, _ *http.Request, name string) {
	cache, ok := a.collections.Collection(name)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "Collection not found")
		return
	}
	cache.SetDirty()
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

// writeFetchError maps a failed server read: a 404 upstream means the
// endpoint is not served, anything else is a bad gateway.
func writeFetchError(w http.ResponseWriter, err error) {
	if rest.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "upstream_not_found", err.Error())
		return
	}
	writeError(w, http.StatusBadGateway, "fetch_failed", err.Error())
}

func parseRefresh(r *http.Request) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("refresh"))
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}
