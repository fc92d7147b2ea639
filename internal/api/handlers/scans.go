package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/eargollo/dupfind/internal/scan"
	"github.com/eargollo/dupfind/internal/store"
)

// ScansHandler handles scan-related API endpoints.
type ScansHandler struct {
	Store   *store.Store
	Manager *scan.Manager
}

// Create handles POST /api/scans: triggers a manual scan.
func (h *ScansHandler) Create(w http.ResponseWriter, r *http.Request) {
	// The scan outlives the request.
	active, err := h.Manager.Start(context.Background(), "manual")
	if err != nil {
		if errors.Is(err, scan.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, "SCAN_ALREADY_RUNNING", "A scan is already in progress")
			return
		}
		zap.L().Error("scans: start", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to start scan")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"id":           active.ID,
		"status":       scan.StatusRunning,
		"root":         active.Root,
		"started_at":   active.StartedAt.UTC().Format(time.RFC3339),
		"triggered_by": active.TriggeredBy,
	})
}

// Cancel handles DELETE /api/scans/current.
func (h *ScansHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Manager.Cancel()
	if err != nil {
		if errors.Is(err, scan.ErrNoActiveScan) {
			writeError(w, http.StatusNotFound, "NO_ACTIVE_SCAN", "No scan is currently running")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         snap.ID,
		"status":     "cancelling",
		"started_at": snap.StartedAt.UTC().Format(time.RFC3339),
	})
}

// List handles GET /api/scans: returns scan history newest first.
func (h *ScansHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	items, total, err := h.Store.ListScans(r.Context(), limit, offset)
	if err != nil {
		zap.L().Error("scans list", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ListResponse[store.Scan]{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

type scanDetail struct {
	store.Scan
	ErrorList []store.ScanError `json:"error_list"`
}

// Get handles GET /api/scans/{id}.
func (h *ScansHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := scanID(w, r)
	if !ok {
		return
	}

	sc, err := h.Store.GetScan(r.Context(), id)
	if !h.checkLookup(w, err) {
		return
	}
	errs, err := h.Store.ListErrors(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, scanDetail{Scan: sc, ErrorList: errs})
}

// Pairs handles GET /api/scans/{id}/pairs.
func (h *ScansHandler) Pairs(w http.ResponseWriter, r *http.Request) {
	id, ok := scanID(w, r)
	if !ok {
		return
	}
	pairs, err := h.Store.ListPairs(r.Context(), id)
	if !h.checkLookup(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[store.Pair]{Items: pairs, Total: len(pairs), Limit: len(pairs)})
}

// Groups handles GET /api/scans/{id}/groups.
func (h *ScansHandler) Groups(w http.ResponseWriter, r *http.Request) {
	id, ok := scanID(w, r)
	if !ok {
		return
	}
	groups, err := h.Store.ListGroups(r.Context(), id)
	if !h.checkLookup(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[store.Group]{Items: groups, Total: len(groups), Limit: len(groups)})
}

// checkLookup writes 404 or 500 for a failed store lookup and reports
// whether the handler may continue.
func (h *ScansHandler) checkLookup(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Scan not found")
	default:
		zap.L().Error("scans: lookup", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
	return false
}
