package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/eargollo/dupfind/internal/scan"
	"github.com/eargollo/dupfind/internal/scheduler"
	"github.com/eargollo/dupfind/internal/store"
)

// StatusHandler handles GET /api/status.
type StatusHandler struct {
	Store   *store.Store
	Manager *scan.Manager
	Sched   *scheduler.Scheduler
	Version string
}

type statusResponse struct {
	Version           string          `json:"version"`
	ActiveScan        *activeScanInfo `json:"active_scan"`
	Schedule          scheduleInfo    `json:"schedule"`
	LastCompletedScan *store.Scan     `json:"last_completed_scan"`
}

type activeScanInfo struct {
	ID          int64                 `json:"id"`
	Root        string                `json:"root"`
	StartedAt   time.Time             `json:"started_at"`
	TriggeredBy string                `json:"triggered_by"`
	Progress    scan.ProgressSnapshot `json:"progress"`
}

type scheduleInfo struct {
	Cron      string     `json:"cron"`
	NextRunAt *time.Time `json:"next_run_at"`
}

// ServeHTTP returns the system status as JSON.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Version: h.Version}

	if a := h.Manager.ActiveScan(); a != nil {
		resp.ActiveScan = &activeScanInfo{
			ID:          a.ID,
			Root:        a.Root,
			StartedAt:   a.StartedAt.UTC(),
			TriggeredBy: a.TriggeredBy,
			Progress:    a.Progress.Snapshot(),
		}
	}
	if h.Sched != nil {
		resp.Schedule = scheduleInfo{Cron: h.Sched.CronExpr(), NextRunAt: h.Sched.NextRunAt()}
	}

	last, err := h.Store.LastCompleted(r.Context())
	if err != nil {
		zap.L().Error("status: query last scan", zap.Error(err))
	}
	resp.LastCompletedScan = last

	writeJSON(w, http.StatusOK, resp)
}
