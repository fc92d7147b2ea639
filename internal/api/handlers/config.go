package handlers

import (
	"net/http"

	"github.com/eargollo/dupfind/internal/config"
	"github.com/eargollo/dupfind/internal/scan"
)

// ConfigHandler handles GET /api/config.
type ConfigHandler struct {
	Cfg     *config.Config
	Manager *scan.Manager
}

type scanOptionsView struct {
	Root         string   `json:"root"`
	Pattern      string   `json:"pattern"`
	MinFileSize  int64    `json:"min_file_size"`
	ChunkSize    int      `json:"chunk_size"`
	ExcludeDirs  []string `json:"exclude_dirs"`
	Hash         string   `json:"hash"`
	Walkers      int      `json:"walkers"`
	Workers      int      `json:"workers"`
	Verifiers    int      `json:"verifiers"`
	ReadTimeout  string   `json:"read_timeout"`
	SkipSymlinks bool     `json:"skip_symlinks"`
	SkipUnique   bool     `json:"skip_unique_sizes"`
}

type configResponse struct {
	Scan     scanOptionsView `json:"scan"`
	Grouping string          `json:"grouping"`
	Schedule string          `json:"schedule"`
}

// Get returns the options the next scan will run with.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	o := h.Manager.Options()
	excl := o.ExcludeDirs
	if excl == nil {
		excl = []string{}
	}
	writeJSON(w, http.StatusOK, configResponse{
		Scan: scanOptionsView{
			Root:         o.Root,
			Pattern:      o.Pattern,
			MinFileSize:  o.MinFileSize,
			ChunkSize:    o.ChunkSize,
			ExcludeDirs:  excl,
			Hash:         o.Hash,
			Walkers:      o.Walkers,
			Workers:      o.Workers,
			Verifiers:    o.Verifiers,
			ReadTimeout:  o.ReadTimeout.String(),
			SkipSymlinks: o.SkipSymlinks,
			SkipUnique:   o.SkipUniqueSizes,
		},
		Grouping: h.Cfg.Grouping,
		Schedule: h.Cfg.Schedule,
	})
}
