package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eargollo/dupfind/internal/config"
	"github.com/eargollo/dupfind/internal/db"
	"github.com/eargollo/dupfind/internal/msglog"
	"github.com/eargollo/dupfind/internal/report"
	"github.com/eargollo/dupfind/internal/scan"
	"github.com/eargollo/dupfind/internal/store"
)

// progressInterval is how often a running scan logs its counters.
const progressInterval = 5 * time.Second

type scanFlags struct {
	pattern   string
	minSize   int64
	chunkSize int
	excludes  []string
	hash      string
	workers   int
	format    string
	groups    bool
	dbPath    string
	record    bool
	msgDir    string
	noMsgLog  bool
}

func newScanCmd(g *globalFlags) *cobra.Command {
	f := &scanFlags{}
	c := &cobra.Command{
		Use:   "scan [root]",
		Short: "Scan a directory tree for duplicate files",
		Long: `Scan walks root (default: scan.root from the config file), reports every
file whose content equals an earlier file, and prints a report.

Example:
  dupfind scan ~/Pictures --pattern '**/*.jpg' --exclude .cache
  dupfind scan . --format json --groups
  dupfind scan . --record --config dupfind.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, g, f, args)
		},
	}

	fl := c.Flags()
	fl.StringVarP(&f.pattern, "pattern", "p", "", "Glob selecting files, matched against basename or relative path")
	fl.Int64Var(&f.minSize, "min-size", 0, "Minimum file size in bytes")
	fl.IntVar(&f.chunkSize, "chunk-size", 0, "Read chunk size in bytes")
	fl.StringArrayVarP(&f.excludes, "exclude", "e", nil, "Directory name or path to skip (repeatable)")
	fl.StringVar(&f.hash, "hash", "", fmt.Sprintf("Fingerprint hash (%v)", scan.HashNames))
	fl.IntVarP(&f.workers, "workers", "w", 0, "Number of fingerprint workers")
	fl.StringVarP(&f.format, "format", "f", report.Text, fmt.Sprintf("Report format (%v)", report.Formats))
	fl.BoolVar(&f.groups, "groups", false, "Report N-way groups instead of pairs")
	fl.StringVar(&f.dbPath, "db", "", "Record the scan in this SQLite database")
	fl.BoolVar(&f.record, "record", false, "Record the scan in db_path from the config file")
	fl.StringVar(&f.msgDir, "msg-dir", "", "Directory for the message log")
	fl.BoolVar(&f.noMsgLog, "no-msg-log", false, "Disable the message log")
	return c
}

// recording reports whether the scan is written to cfg.DBPath. CLI scans
// are recorded only on request: --db names the database, --record uses
// db_path from the config file.
func (f *scanFlags) recording(cmd *cobra.Command) bool {
	return f.record || cmd.Flags().Changed("db")
}

// apply copies every flag the user set onto cfg.
func (f *scanFlags) apply(cmd *cobra.Command, cfg *config.Config, args []string) {
	changed := cmd.Flags().Changed
	if len(args) == 1 {
		cfg.Scan.Root = args[0]
	}
	if changed("pattern") {
		cfg.Scan.Pattern = f.pattern
	}
	if changed("min-size") {
		cfg.Scan.MinFileSize = f.minSize
	}
	if changed("chunk-size") {
		cfg.Scan.ChunkSize = f.chunkSize
	}
	if changed("exclude") {
		cfg.Scan.ExcludeDirs = append(slices.Clone(cfg.Scan.ExcludeDirs), f.excludes...)
	}
	if changed("hash") {
		cfg.Scan.Hash = f.hash
	}
	if changed("workers") {
		cfg.Scan.Workers = f.workers
	}
	if changed("groups") {
		cfg.Grouping = config.GroupingPairs
		if f.groups {
			cfg.Grouping = config.GroupingGroups
		}
	}
	if changed("db") {
		cfg.DBPath = f.dbPath
	}
	if changed("msg-dir") {
		cfg.MessageLog.Dir = f.msgDir
	}
	if f.noMsgLog {
		cfg.MessageLog.Enabled = false
	}
}

func runScan(cmd *cobra.Command, g *globalFlags, f *scanFlags, args []string) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	f.apply(cmd, cfg, args)
	if !slices.Contains(report.Formats, f.format) {
		return fmt.Errorf("unknown report format %q", f.format)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	opts, err := cfg.ScanOptions()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var msgs scan.MessageSink
	if cfg.MessageLog.Enabled {
		reg := msglog.NewRegistry(msglog.Options{
			Dir:            cfg.MessageLog.Dir,
			Mode:           cfg.MessageLog.Mode,
			FlushThreshold: cfg.MessageLog.FlushThreshold,
			Screen:         cmd.ErrOrStderr(),
		})
		defer reg.Close()
		w, err := reg.Open("dupfind", cfg.MessageLog.Prefix)
		if err != nil {
			return fmt.Errorf("failed to open message log: %w", err)
		}
		msgs = w
		log.Debug("message log opened", zap.String("path", w.Path()))
	}

	var st *store.Store
	if f.recording(cmd) {
		database, err := db.OpenAndMigrate(ctx, cfg.DBPath)
		if err != nil {
			return err
		}
		defer database.Close()
		st = store.New(database)
	}

	res, err := execute(ctx, afero.NewOsFs(), opts, st, msgs, log)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	return report.Write(out, f.format, res, report.Options{
		Groups: cfg.Grouping == config.GroupingGroups,
		Color:  report.IsTerminal(out),
	})
}

// execute runs one scan, recording it in st when st is not nil.
func execute(ctx context.Context, fsys afero.Fs, opts scan.Options, st *store.Store, msgs scan.MessageSink, log *zap.Logger) (*scan.Result, error) {
	startedAt := time.Now()
	var scanID int64
	if st != nil {
		id, err := st.BeginScan(ctx, opts, "cli", startedAt)
		if err != nil {
			return nil, err
		}
		scanID = id
		log = log.With(zap.Int64("scan_id", scanID))
	}

	progress := &scan.Progress{}
	stopProgress := logProgress(progress, log)
	res, runErr := scan.New(fsys, opts, scan.WithLogger(log)).Run(ctx, progress, msgs)
	stopProgress()

	if st != nil {
		status := scan.StatusCompleted
		switch {
		case errors.Is(runErr, context.Canceled):
			status = scan.StatusCancelled
		case runErr != nil:
			status = scan.StatusFailed
		}
		if err := st.FinishScan(context.Background(), scanID, status, res, runErr, time.Now()); err != nil {
			log.Error("finalise scan record", zap.Error(err))
		}
	}
	if runErr != nil {
		return nil, runErr
	}

	log.Debug("scan summary",
		zap.Int64("confirmed", res.Stats.Confirmed),
		zap.String("reclaimable", humanize.Bytes(uint64(res.Stats.ReclaimableBytes))),
		zap.Duration("elapsed", res.Stats.Elapsed))
	return res, nil
}

// logProgress logs a snapshot every progressInterval until the returned
// func is called.
func logProgress(p *scan.Progress, log *zap.Logger) (stop func()) {
	done := make(chan struct{})
	ticker := time.NewTicker(progressInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				s := p.Snapshot()
				log.Info("scan progress",
					zap.Int64("discovered", s.FilesDiscovered),
					zap.Int64("fingerprinted", s.FilesFingerprinted),
					zap.String("read", humanize.Bytes(uint64(s.BytesRead))),
					zap.Int64("confirmed", s.Confirmed))
			}
		}
	}()
	return func() { close(done) }
}
