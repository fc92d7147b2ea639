package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eargollo/dupfind/internal/api"
	"github.com/eargollo/dupfind/internal/db"
	"github.com/eargollo/dupfind/internal/msglog"
	"github.com/eargollo/dupfind/internal/scan"
	"github.com/eargollo/dupfind/internal/scheduler"
	"github.com/eargollo/dupfind/internal/store"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var dbPath, addr string
	c := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scan scheduler",
		Long: `Serve exposes scan control and scan history over HTTP and, when
schedule is set in the config file, runs scans on that cron schedule.

Example:
  dupfind serve --config dupfind.yaml --http :8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("db") {
				cfg.DBPath = dbPath
			}
			if cmd.Flags().Changed("http") {
				cfg.HTTPAddr = addr
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
			log.Info("dupfind starting",
				zap.String("version", Version),
				zap.String("http_addr", cfg.HTTPAddr),
				zap.String("db_path", cfg.DBPath),
				zap.String("root", opts.Root))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			database, err := db.OpenAndMigrate(ctx, cfg.DBPath)
			if err != nil {
				return err
			}
			defer database.Close()
			st := store.New(database)

			// Scans left running by a previous process can never finish.
			if n, err := st.MarkStaleScansFailed(ctx); err != nil {
				log.Warn("mark stale scans", zap.Error(err))
			} else if n > 0 {
				log.Info("marked stale scans failed", zap.Int64("count", n))
			}

			mgr := scan.NewManager(afero.NewOsFs(), opts, st, log)
			if cfg.MessageLog.Enabled {
				reg := msglog.NewRegistry(msglog.Options{
					Dir:            cfg.MessageLog.Dir,
					Mode:           cfg.MessageLog.Mode,
					FlushThreshold: cfg.MessageLog.FlushThreshold,
					Screen:         cmd.ErrOrStderr(),
				})
				defer reg.Close()
				mgr.SetMessages(scanMessages(reg, cfg.MessageLog.Prefix))
			}

			sched := scheduler.New(log)
			if err := sched.SetJob(cfg.Schedule, func() {
				log.Info("scheduled scan triggered")
				if _, err := mgr.Start(context.Background(), "schedule"); err != nil {
					log.Warn("scheduled scan start", zap.Error(err))
				}
			}); err != nil {
				return fmt.Errorf("schedule: %w", err)
			}
			sched.Start()
			defer sched.Stop()

			srv := api.New(cfg.HTTPAddr, st, mgr, sched, cfg, Version, log)
			if err := srv.Run(ctx); err != nil {
				return fmt.Errorf("server error: %w", err)
			}

			if _, err := mgr.Cancel(); err == nil {
				log.Info("cancelling active scan")
				waitCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := mgr.Wait(waitCtx); err != nil {
					log.Warn("active scan did not finish", zap.Error(err))
				}
			}
			log.Info("dupfind stopped")
			return nil
		},
	}
	c.Flags().StringVar(&dbPath, "db", "", "Override db_path")
	c.Flags().StringVar(&addr, "http", "", "Override http_addr")
	return c
}

// scanMessages gives each managed scan its own message log file, closed
// when the scan has been recorded.
func scanMessages(reg *msglog.Registry, prefix string) scan.MessageOpener {
	return func(scanID int64) (scan.MessageSink, func(), error) {
		name := fmt.Sprintf("scan-%d", scanID)
		w, err := reg.Open(name, fmt.Sprintf("%s_scan%d", prefix, scanID))
		if err != nil {
			return nil, nil, err
		}
		return w, func() { _ = reg.Release(name) }, nil
	}
}
