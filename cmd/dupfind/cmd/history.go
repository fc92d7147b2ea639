package cmd

import (
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/eargollo/dupfind/internal/config"
	"github.com/eargollo/dupfind/internal/db"
	"github.com/eargollo/dupfind/internal/report"
	"github.com/eargollo/dupfind/internal/store"
)

func newHistoryCmd(g *globalFlags) *cobra.Command {
	var (
		dbPath string
		format string
		limit  int
		groups bool
	)
	c := &cobra.Command{
		Use:   "history [id]",
		Short: "List recorded scans, or the duplicates of one scan",
		Long: `History reads the scan database written by "serve" and "scan --db" or "scan --record".
Without an argument it lists scans newest first; with a scan ID it prints
the duplicates recorded for that scan.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("db") {
				cfg.DBPath = dbPath
			}
			if cmd.Flags().Changed("groups") {
				cfg.Grouping = config.GroupingPairs
				if groups {
					cfg.Grouping = config.GroupingGroups
				}
			}
			if !slices.Contains(report.Formats, format) {
				return fmt.Errorf("unknown report format %q", format)
			}

			database, err := db.OpenAndMigrate(cmd.Context(), cfg.DBPath)
			if err != nil {
				return err
			}
			defer database.Close()
			st := store.New(database)
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				scans, _, err := st.ListScans(cmd.Context(), limit, 0)
				if err != nil {
					return err
				}
				return report.WriteScans(out, format, scans)
			}

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid scan ID %q", args[0])
			}
			sc, err := st.GetScan(cmd.Context(), id)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("scan %d not found", id)
			}
			if err != nil {
				return err
			}
			pairs, err := st.ListPairs(cmd.Context(), id)
			if err != nil {
				return err
			}
			return report.WriteStoredPairs(out, format, sc, pairs, report.Options{
				Groups: cfg.Grouping == config.GroupingGroups,
				Color:  report.IsTerminal(out),
			})
		},
	}
	c.Flags().StringVar(&dbPath, "db", "", "Override db_path")
	c.Flags().StringVarP(&format, "format", "f", report.Text, fmt.Sprintf("Output format (%v)", report.Formats))
	c.Flags().IntVarP(&limit, "limit", "n", 20, "Number of scans to list")
	c.Flags().BoolVar(&groups, "groups", false, "Show N-way groups instead of pairs")
	return c
}
