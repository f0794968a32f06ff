package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jask/splitsync/internal/database"
	"github.com/jask/splitsync/internal/database/repository"
	"github.com/jask/splitsync/internal/tui"
)

var (
	historyRun   string
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded sync runs and verify the audit chain",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := database.OpenMigrated(cfg.History.Path)
		if err != nil {
			return err
		}
		defer db.Close()
		repo := repository.NewHistoryRepo(db)
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		if historyRun != "" {
			run, err := repo.GetRun(ctx, historyRun)
			if err != nil {
				return err
			}
			if run == nil {
				return fmt.Errorf("no run %s", historyRun)
			}
			entries, err := repo.Entries(ctx, historyRun)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, tui.RenderRuns([]repository.Run{*run}))
			fmt.Fprintln(out, tui.RenderEntries(entries))
		} else {
			runs, err := repo.ListRuns(ctx, historyLimit)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, tui.RenderRuns(runs))
		}

		if err := repo.Verify(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "audit chain intact")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyRun, "run", "", "Show the entries of one run.")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of runs to list.")
}
