package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jask/splitsync/internal/config"
	"github.com/jask/splitsync/internal/database"
	"github.com/jask/splitsync/internal/database/repository"
	"github.com/jask/splitsync/internal/reconcile"
	"github.com/jask/splitsync/internal/service"
	"github.com/jask/splitsync/internal/tui"
	"github.com/jask/splitsync/internal/ynab"
)

var (
	syncDays   int
	syncBatch  bool
	syncYes    bool
	syncDryRun bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Create missing mirrors in both budgets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("days") {
			cfg.Sync.LookbackDays = syncDays
		}
		if syncBatch {
			cfg.Sync.Mode = reconcile.ModeBatch.String()
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return runSync(ctx, cfg)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().IntVar(&syncDays, "days", 30, "Only consider transactions from the last N days.")
	syncCmd.Flags().BoolVar(&syncBatch, "batch", false, "Never prompt; annotate unresolved payees and categories.")
	syncCmd.Flags().BoolVarP(&syncYes, "yes", "y", false, "Create mirrors without asking for confirmation.")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Show the plan and write nothing.")
}

func runSync(ctx context.Context, cfg config.Config) error {
	log := slog.Default()

	mode, _ := reconcile.ParseMode(cfg.Sync.Mode)
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if !interactive {
		mode = reconcile.ModeBatch
		if !syncYes && !syncDryRun {
			return errors.New("stdin is not a terminal: pass --yes to sync without confirmation")
		}
	}

	prompter := &tui.Prompter{In: os.Stdin, Out: os.Stdout}
	svc := &service.SyncService{
		Person1:      party(cfg, cfg.Person1),
		Person2:      party(cfg, cfg.Person2),
		Person1Ratio: reconcile.Ratio(cfg.Split.Person1),
		LookbackDays: cfg.Sync.LookbackDays,
		Resolver: &reconcile.Resolver{
			Mode:        mode,
			Prompter:    prompter,
			MaxAttempts: cfg.Sync.MaxAttempts,
		},
		Presenter:     &tui.PlanView{Out: os.Stdout},
		Confirmer:     prompter,
		DryRun:        syncDryRun,
		FlagOriginals: cfg.Sync.FlagOriginals,
		FlagColor:     cfg.Sync.FlagColor,
		Logger:        log,
	}
	if syncYes {
		svc.Confirmer = tui.AutoConfirm{}
	}

	if cfg.History.Enabled {
		db, err := database.OpenMigrated(cfg.History.Path)
		if err != nil {
			log.Warn("history disabled", "path", cfg.History.Path, "err", err)
		} else {
			defer db.Close()
			svc.History = repository.NewHistoryRepo(db)
		}
	}

	report, err := svc.Run(ctx)
	if errors.Is(err, service.ErrRejected) {
		fmt.Fprintln(os.Stdout, "Nothing was written.")
		return err
	}
	if err != nil {
		if reconcile.IsIntegrity(err) {
			return fmt.Errorf("integrity check failed, nothing was written: %w", err)
		}
		return err
	}
	if len(report.Results) > 0 || report.DryRun {
		fmt.Fprintln(os.Stdout, tui.RenderReport(report))
	}
	if report.Failed() {
		return fmt.Errorf("run %s: %s", report.RunID, report.Summary())
	}
	return nil
}

func party(cfg config.Config, p config.PersonConfig) service.Party {
	client := ynab.NewClient(p.Token,
		ynab.WithBaseURL(cfg.API.BaseURL),
		ynab.WithTimeout(cfg.API.Timeout),
		ynab.WithRequestsPerHour(cfg.API.RequestsPerHour),
	)
	return service.Party{Name: p.Name, BudgetID: p.BudgetID, Ledger: client}
}
