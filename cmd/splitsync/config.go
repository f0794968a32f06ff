package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jask/splitsync/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or write configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration, tokens redacted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, p := range []struct {
			key string
			cfg config.PersonConfig
		}{{"person1", cfg.Person1}, {"person2", cfg.Person2}} {
			fmt.Fprintf(out, "%s.name = %s\n", p.key, p.cfg.Name)
			fmt.Fprintf(out, "%s.budget_id = %s\n", p.key, p.cfg.BudgetID)
			fmt.Fprintf(out, "%s.token = %s\n", p.key, redact(p.cfg.Token))
		}
		fmt.Fprintf(out, "split.person1 = %d\n", cfg.Split.Person1)
		fmt.Fprintf(out, "sync.lookback_days = %d\n", cfg.Sync.LookbackDays)
		fmt.Fprintf(out, "sync.mode = %s\n", cfg.Sync.Mode)
		fmt.Fprintf(out, "sync.flag_originals = %t\n", cfg.Sync.FlagOriginals)
		fmt.Fprintf(out, "history.path = %s\n", cfg.History.Path)
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(out, "\ninvalid: %v\n", err)
		}
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the current non-secret settings to the config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		path, err := config.Save(cfg)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func redact(token string) string {
	switch {
	case token == "":
		return "(unset)"
	case len(token) <= 4:
		return "****"
	default:
		return "****" + token[len(token)-4:]
	}
}
