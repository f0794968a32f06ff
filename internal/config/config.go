package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Person1 PersonConfig
	Person2 PersonConfig
	Split   SplitConfig
	Sync    SyncConfig
	API     APIConfig
	History HistoryConfig
	Log     LogConfig
}

// PersonConfig identifies one party's ledger.
type PersonConfig struct {
	Name     string
	Token    string
	BudgetID string `mapstructure:"budget_id"`
}

// SplitConfig holds the share of shared expenses carried by person 1 when
// they paid. Person 2's ratio is the complement.
type SplitConfig struct {
	Person1 int
}

// SyncConfig holds run behaviour.
type SyncConfig struct {
	LookbackDays  int    `mapstructure:"lookback_days"`
	Mode          string `mapstructure:"mode"`
	FlagOriginals bool   `mapstructure:"flag_originals"`
	FlagColor     string `mapstructure:"flag_color"`
	MaxAttempts   int    `mapstructure:"max_attempts"`
}

// APIConfig holds remote ledger settings.
type APIConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RequestsPerHour int           `mapstructure:"requests_per_hour"`
}

// HistoryConfig holds the run history database settings.
type HistoryConfig struct {
	Enabled bool
	Path    string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string
}

// legacy env names accepted alongside the SPLITSYNC_ prefixed ones.
var aliases = map[string]string{
	"person1.token":     "PERSON1_API_KEY",
	"person2.token":     "PERSON2_API_KEY",
	"person1.budget_id": "PERSON1_BUDGET_ID",
	"person2.budget_id": "PERSON2_BUDGET_ID",
	"split.person1":     "PERSON1_SPLIT",
}

// Load reads configuration from .env, file and env. Env var overrides use prefix SPLITSYNC_.
func Load() (Config, error) {
	// a missing .env is fine; variables already set win
	_ = godotenv.Load()

	v := newViper()

	cfgPath := os.Getenv("SPLITSYNC_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "splitsync"))
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

func newViper() *viper.Viper {
	v := viper.New()

	// default values
	v.SetDefault("person1.name", "Person 1")
	v.SetDefault("person1.token", "")
	v.SetDefault("person1.budget_id", "")
	v.SetDefault("person2.name", "Person 2")
	v.SetDefault("person2.token", "")
	v.SetDefault("person2.budget_id", "")
	v.SetDefault("split.person1", 50)
	v.SetDefault("sync.lookback_days", 30)
	v.SetDefault("sync.mode", "interactive")
	v.SetDefault("sync.flag_originals", false)
	v.SetDefault("sync.flag_color", "blue")
	v.SetDefault("sync.max_attempts", 0)
	v.SetDefault("api.base_url", "https://api.ynab.com/v1")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.requests_per_hour", 200)
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "splitsync", "history.db"))
	v.SetDefault("log.level", "info")

	v.SetConfigType("toml")

	v.SetEnvPrefix("SPLITSYNC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, alias := range aliases {
		_ = v.BindEnv(key, "SPLITSYNC_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), alias)
	}
	return v
}

// Validate reports every missing or out-of-range setting in one error.
func (c Config) Validate() error {
	var missing []string
	for key, val := range map[string]string{
		"person1.token":     c.Person1.Token,
		"person1.budget_id": c.Person1.BudgetID,
		"person2.token":     c.Person2.Token,
		"person2.budget_id": c.Person2.BudgetID,
	} {
		if strings.TrimSpace(val) == "" {
			missing = append(missing, key)
		}
	}

	var errs []error
	if len(missing) > 0 {
		slices.Sort(missing)
		errs = append(errs, fmt.Errorf("missing settings: %s", strings.Join(missing, ", ")))
	}
	if c.Split.Person1 < 0 || c.Split.Person1 > 100 {
		errs = append(errs, fmt.Errorf("split.person1 must be between 0 and 100, got %d", c.Split.Person1))
	}
	if c.Sync.LookbackDays <= 0 {
		errs = append(errs, fmt.Errorf("sync.lookback_days must be positive, got %d", c.Sync.LookbackDays))
	}
	switch strings.ToLower(c.Sync.Mode) {
	case "interactive", "batch":
	default:
		errs = append(errs, fmt.Errorf("sync.mode must be interactive or batch, got %q", c.Sync.Mode))
	}
	if c.Sync.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("sync.max_attempts must not be negative, got %d", c.Sync.MaxAttempts))
	}
	if c.API.RequestsPerHour <= 0 {
		errs = append(errs, fmt.Errorf("api.requests_per_hour must be positive, got %d", c.API.RequestsPerHour))
	}
	return errors.Join(errs...)
}

// Save writes the non-secret settings of cfg to disk, creating the config
// directory if needed. Tokens are never written; keep them in the environment.
func Save(cfg Config) (string, error) {
	path := os.Getenv("SPLITSYNC_CONFIG")
	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".config", "splitsync", "config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("person1.name", cfg.Person1.Name)
	v.Set("person1.budget_id", cfg.Person1.BudgetID)
	v.Set("person2.name", cfg.Person2.Name)
	v.Set("person2.budget_id", cfg.Person2.BudgetID)
	v.Set("split.person1", cfg.Split.Person1)
	v.Set("sync.lookback_days", cfg.Sync.LookbackDays)
	v.Set("sync.mode", cfg.Sync.Mode)
	v.Set("sync.flag_originals", cfg.Sync.FlagOriginals)
	v.Set("sync.flag_color", cfg.Sync.FlagColor)
	v.Set("sync.max_attempts", cfg.Sync.MaxAttempts)
	v.Set("api.base_url", cfg.API.BaseURL)
	v.Set("api.timeout", cfg.API.Timeout.String())
	v.Set("api.requests_per_hour", cfg.API.RequestsPerHour)
	v.Set("history.enabled", cfg.History.Enabled)
	v.Set("history.path", cfg.History.Path)
	v.Set("log.level", cfg.Log.Level)

	if err := v.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return path, nil
}
