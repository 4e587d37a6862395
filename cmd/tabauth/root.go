package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/bazaarops/tabauth"
	"github.com/bazaarops/tabauth/internal/logging"
	"github.com/bazaarops/tabauth/storage"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	envFile    string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "tabauth",
	Short: "Per-tab session store tooling",
	Long: `tabauth drives and inspects tab sessions kept in a shared durable tier.

Environment Variables:
  TABAUTH_DURABLE_TYPE   memory, redis, or none
  TABAUTH_REDIS_ADDR     Redis address for the durable tier
  TABAUTH_STALE_AFTER    registry staleness age (e.g. 24h)
  TABAUTH_SIGNING_KEY    HS256 key used by "mint"
  TABAUTH_LOG_LEVEL      debug, info, warn, error`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading TABAUTH_* variables")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output JSON instead of human-readable text")
}

// loadRuntime reads the env file, the config, and builds the logger.
func loadRuntime() (tabauth.Config, *slog.Logger, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return tabauth.Config{}, nil, err
		}
	}

	cfg, err := tabauth.LoadConfig(configPath)
	if err != nil {
		return tabauth.Config{}, nil, err
	}
	return cfg, logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr), nil
}

// openDurable opens the configured durable tier. The returned closer releases it.
func openDurable(ctx context.Context, cfg tabauth.Config) (storage.Tier, func(), error) {
	tier, err := storage.Open(ctx, cfg.Durable)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {}
	if r, ok := tier.(*storage.Redis); ok {
		closer = func() { _ = r.Close() }
	}
	return tier, closer, nil
}
