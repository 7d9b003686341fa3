package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"zotindex/config"
)

var (
	cfgFile   string
	envFile   string
	overrides config.Overrides
	cfg       *config.Config
	cfgPath   string
	homeDir   string
	logger    *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "zotindex",
	Short: "Semantic search over a local Zotero library",
	Long: `zotindex reads items from the local Zotero database, embeds them with a
local or remote embedding provider, and keeps them in a persistent vector
index for similarity search with metadata filters.

Example usage:
  zotindex index                         # Sync the library into the index
  zotindex query -q "bayesian inference" # Search the index
  zotindex info                          # Show collection status`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadDotEnv(envFile); err != nil {
			return err
		}

		var err error
		homeDir, err = os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to determine home directory: %w", err)
		}

		cfgPath = cfgFile
		if cfgPath == "" {
			cfgPath = config.Discover(config.DefaultDir(homeDir))
		}
		cfg, err = config.Resolve(cfgPath, os.LookupEnv, overrides)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger = newLogger(cfg.Logging.Level)
		slog.SetDefault(logger)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ~/.config/zotero-mcp/config.{yaml,yml,json})")
	pf.StringVar(&envFile, "env-file", "", "dotenv file to load (default is ./.env when present)")
	pf.StringVar(&overrides.DBPath, "db", "", "Zotero database file or data directory")
	pf.StringVar(&overrides.IndexDir, "index-dir", "", "vector index directory, or :memory:")
	pf.StringVar(&overrides.Collection, "collection", "", "collection name")
	pf.StringVar(&overrides.EmbeddingModel, "embedding-model", "", "embedding provider: default, openai or gemini")
	pf.StringVar(&overrides.LogLevel, "log-level", "", "log level: debug, info, warn or error")
}

// loadDotEnv never overrides variables already set in the environment.
func loadDotEnv(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// settingsPath is where persisted settings such as the bridge token go.
func settingsPath() string {
	if cfgPath != "" {
		return cfgPath
	}
	return filepath.Join(config.DefaultDir(homeDir), "config.json")
}
