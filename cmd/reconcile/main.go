// reconcile is the operator CLI for the scheduling-data reconciliation
// engine: duplicate scans, merges, orphan cleanup, backfill plans, and
// data health reporting.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/acadix/reconcile/internal/config"
	"github.com/acadix/reconcile/internal/engine"
	"github.com/acadix/reconcile/internal/repository"
	"github.com/acadix/reconcile/internal/types"
)

var (
	cfgPath string
	dbPath  string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconciliation engine for academic scheduling data",
	Long: `reconcile finds and repairs data-quality problems in scheduling records:
duplicate people, sections, and rooms; broken cross-references; orphaned
documents; and missing identity keys.

Every mutating command supports --dry-run. Destructive operations are
logged to the audit collection.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.Storage.Backend = config.BackendSQLite
			cfg.Storage.Path = dbPath
		}
		logger, err = cfg.NewLogger()
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
}

// openEngine builds the engine over the configured backend. The caller
// must Close the returned repository.
func openEngine() (*engine.Engine, repository.Repository, error) {
	var (
		repo repository.Repository
		err  error
	)
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		repo, err = repository.NewSQLite(cfg.Storage.Path)
	case config.BackendPostgres:
		repo, err = repository.NewPostgres(cfg.Storage.DSN)
	case config.BackendMemory:
		repo = repository.NewMemory()
	default:
		err = fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s backend: %w", cfg.Storage.Backend, err)
	}
	return engine.New(repo, cfg, logger), repo, nil
}

// parseEntityType accepts the singular and plural spellings operators
// actually type.
func parseEntityType(arg string) (types.EntityType, error) {
	switch arg {
	case "person", "people":
		return types.EntityPerson, nil
	case "section", "sections", "schedule", "schedules":
		return types.EntitySection, nil
	case "space", "spaces", "room", "rooms":
		return types.EntitySpace, nil
	default:
		return "", fmt.Errorf("unknown entity type %q (want person, section, or space)", arg)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
