package app

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/openscholar/doisync/database"
	"github.com/openscholar/doisync/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migration tool",
	Long:  `Database migration tool for managing schema versions. Use with 'up' or 'down' subcommands.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Usage()
	},
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending database migrations",
	RunE:  runMigrateUp,
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back database migrations",
	RunE:  runMigrateDown,
}

func init() {
	migrateCmd.PersistentFlags().UintP("num-steps", "n", 0, "Number of steps to migrate (0 = all)")
	migrateCmd.PersistentFlags().String("config", "", "Path to configuration file (YAML format, required)")

	if err := migrateCmd.MarkPersistentFlagRequired("config"); err != nil {
		panic(err)
	}

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
}

// newMigrator builds a migrator from the configured database settings
func newMigrator(cmd *cobra.Command) (database.Migrator, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database == nil {
		return nil, fmt.Errorf("database configuration is required")
	}

	connString, err := cfg.Database.GetConnectionString()
	if err != nil {
		return nil, fmt.Errorf("failed to build connection string: %w", err)
	}

	return database.NewFromConnectionString(connString)
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	logger := logr.FromContextOrDiscard(cmd.Context())

	migrator, err := newMigrator(cmd)
	if err != nil {
		return err
	}

	steps, err := cmd.Flags().GetUint("num-steps")
	if err != nil {
		return fmt.Errorf("failed to get num-steps flag: %w", err)
	}

	logger.Info("applying database migrations", "steps", steps)
	if steps > 0 {
		err = migrator.Steps(int(steps))
	} else {
		err = migrator.Up()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("database schema already up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	reportVersion(logger, migrator)
	return nil
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	logger := logr.FromContextOrDiscard(cmd.Context())

	migrator, err := newMigrator(cmd)
	if err != nil {
		return err
	}

	steps, err := cmd.Flags().GetUint("num-steps")
	if err != nil {
		return fmt.Errorf("failed to get num-steps flag: %w", err)
	}

	logger.Info("rolling back database migrations", "steps", steps)
	if steps > 0 {
		err = migrator.Steps(-int(steps))
	} else {
		err = migrator.Down()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("nothing to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}

	reportVersion(logger, migrator)
	return nil
}

func reportVersion(logger logr.Logger, migrator database.Migrator) {
	version, dirty, err := migrator.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		logger.Info("database schema is empty")
	case err != nil:
		logger.Error(err, "unable to read migration version")
	case dirty:
		logger.Info("database is in a dirty state", "version", version)
	default:
		logger.Info("migrations applied", "version", version)
	}
}
