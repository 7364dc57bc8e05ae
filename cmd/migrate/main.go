package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"spendlens/internal/config"
	"spendlens/internal/database"
	"spendlens/internal/logger"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := newRootCommand().Execute(); err != nil {
		logger.Get().Errorf("Migration error: %v", err)
		logger.Sync()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var source string

	rootCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the SpendLens PostgreSQL schema",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&source, "source", database.MigrationsSource, "migrations source URL")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(source, func(m *migrate.Migrate) error {
					if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
						return fmt.Errorf("migration up failed: %w", err)
					}
					logger.Get().Info("Migrations applied successfully")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down [N]",
			Short: "Roll back N migrations (default 1)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps := 1
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n <= 0 {
						return fmt.Errorf("invalid step count %q", args[0])
					}
					steps = n
				}
				return withMigrator(source, func(m *migrate.Migrate) error {
					if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
						return fmt.Errorf("migration down failed: %w", err)
					}
					logger.Get().Infof("Rolled back %d migration(s)", steps)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(source, func(m *migrate.Migrate) error {
					version, dirty, err := m.Version()
					if err != nil {
						return fmt.Errorf("failed to get version: %w", err)
					}
					logger.Get().Infof("Version: %d, Dirty: %v", version, dirty)
					return nil
				})
			},
		},
	)

	return rootCmd
}

func withMigrator(source string, fn func(*migrate.Migrate) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	dbConfig, err := database.NewConfig(cfg)
	if err != nil {
		return err
	}
	if dbConfig.Driver != database.DriverPostgres {
		return fmt.Errorf("versioned migrations require DB_DRIVER=postgres, got %q", dbConfig.Driver)
	}

	m, err := migrate.New(source, dbConfig.MigrationURL())
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			logger.Get().Warnf("migrate source close error: %v", srcErr)
		}
		if dbErr != nil {
			logger.Get().Warnf("migrate database close error: %v", dbErr)
		}
	}()

	return fn(m)
}
