package main

import (
	"fmt"
	"os"

	"github.com/Rrens/smart-chat/internal/config"
	"github.com/Rrens/smart-chat/internal/logging"
	"github.com/Rrens/smart-chat/internal/repository/postgres"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	sourceURL string
	steps     int
	cfg       *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the PostgreSQL session store schema",
	Long: `Applies, rolls back and reports the schema migrations of the PostgreSQL
session store. Migrations are compiled into the binary; pass --source to
use a directory instead (e.g. file://internal/repository/postgres/migrations).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if sourceURL == "" {
			sourceURL = cfg.Database.MigrationsSource()
		}
		_, err = logging.Setup(cfg.Logging)
		return err
	},
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		log.Info().Str("host", cfg.Database.Host).Int("port", cfg.Database.Port).Msg("Applying migrations")
		return postgres.RunMigrations(cfg.Database.DSN(), sourceURL)
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back applied migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if steps < 1 {
			return fmt.Errorf("--steps must be at least 1")
		}
		if err := postgres.RollbackMigrations(cfg.Database.DSN(), sourceURL, steps); err != nil {
			return err
		}
		log.Info().Int("steps", steps).Msg("Migrations rolled back")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		version, dirty, err := postgres.MigrationVersion(cfg.Database.DSN(), sourceURL)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&sourceURL, "source", "", "Migration source URL (default: database.migrations_path, else embedded migrations)")
	downCmd.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")

	rootCmd.AddCommand(upCmd, downCmd, versionCmd)
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
