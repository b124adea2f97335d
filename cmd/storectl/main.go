// storectl is the operator CLI for the storefront database.
// Run from the repo root: go run ./cmd/storectl <command>
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/config"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/internal/repository/postgres"
)

var verbose bool

func main() {
	// same .env lookup as the server; missing files are fine
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	rootCmd := &cobra.Command{
		Use:           "storectl",
		Short:         "Storefront database and order maintenance",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(createAdminCmd())
	rootCmd.AddCommand(listOrdersCmd())
	rootCmd.AddCommand(findOrderCmd())
	rootCmd.AddCommand(sweepPendingCmd())
	rootCmd.AddCommand(resetOrdersCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// env holds what every command needs: config, a logger and an open database
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sql.DB
	repos  *repository.Repositories
}

func (e *env) Close() {
	e.db.Close()
	_ = e.logger.Sync()
}

func openEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Database.Driver != "postgres" {
		return nil, fmt.Errorf("storectl needs DB_DRIVER=postgres, got %q", cfg.Database.Driver)
	}

	logger := zap.NewNop()
	if verbose {
		logger, _ = zap.NewDevelopment()
	}

	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &env{cfg: cfg, logger: logger, db: db, repos: postgres.NewRepositories(db, logger)}, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			if err := postgres.RunMigrations(context.Background(), e.db, e.logger); err != nil {
				return err
			}
			fmt.Println("Migrations applied.")
			return nil
		},
	}
}
