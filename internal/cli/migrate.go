package cli

import (
	"context"
	"fmt"
	"log"

	"evaluation-service/internal/config"
	"github.com/spf13/cobra"
)

// NewMigrateCmd applies database migrations to the configured results database.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), *configPath)
		},
	}
}

func runMigrations(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.ResultsDriver() == config.ResultsMemory {
		return fmt.Errorf("no results database configured")
	}
	db, err := openResultsDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Printf("migrations applied (%s)", cfg.ResultsDriver())
	return nil
}
