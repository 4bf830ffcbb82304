package main

import (
	"fmt"

	"github.com/cuongbtq/meeting-pipeline/internal/queue"
	"github.com/cuongbtq/meeting-pipeline/shared/postgresql"
	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired job records once",
	RunE:  runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	appLogger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	dbClient, err := postgresql.NewClient(cfg.PostgresConfig(), appLogger.Logger)
	if err != nil {
		return err
	}
	defer dbClient.Close()

	pruner := queue.NewPruner(queue.NewStore(dbClient.GetDB(), appLogger.Logger), cfg.PrunerConfig(), appLogger.Logger)
	deleted, err := pruner.RunOnce(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "deleted %d job records\n", deleted)
	return nil
}
