package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/cuongbtq/meeting-pipeline/internal/worker"
	"github.com/cuongbtq/meeting-pipeline/shared/redis"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow job progress events",
	RunE:  runWatch,
}

var watchRunID string

func init() {
	watchCmd.Flags().StringVar(&watchRunID, "run-id", "", "Only show events of this run")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	redisCfg := cfg.RedisClientConfig()
	if redisCfg == nil {
		return fmt.Errorf("redis is not configured")
	}

	appLogger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	client, err := redis.NewClient(redisCfg, appLogger.Logger)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	channel := cfg.Redis.ProgressChannel
	if channel == "" {
		channel = worker.DefaultProgressChannel
	}

	events, err := client.Subscribe(ctx, channel)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for payload := range events {
		var event worker.ProgressEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			appLogger.Warn("Skipping malformed progress event")
			continue
		}
		if !matchesRun(event, watchRunID) {
			continue
		}
		fmt.Fprintf(out, "%s run=%s job=%s progress=%d%%\n",
			event.Timestamp.Format("15:04:05"), event.RunID, event.JobID, event.Progress)
	}
	return nil
}

func matchesRun(event worker.ProgressEvent, runID string) bool {
	return runID == "" || event.RunID == runID
}
