// Package main implements pipelinectl, the operator CLI for the meeting pipeline.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cuongbtq/meeting-pipeline/internal/config"
	"github.com/cuongbtq/meeting-pipeline/shared/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "pipelinectl",
	Short:         "Operate the meeting pipeline",
	Long:          "pipelinectl signs and replays webhook payloads, classifies transcripts offline, applies migrations, prunes job records and follows run progress.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	defaultConfigPath := os.Getenv("PIPELINECTL_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "Path to configuration file")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file shared by commands that talk to backing services
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger writes to stderr so command output on stdout stays machine readable
func newLogger(cfg *config.Config) (*logger.Logger, error) {
	level := "warn"
	if cfg != nil && cfg.Logging.Level == "debug" {
		level = "debug"
	}
	return logger.New(&logger.Config{
		Level:      level,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: time.Kitchen,
	})
}

// readInput reads path, or stdin when path is "-"
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
