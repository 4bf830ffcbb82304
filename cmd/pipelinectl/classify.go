package main

import (
	"encoding/json"
	"fmt"

	"github.com/cuongbtq/meeting-pipeline/internal/classifier"
	"github.com/cuongbtq/meeting-pipeline/internal/llm"
	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify a transcript without creating a run",
	RunE:  runClassify,
}

var (
	classifyTranscriptFile string
	classifyMinConfidence  float64
)

func init() {
	classifyCmd.Flags().StringVarP(&classifyTranscriptFile, "transcript", "t", "-", "Path to the transcript text, - for stdin")
	classifyCmd.Flags().Float64Var(&classifyMinConfidence, "min-confidence", 0, "Confidence threshold (defaults to the configured value)")

	rootCmd.AddCommand(classifyCmd)
}

type classifyOutput struct {
	Deliverables []string           `json:"deliverables"`
	Confidence   map[string]float64 `json:"confidence"`
	Reasoning    string             `json:"reasoning"`
}

func runClassify(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	appLogger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	transcript, err := readInput(cmd, classifyTranscriptFile)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	gemini, err := llm.NewGeminiClient(ctx, llm.Config{
		APIKey: cfg.LLM.APIKey,
		Model:  cfg.LLM.Model,
	}, appLogger.Logger)
	if err != nil {
		return err
	}
	defer gemini.Close()

	minConfidence := classifyMinConfidence
	if minConfidence <= 0 {
		minConfidence = cfg.Classifier.MinConfidence
	}
	if minConfidence <= 0 {
		minConfidence = classifier.DefaultMinConfidence
	}

	result, err := classifier.New(gemini, cfg.Classifier.LegalKeywords, appLogger.Logger).
		Classify(ctx, string(transcript), minConfidence)
	if err != nil {
		return fmt.Errorf("classification failed: %w", err)
	}

	out := classifyOutput{
		Deliverables: make([]string, 0, len(result.Deliverables)),
		Confidence:   make(map[string]float64, len(result.Confidence)),
		Reasoning:    result.Reasoning,
	}
	for _, d := range result.Deliverables {
		out.Deliverables = append(out.Deliverables, string(d))
	}
	for d, c := range result.Confidence {
		out.Confidence[string(d)] = c
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
