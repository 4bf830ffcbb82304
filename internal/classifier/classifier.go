// Package classifier decides which deliverables a meeting transcript warrants.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cuongbtq/meeting-pipeline/internal/domain"
	"github.com/cuongbtq/meeting-pipeline/internal/llm"
	"github.com/xeipuuv/gojsonschema"
)

// DefaultMinConfidence is the confidence below which a deliverable is dropped
const DefaultMinConfidence = 0.55

const systemPrompt = "You are an expert at analyzing business meeting transcripts and identifying required deliverables. Respond only with valid JSON."

const responseSchema = `{
  "type": "object",
  "required": ["deliverables", "confidence", "reasoning"],
  "properties": {
    "deliverables": {"type": "array", "items": {"type": "string"}},
    "confidence": {"type": "object", "additionalProperties": {"type": "number", "minimum": 0, "maximum": 1}},
    "reasoning": {"type": "string"}
  }
}`

var responseSchemaLoader = gojsonschema.NewStringLoader(responseSchema)

// Result is the outcome of classifying one transcript
type Result struct {
	Deliverables []domain.DeliverableType
	Confidence   map[domain.DeliverableType]float64
	Reasoning    string
}

// Has reports whether d is among the selected deliverables
func (r *Result) Has(d domain.DeliverableType) bool {
	for _, existing := range r.Deliverables {
		if existing == d {
			return true
		}
	}
	return false
}

// Stage is a deterministic policy applied to the model's classification
type Stage interface {
	Name() string
	Apply(transcript string, result *Result, minConfidence float64)
}

// Classifier asks the text generator for deliverables and post-processes the answer through its stages
type Classifier struct {
	generator llm.Generator
	stages    []Stage
	logger    *slog.Logger
}

// New creates a Classifier that applies the legal keyword override and then the confidence filter.
// An empty keyword list uses DefaultLegalKeywords.
func New(generator llm.Generator, legalKeywords []string, logger *slog.Logger) *Classifier {
	return NewWithStages(generator, logger,
		NewKeywordOverride(legalKeywords),
		ConfidenceFilter{},
	)
}

// NewWithStages creates a Classifier with an explicit stage pipeline
func NewWithStages(generator llm.Generator, logger *slog.Logger, stages ...Stage) *Classifier {
	return &Classifier{
		generator: generator,
		stages:    stages,
		logger:    logger,
	}
}

// Classify returns the deliverables warranted by transcript.
// Malformed parts of the model's answer are tolerated; only a failed call or a reply that is not
// JSON at all is an error.
func (c *Classifier) Classify(ctx context.Context, transcript string, minConfidence float64) (*Result, error) {
	raw, err := c.generator.Generate(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      buildPrompt(transcript),
		Temperature: 0.3,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to classify transcript: %w", err)
	}

	result, err := c.decode(raw)
	if err != nil {
		return nil, err
	}

	for _, stage := range c.stages {
		stage.Apply(transcript, result, minConfidence)
	}

	c.logger.Info("Transcript classified",
		slog.Any("deliverables", result.Deliverables),
		slog.Float64("min_confidence", minConfidence),
	)

	return result, nil
}

func (c *Classifier) decode(raw string) (*Result, error) {
	var body map[string]any
	if err := json.Unmarshal([]byte(llm.CleanJSONBlock(raw)), &body); err != nil {
		return nil, fmt.Errorf("classification response is not JSON: %w", err)
	}

	if schemaResult, err := gojsonschema.Validate(responseSchemaLoader, gojsonschema.NewGoLoader(body)); err == nil && !schemaResult.Valid() {
		problems := make([]string, 0, len(schemaResult.Errors()))
		for _, desc := range schemaResult.Errors() {
			problems = append(problems, desc.String())
		}
		c.logger.Warn("Classification response does not match schema",
			slog.String("problems", strings.Join(problems, "; ")),
		)
	}

	return decodeResult(body), nil
}

// decodeResult reads the loosely typed answer. Unknown tags are dropped, duplicates removed and
// non-numeric confidences treated as missing.
func decodeResult(body map[string]any) *Result {
	result := &Result{
		Deliverables: []domain.DeliverableType{},
		Confidence:   map[domain.DeliverableType]float64{},
	}

	if list, ok := body["deliverables"].([]any); ok {
		for _, item := range list {
			tag, ok := item.(string)
			if !ok {
				continue
			}
			d, err := domain.ParseDeliverableType(tag)
			if err != nil || result.Has(d) {
				continue
			}
			result.Deliverables = append(result.Deliverables, d)
		}
	}

	if scores, ok := body["confidence"].(map[string]any); ok {
		for tag, v := range scores {
			d, err := domain.ParseDeliverableType(tag)
			if err != nil {
				continue
			}
			if score, ok := v.(float64); ok {
				result.Confidence[d] = score
			}
		}
	}

	if reasoning, ok := body["reasoning"].(string); ok {
		result.Reasoning = reasoning
	}

	return result
}

func buildPrompt(transcript string) string {
	var b strings.Builder

	b.WriteString("Analyze this meeting transcript and determine what deliverables should be generated.\n\n")
	b.WriteString("Available deliverable types:\n")
	for _, d := range domain.AllDeliverableTypes() {
		fmt.Fprintf(&b, "- %s: %s\n", d, d.Description())
	}

	b.WriteString("\nTranscript:\n")
	b.WriteString(transcript)
	b.WriteString(`

Respond in JSON format with:
{
  "deliverables": ["TYPE1", "TYPE2", ...],
  "confidence": {"TYPE1": 0.9, "TYPE2": 0.7, ...},
  "reasoning": "Brief explanation of why these deliverables are needed"
}`)

	return b.String()
}
