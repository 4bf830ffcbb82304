package classifier

import (
	"strings"

	"github.com/cuongbtq/meeting-pipeline/internal/domain"
)

// LegalOverrideConfidence is assigned to a legal research tag added by keyword match
const LegalOverrideConfidence = 0.7

// DefaultLegalKeywords trigger the legal research override
var DefaultLegalKeywords = []string{
	"legal",
	"law",
	"statute",
	"regulation",
	"compliance",
	"consent",
	"autodialer",
	"robocall",
	"TCPA",
	"do not call",
	"opt in",
	"disclosure",
	"loophole",
	"grey area",
}

// KeywordOverride adds legal research when the transcript mentions a legal term the model missed
type KeywordOverride struct {
	keywords []string
}

// NewKeywordOverride lowercases keywords once. An empty list uses DefaultLegalKeywords.
func NewKeywordOverride(keywords []string) *KeywordOverride {
	if len(keywords) == 0 {
		keywords = DefaultLegalKeywords
	}

	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			lowered = append(lowered, k)
		}
	}

	return &KeywordOverride{keywords: lowered}
}

func (k *KeywordOverride) Name() string { return "legal_keyword_override" }

// Matches reports whether transcript contains any keyword, ignoring case
func (k *KeywordOverride) Matches(transcript string) bool {
	lower := strings.ToLower(transcript)
	for _, keyword := range k.keywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

func (k *KeywordOverride) Apply(transcript string, result *Result, _ float64) {
	if result.Has(domain.DeliverableLegalResearch) || !k.Matches(transcript) {
		return
	}

	result.Deliverables = append(result.Deliverables, domain.DeliverableLegalResearch)
	result.Confidence[domain.DeliverableLegalResearch] = LegalOverrideConfidence
}

// ConfidenceFilter drops deliverables scored below the minimum confidence. A missing score counts as 0.
type ConfidenceFilter struct{}

func (ConfidenceFilter) Name() string { return "confidence_filter" }

func (ConfidenceFilter) Apply(_ string, result *Result, minConfidence float64) {
	kept := result.Deliverables[:0]
	for _, d := range result.Deliverables {
		if result.Confidence[d] >= minConfidence {
			kept = append(kept, d)
		}
	}
	result.Deliverables = kept
}
