package domain

import (
	"fmt"
	"strings"
)

// DeliverableType is a closed enumeration of the documents a meeting may warrant
type DeliverableType string

const (
	DeliverableProposal         DeliverableType = "PROPOSAL"
	DeliverableLegalResearch    DeliverableType = "LEGAL_RESEARCH"
	DeliverableServiceAgreement DeliverableType = "SERVICE_AGREEMENT"
	DeliverableScopeOfWork      DeliverableType = "SCOPE_OF_WORK"
	DeliverableFollowupEmail    DeliverableType = "FOLLOWUP_EMAIL"
)

var allDeliverables = []DeliverableType{
	DeliverableProposal,
	DeliverableLegalResearch,
	DeliverableServiceAgreement,
	DeliverableScopeOfWork,
	DeliverableFollowupEmail,
}

var deliverableDescriptions = map[DeliverableType]string{
	DeliverableProposal:         "Client needs a business proposal with pricing, scope, milestones",
	DeliverableLegalResearch:    "Legal questions were raised requiring research and analysis",
	DeliverableServiceAgreement: "Need to draft a service agreement or contract",
	DeliverableScopeOfWork:      "Need a detailed scope of work document",
	DeliverableFollowupEmail:    "Need to send a follow-up email (almost always true)",
}

var deliverableLabels = map[DeliverableType]string{
	DeliverableProposal:         "Proposal",
	DeliverableLegalResearch:    "Legal Research",
	DeliverableServiceAgreement: "Service Agreement",
	DeliverableScopeOfWork:      "Scope of Work",
	DeliverableFollowupEmail:    "Follow-up Email",
}

// AllDeliverableTypes returns every deliverable type in canonical order
func AllDeliverableTypes() []DeliverableType {
	out := make([]DeliverableType, len(allDeliverables))
	copy(out, allDeliverables)
	return out
}

// ParseDeliverableType converts a tag into a DeliverableType, rejecting tags outside the closed set.
// Matching ignores case and surrounding whitespace.
func ParseDeliverableType(s string) (DeliverableType, error) {
	candidate := DeliverableType(strings.ToUpper(strings.TrimSpace(s)))
	if candidate.Valid() {
		return candidate, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDeliverable, s)
}

// Valid reports whether d is a member of the closed deliverable set
func (d DeliverableType) Valid() bool {
	_, ok := deliverableDescriptions[d]
	return ok
}

// Description is the instruction shown to the classifier for this tag
func (d DeliverableType) Description() string {
	return deliverableDescriptions[d]
}

// Label is the human-facing name used in document titles
func (d DeliverableType) Label() string {
	if label, ok := deliverableLabels[d]; ok {
		return label
	}
	return string(d)
}

func (d DeliverableType) String() string {
	return string(d)
}
