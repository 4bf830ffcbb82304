package generator

import (
	"fmt"

	"github.com/cuongbtq/meeting-pipeline/internal/domain"
)

// Registry maps every deliverable type to its generator
type Registry struct {
	generators map[domain.DeliverableType]Generator
}

// NewRegistry builds a registry and fails unless every deliverable type has exactly one generator
func NewRegistry(generators ...Generator) (*Registry, error) {
	r := &Registry{generators: make(map[domain.DeliverableType]Generator, len(generators))}

	for _, g := range generators {
		t := g.Type()
		if !t.Valid() {
			return nil, fmt.Errorf("generator for unknown deliverable %q", t)
		}
		if _, exists := r.generators[t]; exists {
			return nil, fmt.Errorf("duplicate generator for %s", t)
		}
		r.generators[t] = g
	}

	for _, t := range domain.AllDeliverableTypes() {
		if _, ok := r.generators[t]; !ok {
			return nil, fmt.Errorf("no generator registered for %s", t)
		}
	}

	return r, nil
}

// NewDefaultRegistry wires the five standard generators
func NewDefaultRegistry(deps *Deps) (*Registry, error) {
	return NewRegistry(
		NewProposal(deps),
		NewLegalResearch(deps),
		NewServiceAgreement(deps),
		NewScopeOfWork(deps),
		NewFollowupEmail(deps),
	)
}

// Get returns the generator of t
func (r *Registry) Get(t domain.DeliverableType) (Generator, error) {
	g, ok := r.generators[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownDeliverable, t)
	}
	return g, nil
}
