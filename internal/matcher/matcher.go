// Package matcher associates free text with known tools and models.
//
// Tools and models are indexed separately; one text can match both. Each
// entity is scored by the aliases found in the text: whole-token hits count
// fully, weighted by how specific the alias is, while hits inside a longer
// token count for a fraction. The summed evidence saturates into [0,1).
package matcher

import (
	"context"
	"fmt"

	"FeedAggregator/internal/domain"
	"FeedAggregator/internal/ports"
)

// DefaultThreshold is the confidence floor used when none is configured.
const DefaultThreshold = 0.4

// Matcher holds one index per entity class.
type Matcher struct {
	tools  *Index
	models *Index
}

// New indexes the given tool and model entities.
func New(tools, models []domain.Entity) *Matcher {
	return &Matcher{
		tools:  NewIndex(domain.EntityTool, tools),
		models: NewIndex(domain.EntityModel, models),
	}
}

// Load snapshots both registries and indexes them.
func Load(ctx context.Context, registry ports.EntityRegistry) (*Matcher, error) {
	if registry == nil {
		return New(nil, nil), nil
	}

	tools, err := registry.Entities(ctx, domain.EntityTool)
	if err != nil {
		return nil, fmt.Errorf("load tools: %w", err)
	}
	models, err := registry.Entities(ctx, domain.EntityModel)
	if err != nil {
		return nil, fmt.Errorf("load models: %w", err)
	}

	return New(tools, models), nil
}

// MatchTools ranks tool entities mentioned in text.
func (m *Matcher) MatchTools(text string, threshold float64) []domain.EntityMatch {
	return m.tools.Match(text, threshold)
}

// MatchModels ranks model entities mentioned in text.
func (m *Matcher) MatchModels(text string, threshold float64) []domain.EntityMatch {
	return m.models.Match(text, threshold)
}

// Size reports how many tools and models are indexed.
func (m *Matcher) Size() (tools, models int) {
	return m.tools.Len(), m.models.Len()
}
