// Package registry loads the entity registry from a YAML file or an HTTP endpoint.
package registry

import (
	"errors"
	"fmt"
	"strings"

	"FeedAggregator/internal/domain"
)

// Document is the registry layout shared by the file and HTTP sources.
type Document struct {
	Tools  []domain.Entity `json:"tools" yaml:"tools"`
	Models []domain.Entity `json:"models" yaml:"models"`
}

// Entities returns the class section with Class filled in.
func (d Document) Entities(class domain.EntityClass) ([]domain.Entity, error) {
	var section []domain.Entity
	switch class {
	case domain.EntityTool:
		section = d.Tools
	case domain.EntityModel:
		section = d.Models
	default:
		return nil, fmt.Errorf("unknown entity class %q", class)
	}

	out := make([]domain.Entity, 0, len(section))
	for _, entity := range section {
		entity.Class = class
		entity.Aliases = append([]string(nil), entity.Aliases...)
		out = append(out, entity)
	}
	return out, nil
}

// Validate requires non-empty unique ids per class and something to match on.
func (d Document) Validate() error {
	var errs []error
	check := func(class domain.EntityClass, entities []domain.Entity) {
		ids := map[string]struct{}{}
		for i, entity := range entities {
			id := strings.TrimSpace(entity.ID)
			if id == "" {
				errs = append(errs, fmt.Errorf("%s[%d]: id is required", class, i))
				continue
			}
			if _, dup := ids[id]; dup {
				errs = append(errs, fmt.Errorf("%s[%d]: duplicate id %s", class, i, id))
			}
			ids[id] = struct{}{}
			if strings.TrimSpace(entity.Name) == "" && len(entity.Aliases) == 0 {
				errs = append(errs, fmt.Errorf("%s %s: needs a name or aliases", class, id))
			}
		}
	}
	check(domain.EntityTool, d.Tools)
	check(domain.EntityModel, d.Models)
	return errors.Join(errs...)
}
