package registry

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"FeedAggregator/internal/domain"
	"FeedAggregator/internal/ports"
)

// FileRegistry reads the registry from a YAML file on every call, so edits
// apply from the next run on.
type FileRegistry struct {
	path string
}

var _ ports.EntityRegistry = (*FileRegistry)(nil)

// NewFileRegistry returns a registry backed by path.
func NewFileRegistry(path string) *FileRegistry {
	return &FileRegistry{path: path}
}

// Entities returns the entities of one class.
func (r *FileRegistry) Entities(ctx context.Context, class domain.EntityClass) ([]domain.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read registry %s: %w", r.path, err)
	}

	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", r.path, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid registry %s: %w", r.path, err)
	}

	return doc.Entities(class)
}
