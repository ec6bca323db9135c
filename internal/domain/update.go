package domain

import (
	"fmt"
	"time"
)

// CanonicalUpdate is the normalized, deduplicated record stored per logical item.
type CanonicalUpdate struct {
	DedupKey        string
	Title           string
	Description     *string
	Content         *string
	Link            string
	PublishedAt     time.Time
	SourceLabel     string
	ToolID          *string
	ModelID         *string
	MatchConfidence *float64
	RelatedTools    []string
	RelatedModels   []string
	// Matched is set when the associations come from a loaded entity
	// registry. Stores then replace the stored associations as one unit;
	// otherwise the stored ones are kept. It is not persisted.
	Matched   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasAssociations reports whether any entity is attached to u.
func (u CanonicalUpdate) HasAssociations() bool {
	return u.ToolID != nil || u.ModelID != nil || len(u.RelatedTools) > 0 || len(u.RelatedModels) > 0
}

// Validate checks the structural requirements enforced by update stores.
func (u CanonicalUpdate) Validate() error {
	if u.DedupKey == "" {
		return fmt.Errorf("%w: empty dedup key", ErrInvalidUpdate)
	}
	if u.Title == "" && u.Link == "" {
		return fmt.Errorf("%w: title and link both empty", ErrInvalidUpdate)
	}
	if u.MatchConfidence != nil && (*u.MatchConfidence < 0 || *u.MatchConfidence > 1) {
		return fmt.Errorf("%w: confidence %.3f out of range", ErrInvalidUpdate, *u.MatchConfidence)
	}
	return nil
}

// UpsertResult counts the outcome of a bulk insert-or-update.
type UpsertResult struct {
	Created uint
	Updated uint
}

// RecordError ties a persistence failure to the record that caused it.
type RecordError struct {
	DedupKey string
	Err      error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %s: %v", e.DedupKey, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
