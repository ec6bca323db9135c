package storage

import "FeedAggregator/internal/domain"

// mergeUpdate applies an incoming sighting onto the stored record: present
// incoming text fields win and absent ones keep the stored value. Entity
// associations move as one unit, and only a matched sighting (or a record
// with none yet) replaces them.
func mergeUpdate(existing, incoming domain.CanonicalUpdate) domain.CanonicalUpdate {
	merged := existing
	merged.Title = incoming.Title
	merged.Link = incoming.Link
	merged.PublishedAt = incoming.PublishedAt
	merged.SourceLabel = incoming.SourceLabel
	if incoming.Description != nil {
		merged.Description = incoming.Description
	}
	if incoming.Content != nil {
		merged.Content = incoming.Content
	}
	if incoming.Matched || !existing.HasAssociations() {
		merged.ToolID = incoming.ToolID
		merged.ModelID = incoming.ModelID
		merged.MatchConfidence = incoming.MatchConfidence
		merged.RelatedTools = incoming.RelatedTools
		merged.RelatedModels = incoming.RelatedModels
	}
	return merged
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
