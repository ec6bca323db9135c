package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"FeedAggregator/internal/domain"
	"FeedAggregator/internal/ports"
)

const updatesTable = "canonical_updates"

// Absent optional text fields keep the stored value; xmax = 0 only for fresh rows.
const (
	upsertUpdateHead = `ON CONFLICT (dedup_key) DO UPDATE
              SET title = EXCLUDED.title,
                  description = COALESCE(EXCLUDED.description, canonical_updates.description),
                  content = COALESCE(EXCLUDED.content, canonical_updates.content),
                  link = EXCLUDED.link,
                  published_at = EXCLUDED.published_at,
                  source_label = EXCLUDED.source_label,
                  updated_at = EXCLUDED.updated_at,
`
	upsertUpdateTail = `
              RETURNING (xmax = 0) AS inserted`

	storedUnassociated = `canonical_updates.tool_id IS NULL AND canonical_updates.model_id IS NULL
                       AND cardinality(canonical_updates.related_tools) = 0
                       AND cardinality(canonical_updates.related_models) = 0`
)

var associationColumns = []string{"tool_id", "model_id", "match_confidence", "related_tools", "related_models"}

var (
	// Associations from a matched sighting replace the stored set.
	replaceAssociationsSuffix = upsertUpdateHead + associationSet(func(col string) string {
		return "EXCLUDED." + col
	}) + upsertUpdateTail
	// Otherwise the stored set stays unless the record has none yet.
	keepAssociationsSuffix = upsertUpdateHead + associationSet(func(col string) string {
		return "CASE WHEN " + storedUnassociated + "\n                       THEN EXCLUDED." + col +
			" ELSE canonical_updates." + col + " END"
	}) + upsertUpdateTail
)

func associationSet(value func(col string) string) string {
	parts := make([]string, 0, len(associationColumns))
	for _, col := range associationColumns {
		parts = append(parts, "                  "+col+" = "+value(col))
	}
	return strings.Join(parts, ",\n")
}

// PostgresUpdateStore persists canonical updates into Postgres.
type PostgresUpdateStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ ports.UpdateStore = (*PostgresUpdateStore)(nil)

// NewPostgresUpdateStore wires a sql.DB implementation.
func NewPostgresUpdateStore(db *sql.DB) *PostgresUpdateStore {
	return &PostgresUpdateStore{db: db, now: time.Now}
}

// BulkUpsert upserts each record in its own statement so one rejected record
// does not abort the batch. Rejections, and records left unattempted after ctx
// is done, come back as *domain.RecordError.
func (r *PostgresUpdateStore) BulkUpsert(ctx context.Context, updates []domain.CanonicalUpdate) (domain.UpsertResult, error) {
	var (
		result domain.UpsertResult
		errs   []error
	)
	if r.db == nil {
		return result, errors.New("update store: database is not configured")
	}

	for i, update := range updates {
		if err := ctx.Err(); err != nil {
			for _, rest := range updates[i:] {
				errs = append(errs, &domain.RecordError{DedupKey: rest.DedupKey, Err: fmt.Errorf("bulk upsert interrupted: %w", err)})
			}
			break
		}
		if err := update.Validate(); err != nil {
			errs = append(errs, &domain.RecordError{DedupKey: update.DedupKey, Err: err})
			continue
		}

		inserted, err := r.upsertOne(ctx, update)
		if err != nil {
			errs = append(errs, &domain.RecordError{DedupKey: update.DedupKey, Err: err})
			continue
		}
		if inserted {
			result.Created++
		} else {
			result.Updated++
		}
	}

	return result, errors.Join(errs...)
}

func (r *PostgresUpdateStore) upsertOne(ctx context.Context, update domain.CanonicalUpdate) (bool, error) {
	now := r.now().UTC()
	query, args, err := psql.Insert(updatesTable).
		Columns(
			"dedup_key", "title", "description", "content", "link", "published_at",
			"source_label", "tool_id", "model_id", "match_confidence",
			"related_tools", "related_models", "created_at", "updated_at",
		).
		Values(
			update.DedupKey,
			update.Title,
			nullString(update.Description),
			nullString(update.Content),
			update.Link,
			update.PublishedAt.UTC(),
			update.SourceLabel,
			nullString(update.ToolID),
			nullString(update.ModelID),
			nullFloat(update.MatchConfidence),
			pq.Array(nonNil(update.RelatedTools)),
			pq.Array(nonNil(update.RelatedModels)),
			now,
			now,
		).
		Suffix(associationsSuffix(update)).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build upsert: %w", err)
	}

	var inserted bool
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&inserted); err != nil {
		return false, fmt.Errorf("upsert update: %w", err)
	}
	return inserted, nil
}

func associationsSuffix(update domain.CanonicalUpdate) string {
	if update.Matched {
		return replaceAssociationsSuffix
	}
	return keepAssociationsSuffix
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
