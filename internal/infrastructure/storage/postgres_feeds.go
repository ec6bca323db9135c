package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"FeedAggregator/internal/domain"
	"FeedAggregator/internal/ports"
)

const (
	feedsTable         = "feed_sources"
	uniqueViolation    = "23505"
	upsertFeedConflict = `ON CONFLICT (url) DO UPDATE
              SET source_label = EXCLUDED.source_label,
                  transport_type = EXCLUDED.transport_type,
                  tool_id = EXCLUDED.tool_id,
                  model_id = EXCLUDED.model_id,
                  transport_options = EXCLUDED.transport_options,
                  enabled = EXCLUDED.enabled,
                  updated_at = EXCLUDED.updated_at`
)

var feedColumns = []string{
	"id", "url", "source_label", "transport_type", "tool_id", "model_id",
	"transport_options", "enabled", "error_count", "last_error", "last_synced_at",
	"created_at", "updated_at",
}

// PostgresFeedStore persists feed sources into Postgres.
type PostgresFeedStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ ports.FeedStore = (*PostgresFeedStore)(nil)

// NewPostgresFeedStore wires a sql.DB implementation.
func NewPostgresFeedStore(db *sql.DB) *PostgresFeedStore {
	return &PostgresFeedStore{db: db, now: time.Now}
}

// FindEnabled returns enabled sources, oldest first.
func (r *PostgresFeedStore) FindEnabled(ctx context.Context) ([]domain.FeedSource, error) {
	query, args, err := psql.Select(feedColumns...).
		From(feedsTable).
		Where(sq.Eq{"enabled": true}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query enabled feeds: %w", err)
	}

	var sources []domain.FeedSource
	for rows.Next() {
		src, err := scanFeed(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		sources = append(sources, src)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return sources, nil
}

// FindByURL returns nil when no source has the url.
func (r *PostgresFeedStore) FindByURL(ctx context.Context, url string) (*domain.FeedSource, error) {
	query, args, err := psql.Select(feedColumns...).
		From(feedsTable).
		Where(sq.Eq{"url": strings.TrimSpace(url)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	src, err := scanFeed(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &src, nil
}

// Create inserts a new source, assigning an id when missing.
func (r *PostgresFeedStore) Create(ctx context.Context, source domain.FeedSource) (domain.FeedSource, error) {
	insert, err := r.insertBuilder(source)
	if err != nil {
		return domain.FeedSource{}, err
	}
	return r.returning(ctx, insert.Suffix("RETURNING "+strings.Join(feedColumns, ", ")), source.URL)
}

// Update replaces configuration fields; sync bookkeeping is left untouched.
func (r *PostgresFeedStore) Update(ctx context.Context, source domain.FeedSource) (domain.FeedSource, error) {
	options, err := encodeOptions(source.TransportOptions)
	if err != nil {
		return domain.FeedSource{}, err
	}

	update := psql.Update(feedsTable).
		SetMap(map[string]interface{}{
			"url":               strings.TrimSpace(source.URL),
			"source_label":      source.SourceLabel,
			"transport_type":    string(source.TransportType),
			"tool_id":           nullIfEmpty(source.EntityHint.ToolID),
			"model_id":          nullIfEmpty(source.EntityHint.ModelID),
			"transport_options": options,
			"enabled":           source.Enabled,
			"updated_at":        r.now().UTC(),
		}).
		Where(sq.Eq{"id": source.ID}).
		Suffix("RETURNING " + strings.Join(feedColumns, ", "))

	updated, err := r.returning(ctx, update, source.URL)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.FeedSource{}, fmt.Errorf("%w: %s", domain.ErrFeedNotFound, source.ID)
	}
	return updated, err
}

// Upsert creates the source or updates the one with the same url in a single statement.
func (r *PostgresFeedStore) Upsert(ctx context.Context, source domain.FeedSource) (domain.FeedSource, error) {
	insert, err := r.insertBuilder(source)
	if err != nil {
		return domain.FeedSource{}, err
	}
	return r.returning(ctx, insert.Suffix(upsertFeedConflict+" RETURNING "+strings.Join(feedColumns, ", ")), source.URL)
}

// RecordSync resets or increments the error counter and stamps last_synced_at.
func (r *PostgresFeedStore) RecordSync(ctx context.Context, id string, success bool, syncErr string) error {
	update := psql.Update(feedsTable).
		Set("last_synced_at", r.now().UTC()).
		Where(sq.Eq{"id": id})
	if success {
		update = update.Set("error_count", 0).Set("last_error", nil)
	} else {
		update = update.Set("error_count", sq.Expr("error_count + 1")).Set("last_error", syncErr)
	}

	query, args, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("build record sync: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("record sync: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record sync rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrFeedNotFound, id)
	}
	return nil
}

func (r *PostgresFeedStore) insertBuilder(source domain.FeedSource) (sq.InsertBuilder, error) {
	url := strings.TrimSpace(source.URL)
	if url == "" {
		return sq.InsertBuilder{}, errors.New("feed source url is required")
	}
	options, err := encodeOptions(source.TransportOptions)
	if err != nil {
		return sq.InsertBuilder{}, err
	}
	if source.ID == "" {
		source.ID = uuid.NewString()
	}
	now := r.now().UTC()

	return psql.Insert(feedsTable).
		Columns(
			"id", "url", "source_label", "transport_type", "tool_id", "model_id",
			"transport_options", "enabled", "created_at", "updated_at",
		).
		Values(
			source.ID,
			url,
			source.SourceLabel,
			string(source.TransportType),
			nullIfEmpty(source.EntityHint.ToolID),
			nullIfEmpty(source.EntityHint.ModelID),
			options,
			source.Enabled,
			now,
			now,
		), nil
}

func (r *PostgresFeedStore) returning(ctx context.Context, builder sq.Sqlizer, url string) (domain.FeedSource, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return domain.FeedSource{}, fmt.Errorf("build statement: %w", err)
	}

	src, err := scanFeed(r.db.QueryRowContext(ctx, query, args...))
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return domain.FeedSource{}, fmt.Errorf("%w: %s", domain.ErrDuplicateURL, url)
	}
	return src, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFeed(row rowScanner) (domain.FeedSource, error) {
	var (
		src        domain.FeedSource
		transport  string
		toolID     sql.NullString
		modelID    sql.NullString
		options    []byte
		errorCount int64
		lastError  sql.NullString
		lastSynced sql.NullTime
	)

	err := row.Scan(
		&src.ID, &src.URL, &src.SourceLabel, &transport, &toolID, &modelID,
		&options, &src.Enabled, &errorCount, &lastError, &lastSynced,
		&src.CreatedAt, &src.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return src, err
	}
	if err != nil {
		return src, fmt.Errorf("scan feed: %w", err)
	}

	src.TransportType = domain.TransportType(transport)
	src.EntityHint = domain.EntityHint{ToolID: toolID.String, ModelID: modelID.String}
	if errorCount > 0 {
		src.ErrorCount = uint(errorCount)
	}
	src.LastError = fromNullString(lastError)
	if lastSynced.Valid {
		at := lastSynced.Time
		src.LastSyncedAt = &at
	}
	if len(options) > 0 {
		var opts domain.TransportOptions
		if err := json.Unmarshal(options, &opts); err != nil {
			return src, fmt.Errorf("decode transport options for %s: %w", src.URL, err)
		}
		src.TransportOptions = &opts
	}

	return src, nil
}

func encodeOptions(opts *domain.TransportOptions) (interface{}, error) {
	if opts == nil {
		return nil, nil
	}
	raw, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("encode transport options: %w", err)
	}
	return string(raw), nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
