package ports

import (
	"context"
	"time"

	"FeedAggregator/internal/domain"
)

// FeedStore keeps configured feed sources and their sync bookkeeping.
type FeedStore interface {
	FindEnabled(ctx context.Context) ([]domain.FeedSource, error)
	FindByURL(ctx context.Context, url string) (*domain.FeedSource, error)
	Create(ctx context.Context, source domain.FeedSource) (domain.FeedSource, error)
	Update(ctx context.Context, source domain.FeedSource) (domain.FeedSource, error)
	Upsert(ctx context.Context, source domain.FeedSource) (domain.FeedSource, error)
	RecordSync(ctx context.Context, id string, success bool, syncErr string) error
}

// UpdateStore persists canonical updates keyed by dedup key.
type UpdateStore interface {
	// BulkUpsert returns counts for the records that succeeded; per-record
	// failures are joined into the returned error.
	BulkUpsert(ctx context.Context, updates []domain.CanonicalUpdate) (domain.UpsertResult, error)
}

// EntityRegistry exposes known tools and models with their aliases.
type EntityRegistry interface {
	Entities(ctx context.Context, class domain.EntityClass) ([]domain.Entity, error)
}

// TouchNotifier receives the outcome of every run for downstream reactions.
type TouchNotifier interface {
	NotifyRun(ctx context.Context, result domain.RunResult) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

// SyncRecorder observes pipeline outcomes, typically for metrics.
type SyncRecorder interface {
	ObserveFeedSync(sourceLabel string, failed bool, duration time.Duration)
	ObserveUpserts(created, updated, failed uint)
	ObserveItemErrors(count uint)
}
