package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"FeedAggregator/internal/domain"
	"FeedAggregator/internal/ports"
)

// MemoryFeedStore keeps feed sources in process; used for tests and for
// running without a database.
type MemoryFeedStore struct {
	mu    sync.Mutex
	byID  map[string]domain.FeedSource
	order []string
	now   func() time.Time
}

var _ ports.FeedStore = (*MemoryFeedStore)(nil)

// NewMemoryFeedStore builds an empty store.
func NewMemoryFeedStore() *MemoryFeedStore {
	return &MemoryFeedStore{byID: map[string]domain.FeedSource{}, now: time.Now}
}

// FindEnabled returns enabled sources in creation order.
func (s *MemoryFeedStore) FindEnabled(ctx context.Context) ([]domain.FeedSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.FeedSource, 0, len(s.order))
	for _, id := range s.order {
		if src := s.byID[id]; src.Enabled {
			out = append(out, cloneSource(src))
		}
	}
	return out, nil
}

// FindByURL returns nil when no source has the url.
func (s *MemoryFeedStore) FindByURL(ctx context.Context, url string) (*domain.FeedSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if src, ok := s.findByURLLocked(url); ok {
		out := cloneSource(src)
		return &out, nil
	}
	return nil, nil
}

// Create inserts a new source; the url must be unused.
func (s *MemoryFeedStore) Create(ctx context.Context, source domain.FeedSource) (domain.FeedSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.createLocked(source)
}

// Update replaces the configuration fields of an existing source.
func (s *MemoryFeedStore) Update(ctx context.Context, source domain.FeedSource) (domain.FeedSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateLocked(source)
}

// Upsert updates the source holding the same url, or creates it.
func (s *MemoryFeedStore) Upsert(ctx context.Context, source domain.FeedSource) (domain.FeedSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.findByURLLocked(source.URL); ok {
		source.ID = existing.ID
		return s.updateLocked(source)
	}
	return s.createLocked(source)
}

// RecordSync applies sync bookkeeping for one source.
func (s *MemoryFeedStore) RecordSync(ctx context.Context, id string, success bool, syncErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrFeedNotFound, id)
	}

	now := s.now().UTC()
	src.LastSyncedAt = &now
	if success {
		src.ErrorCount = 0
		src.LastError = nil
	} else {
		src.ErrorCount++
		msg := syncErr
		src.LastError = &msg
	}
	s.byID[id] = src
	return nil
}

func (s *MemoryFeedStore) findByURLLocked(url string) (domain.FeedSource, bool) {
	url = strings.TrimSpace(url)
	for _, id := range s.order {
		if src := s.byID[id]; src.URL == url {
			return src, true
		}
	}
	return domain.FeedSource{}, false
}

func (s *MemoryFeedStore) createLocked(source domain.FeedSource) (domain.FeedSource, error) {
	source.URL = strings.TrimSpace(source.URL)
	if source.URL == "" {
		return domain.FeedSource{}, errors.New("feed source url is required")
	}
	if _, taken := s.findByURLLocked(source.URL); taken {
		return domain.FeedSource{}, fmt.Errorf("%w: %s", domain.ErrDuplicateURL, source.URL)
	}
	if source.ID == "" {
		source.ID = uuid.NewString()
	}
	if _, taken := s.byID[source.ID]; taken {
		return domain.FeedSource{}, fmt.Errorf("feed source id %s already exists", source.ID)
	}

	now := s.now().UTC()
	source.CreatedAt = now
	source.UpdatedAt = now
	s.byID[source.ID] = cloneSource(source)
	s.order = append(s.order, source.ID)
	return cloneSource(source), nil
}

func (s *MemoryFeedStore) updateLocked(source domain.FeedSource) (domain.FeedSource, error) {
	existing, ok := s.byID[source.ID]
	if !ok {
		return domain.FeedSource{}, fmt.Errorf("%w: %s", domain.ErrFeedNotFound, source.ID)
	}
	source.URL = strings.TrimSpace(source.URL)
	if other, taken := s.findByURLLocked(source.URL); taken && other.ID != source.ID {
		return domain.FeedSource{}, fmt.Errorf("%w: %s", domain.ErrDuplicateURL, source.URL)
	}

	existing.URL = source.URL
	existing.SourceLabel = source.SourceLabel
	existing.TransportType = source.TransportType
	existing.EntityHint = source.EntityHint
	existing.TransportOptions = source.TransportOptions
	existing.Enabled = source.Enabled
	existing.UpdatedAt = s.now().UTC()

	s.byID[existing.ID] = cloneSource(existing)
	return cloneSource(existing), nil
}

func cloneSource(src domain.FeedSource) domain.FeedSource {
	out := src
	if src.LastError != nil {
		msg := *src.LastError
		out.LastError = &msg
	}
	if src.LastSyncedAt != nil {
		at := *src.LastSyncedAt
		out.LastSyncedAt = &at
	}
	if src.TransportOptions != nil {
		opts := *src.TransportOptions
		if src.TransportOptions.Headers != nil {
			opts.Headers = make(map[string]string, len(src.TransportOptions.Headers))
			for k, v := range src.TransportOptions.Headers {
				opts.Headers[k] = v
			}
		}
		out.TransportOptions = &opts
	}
	return out
}

// MemoryUpdateStore keeps canonical updates in process.
type MemoryUpdateStore struct {
	mu      sync.Mutex
	records map[string]domain.CanonicalUpdate
	now     func() time.Time
}

var _ ports.UpdateStore = (*MemoryUpdateStore)(nil)

// NewMemoryUpdateStore builds an empty store.
func NewMemoryUpdateStore() *MemoryUpdateStore {
	return &MemoryUpdateStore{records: map[string]domain.CanonicalUpdate{}, now: time.Now}
}

// BulkUpsert inserts or merges every valid update; invalid ones are reported
// as *domain.RecordError without affecting the rest of the batch.
func (s *MemoryUpdateStore) BulkUpsert(ctx context.Context, updates []domain.CanonicalUpdate) (domain.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		result domain.UpsertResult
		errs   []error
	)
	for _, update := range updates {
		if err := update.Validate(); err != nil {
			errs = append(errs, &domain.RecordError{DedupKey: update.DedupKey, Err: err})
			continue
		}

		now := s.now().UTC()
		update.RelatedTools = cloneStrings(update.RelatedTools)
		update.RelatedModels = cloneStrings(update.RelatedModels)

		if existing, ok := s.records[update.DedupKey]; ok {
			merged := mergeUpdate(existing, update)
			merged.UpdatedAt = now
			s.records[update.DedupKey] = merged
			result.Updated++
			continue
		}

		update.CreatedAt = now
		update.UpdatedAt = now
		s.records[update.DedupKey] = update
		result.Created++
	}

	return result, errors.Join(errs...)
}

// Get returns the stored record for key.
func (s *MemoryUpdateStore) Get(key string) (domain.CanonicalUpdate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	update, ok := s.records[key]
	return update, ok
}

// Len returns the number of stored records.
func (s *MemoryUpdateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.records)
}
