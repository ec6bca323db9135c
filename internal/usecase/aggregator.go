package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"FeedAggregator/internal/dedup"
	"FeedAggregator/internal/domain"
	"FeedAggregator/internal/matcher"
	"FeedAggregator/internal/ports"
	"FeedAggregator/internal/scanner"
)

const defaultMaxRelated = 5

// ParserSelector resolves a parser for a feed transport.
type ParserSelector interface {
	CreateParser(transport domain.TransportType, opts *domain.TransportOptions) (scanner.Parser, error)
}

// AggregatorOptions tunes matching and run behaviour.
type AggregatorOptions struct {
	// Threshold defaults to matcher.DefaultThreshold when nil.
	Threshold          *float64
	MaxRelated         int
	Workers            int
	SeenCapacity       int
	ErrorWarnThreshold uint
}

// AggregatorDeps wires all driven adapters into the aggregator.
type AggregatorDeps struct {
	Feeds       ports.FeedStore
	Updates     ports.UpdateStore
	Registry    ports.EntityRegistry
	Parsers     ParserSelector
	Transformer *Transformer
	Notifier    ports.TouchNotifier
	Recorder    ports.SyncRecorder
	Logger      *slog.Logger
	Options     AggregatorOptions
}

// Aggregator drives feeds through parse, transform, match and persist.
type Aggregator struct {
	feeds       ports.FeedStore
	updates     ports.UpdateStore
	registry    ports.EntityRegistry
	parsers     ParserSelector
	transformer *Transformer
	notifier    ports.TouchNotifier
	recorder    ports.SyncRecorder
	logger      *slog.Logger
	opts        AggregatorOptions
	threshold   float64
}

// runContext is the state shared by every feed of one run.
type runContext struct {
	matcher *matcher.Matcher
	seen    *dedup.Seen
	// matched is false when no registry backs the matcher.
	matched bool
}

// NewAggregator constructs the orchestration component.
func NewAggregator(deps AggregatorDeps) *Aggregator {
	opts := deps.Options
	threshold := matcher.DefaultThreshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}
	if opts.MaxRelated <= 0 {
		opts.MaxRelated = defaultMaxRelated
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	transformer := deps.Transformer
	if transformer == nil {
		transformer = NewTransformer(nil)
	}

	return &Aggregator{
		feeds:       deps.Feeds,
		updates:     deps.Updates,
		registry:    deps.Registry,
		parsers:     deps.Parsers,
		transformer: transformer,
		notifier:    deps.Notifier,
		recorder:    deps.Recorder,
		logger:      deps.Logger,
		opts:        opts,
		threshold:   threshold,
	}
}

// SyncFeed runs a single source with a fresh run context. Sync bookkeeping is
// left to the caller; SyncAll records it for every source.
func (a *Aggregator) SyncFeed(ctx context.Context, source domain.FeedSource) (domain.SyncResult, error) {
	run, err := a.newRun(ctx)
	if err != nil {
		return domain.SyncResult{SourceID: source.ID, URL: source.URL, EntitiesTouched: []string{}}, err
	}
	return a.syncFeed(ctx, run, source)
}

// SyncAll syncs every enabled source and never fails as a whole: per-source
// failures are reported in the result.
func (a *Aggregator) SyncAll(ctx context.Context) domain.RunResult {
	result := domain.RunResult{StartedAt: time.Now().UTC(), EntitiesTouched: []string{}, Sources: []domain.SyncResult{}}

	sources, err := a.feeds.FindEnabled(ctx)
	if err != nil {
		a.logError("load enabled feeds", "error", err)
		result.Err = fmt.Sprintf("load enabled feeds: %v", err)
		result.FinishedAt = time.Now().UTC()
		return result
	}

	run, err := a.newRun(ctx)
	if err != nil {
		a.logError("entity registry unavailable, syncing without associations", "error", err)
		run = &runContext{matcher: matcher.New(nil, nil)}
		run.seen, _ = dedup.NewSeen(a.opts.SeenCapacity)
	}

	results := make([]domain.SyncResult, len(sources))
	if a.opts.Workers <= 1 {
		for i, source := range sources {
			results[i] = a.syncSource(ctx, run, source)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(a.opts.Workers)
		for i, source := range sources {
			i, source := i, source
			g.Go(func() error {
				results[i] = a.syncSource(ctx, run, source)
				return nil
			})
		}
		_ = g.Wait()
	}

	touched := map[string]struct{}{}
	for _, res := range results {
		result.Created += res.Created
		result.Updated += res.Updated
		result.Errors += res.Errors
		if res.Failed() {
			result.FailedSources++
		}
		for _, id := range res.EntitiesTouched {
			touched[id] = struct{}{}
		}
	}
	result.Sources = results
	result.EntitiesTouched = sortedKeys(touched)
	result.FinishedAt = time.Now().UTC()

	a.info("run finished",
		"sources", len(sources),
		"failed_sources", result.FailedSources,
		"created", result.Created,
		"updated", result.Updated,
		"errors", result.Errors,
		"entities_touched", len(result.EntitiesTouched))

	if a.notifier != nil {
		if err := a.notifier.NotifyRun(ctx, result); err != nil {
			a.warn("notify run", "error", err)
		}
	}

	return result
}

func (a *Aggregator) newRun(ctx context.Context) (*runContext, error) {
	seen, err := dedup.NewSeen(a.opts.SeenCapacity)
	if err != nil {
		return nil, err
	}
	m, err := matcher.Load(ctx, a.registry)
	if err != nil {
		return nil, fmt.Errorf("load entity registry: %w", err)
	}
	tools, models := m.Size()
	a.debug("entity index ready", "tools", tools, "models", models)
	return &runContext{matcher: m, seen: seen, matched: a.registry != nil}, nil
}

// syncSource is the per-source failure boundary: it always records the sync.
func (a *Aggregator) syncSource(ctx context.Context, run *runContext, source domain.FeedSource) domain.SyncResult {
	start := time.Now()
	res, err := a.guardedSync(ctx, run, source)
	res.Duration = time.Since(start)

	syncErr := ""
	if err != nil {
		syncErr = err.Error()
		res.Err = syncErr
	}

	// bookkeeping must land even when the run context is cancelled
	if rerr := a.feeds.RecordSync(context.WithoutCancel(ctx), source.ID, err == nil, syncErr); rerr != nil {
		a.logError("record sync", "feed", source.URL, "error", rerr)
	}

	errorCount := uint(0)
	if err != nil {
		errorCount = source.ErrorCount + 1
	}
	if a.opts.ErrorWarnThreshold > 0 && errorCount >= a.opts.ErrorWarnThreshold {
		res.Degraded = true
		a.warn("feed keeps failing", "feed", source.URL, "error_count", errorCount, "error", syncErr)
	}

	if a.recorder != nil {
		a.recorder.ObserveFeedSync(sourceLabel(source), err != nil, res.Duration)
		a.recorder.ObserveItemErrors(res.Errors)
	}

	if err != nil {
		a.warn("feed failed", "feed", source.URL, "error", err)
	} else {
		a.info("feed synced",
			"feed", source.URL,
			"created", res.Created,
			"updated", res.Updated,
			"errors", res.Errors,
			"skipped", res.Skipped)
	}
	return res
}

func (a *Aggregator) guardedSync(ctx context.Context, run *runContext, source domain.FeedSource) (res domain.SyncResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = domain.SyncResult{SourceID: source.ID, URL: source.URL, EntitiesTouched: []string{}}
			err = fmt.Errorf("panic while syncing: %v", r)
		}
	}()
	return a.syncFeed(ctx, run, source)
}

func (a *Aggregator) syncFeed(ctx context.Context, run *runContext, source domain.FeedSource) (domain.SyncResult, error) {
	res := domain.SyncResult{SourceID: source.ID, URL: source.URL, EntitiesTouched: []string{}}

	parser, err := a.parsers.CreateParser(source.TransportType, source.TransportOptions)
	if err != nil {
		return res, fmt.Errorf("create parser: %w", err)
	}

	items, err := parser.Parse(ctx, source.URL)
	if err != nil {
		return res, fmt.Errorf("parse %s: %w", source.URL, err)
	}
	a.debug("feed parsed", "feed", source.URL, "items", len(items))

	batch := make([]domain.CanonicalUpdate, 0, len(items))
	for _, item := range items {
		update, skipped, err := a.processItem(run, item, source)
		switch {
		case err != nil:
			res.Errors++
			a.debug("item rejected", "feed", source.URL, "link", item.Link, "error", err)
		case skipped:
			res.Skipped++
		default:
			batch = append(batch, update)
		}
	}

	if len(batch) == 0 {
		return res, nil
	}

	counts, err := a.updates.BulkUpsert(ctx, batch)
	res.Created = counts.Created
	res.Updated = counts.Updated

	failed, fatal := splitRecordErrors(err)
	res.Errors += uint(len(failed))
	if a.recorder != nil {
		a.recorder.ObserveUpserts(counts.Created, counts.Updated, uint(len(failed)))
	}
	if fatal != nil && counts.Created+counts.Updated == 0 {
		return res, fmt.Errorf("persist updates: %w", fatal)
	}
	unaccounted := len(batch) - int(counts.Created+counts.Updated) - len(failed)
	if fatal != nil {
		if unaccounted > 0 {
			res.Errors += uint(unaccounted)
		}
		a.warn("persist updates partially failed", "feed", source.URL, "error", fatal)
	}
	if unaccounted > 0 {
		// Persisted records cannot be told apart from lost ones.
		return res, nil
	}

	touched := map[string]struct{}{}
	for _, update := range batch {
		if _, bad := failed[update.DedupKey]; bad {
			continue
		}
		for _, id := range associatedIDs(update) {
			touched[id] = struct{}{}
		}
	}
	res.EntitiesTouched = sortedKeys(touched)

	return res, nil
}

// processItem transforms and matches one item; panics become item errors.
func (a *Aggregator) processItem(run *runContext, item domain.RawFeedItem, source domain.FeedSource) (update domain.CanonicalUpdate, skipped bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("process item: %v", r)
		}
	}()

	update, ok := a.transformer.Transform(item, source)
	if !ok {
		return update, false, errors.New("item has neither title nor link")
	}
	if run.seen != nil && run.seen.Observe(update.DedupKey) {
		return update, true, nil
	}

	text := strings.Join(nonEmpty(update.Title, deref(update.Description), deref(update.Content)), "\n")
	tools := run.matcher.MatchTools(text, a.threshold)
	models := run.matcher.MatchModels(text, a.threshold)
	applyMatches(&update, tools, models, a.threshold, a.opts.MaxRelated)
	update.Matched = run.matched

	return update, false, nil
}

// applyMatches attaches primary and related associations. A feed hint counts
// as a match at the threshold and is replaced only by a strictly stronger one.
func applyMatches(update *domain.CanonicalUpdate, tools, models []domain.EntityMatch, floor float64, maxRelated int) {
	var toolConf, modelConf *float64
	update.ToolID, toolConf, update.RelatedTools = choosePrimary(update.ToolID, tools, floor, maxRelated)
	update.ModelID, modelConf, update.RelatedModels = choosePrimary(update.ModelID, models, floor, maxRelated)

	switch {
	case toolConf != nil && modelConf != nil:
		best := *toolConf
		if *modelConf > best {
			best = *modelConf
		}
		update.MatchConfidence = &best
	case toolConf != nil:
		update.MatchConfidence = toolConf
	case modelConf != nil:
		update.MatchConfidence = modelConf
	default:
		update.MatchConfidence = nil
	}
}

func choosePrimary(hint *string, matches []domain.EntityMatch, floor float64, maxRelated int) (*string, *float64, []string) {
	var primary string
	var conf *float64

	hintConf := floor
	var hintMatched *float64
	if hint != nil {
		for _, m := range matches {
			if m.EntityID == *hint {
				c := m.Confidence
				hintMatched = &c
				if c > hintConf {
					hintConf = c
				}
				break
			}
		}
	}

	switch {
	case len(matches) > 0 && (hint == nil || matches[0].Confidence > hintConf):
		primary = matches[0].EntityID
		c := matches[0].Confidence
		conf = &c
	case hint != nil:
		primary = *hint
		conf = hintMatched
	default:
		return nil, nil, []string{}
	}

	related := make([]string, 0, len(matches)+1)
	seen := map[string]struct{}{primary: {}}
	if hint != nil {
		if _, dup := seen[*hint]; !dup {
			seen[*hint] = struct{}{}
			related = append(related, *hint)
		}
	}
	for _, m := range matches {
		if _, dup := seen[m.EntityID]; dup {
			continue
		}
		seen[m.EntityID] = struct{}{}
		related = append(related, m.EntityID)
	}
	if len(related) > maxRelated {
		related = related[:maxRelated]
	}

	return &primary, conf, related
}

// splitRecordErrors separates per-record failures from store-wide errors.
func splitRecordErrors(err error) (map[string]struct{}, error) {
	failed := map[string]struct{}{}
	if err == nil {
		return failed, nil
	}

	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}

	var other []error
	for _, e := range errs {
		var recErr *domain.RecordError
		if errors.As(e, &recErr) {
			failed[recErr.DedupKey] = struct{}{}
			continue
		}
		other = append(other, e)
	}
	return failed, errors.Join(other...)
}

func associatedIDs(update domain.CanonicalUpdate) []string {
	ids := make([]string, 0, 2+len(update.RelatedTools)+len(update.RelatedModels))
	if update.ToolID != nil {
		ids = append(ids, *update.ToolID)
	}
	if update.ModelID != nil {
		ids = append(ids, *update.ModelID)
	}
	ids = append(ids, update.RelatedTools...)
	return append(ids, update.RelatedModels...)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func nonEmpty(values ...string) []string {
	out := values[:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (a *Aggregator) debug(msg string, args ...interface{}) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}

func (a *Aggregator) info(msg string, args ...interface{}) {
	if a.logger != nil {
		a.logger.Info(msg, args...)
	}
}

func (a *Aggregator) warn(msg string, args ...interface{}) {
	if a.logger != nil {
		a.logger.Warn(msg, args...)
	}
}

func (a *Aggregator) logError(msg string, args ...interface{}) {
	if a.logger != nil {
		a.logger.Error(msg, args...)
	}
}
