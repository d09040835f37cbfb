// Package aggregator serves category and aggregate feed requests on top of
// the category store, refreshing at most one category per request.
package aggregator

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/raffaelramalhorosa/econdash/internal/catalog"
	"github.com/raffaelramalhorosa/econdash/internal/fallback"
	"github.com/raffaelramalhorosa/econdash/internal/models"
	"github.com/raffaelramalhorosa/econdash/internal/scheduler"
	"github.com/raffaelramalhorosa/econdash/internal/store"
	"github.com/raffaelramalhorosa/econdash/internal/stream"
)

// Catalog lists categories and their sources.
type Catalog interface {
	Categories() []string
	Sources(category string) ([]models.FeedSource, error)
	Resolve(name string) (string, error)
}

// CategoryFetcher runs one category's fan-out. *fetcher.Fetcher satisfies it.
type CategoryFetcher interface {
	FetchCategory(ctx context.Context, category string, sources []models.FeedSource) models.CategoryFetch
}

// Service implements the serving logic for /api/feeds.
type Service struct {
	catalog   Catalog
	fetcher   CategoryFetcher
	store     *store.Store
	scheduler *scheduler.Scheduler
	snapshots *fallback.Snapshots
	limit     int
	logger    *slog.Logger
}

// New wires a Service. A non-positive limit means stream.DefaultLimit.
func New(cat Catalog, f CategoryFetcher, st *store.Store, snaps *fallback.Snapshots, limit int, logger *slog.Logger) *Service {
	if limit <= 0 {
		limit = stream.DefaultLimit
	}
	return &Service{
		catalog:   cat,
		fetcher:   f,
		store:     st,
		scheduler: scheduler.New(cat.Categories(), st, st.TTL()),
		snapshots: snaps,
		limit:     limit,
		logger:    logger,
	}
}

// SnapshotKey is the fallback key for a category or for All.
func SnapshotKey(category string) string {
	return "feeds:" + category
}

// Feeds resolves name and serves it. Unknown names wrap
// catalog.ErrUnknownCategory.
func (s *Service) Feeds(ctx context.Context, name string, force bool) (models.FeedResponse, error) {
	category, err := s.catalog.Resolve(name)
	if err != nil {
		return models.FeedResponse{}, err
	}
	if category == catalog.All {
		return s.All(ctx, force), nil
	}
	return s.Category(ctx, category, force), nil
}

// Category serves one category: the cached entry while fresh, otherwise a
// synchronous refresh. When the refresh yields nothing the previous entry,
// then the durable snapshot, is served instead.
func (s *Service) Category(ctx context.Context, category string, force bool) models.FeedResponse {
	if !force && !s.store.IsStale(category) {
		if e, ok := s.store.Get(category); ok {
			return s.respond(e.Feeds, e.Stream, nil, models.CacheMeta{
				Hit: true,
				Age: models.Seconds(s.store.Age(category)),
			})
		}
	}

	res, entry := s.refresh(ctx, category)
	if entry != nil {
		return s.respond(entry.Feeds, entry.Stream, res.Errors, models.CacheMeta{Refreshed: category})
	}

	if e, ok := s.store.Get(category); ok {
		return s.respond(e.Feeds, e.Stream, res.Errors, models.CacheMeta{
			Stale: true,
			Age:   models.Seconds(s.store.Age(category)),
		})
	}
	if e, age, ok := s.loadSnapshot(ctx, SnapshotKey(category)); ok {
		return s.respond(e.Feeds, e.Stream, res.Errors, models.CacheMeta{Stale: true, Age: models.Seconds(age)})
	}
	return s.respond(nil, nil, res.Errors, models.CacheMeta{})
}

// All serves the aggregate view. It refreshes at most one category, chosen
// by the scheduler, and reads every other category from the store as is.
// A forced request refreshes the oldest category even when it is fresh.
func (s *Service) All(ctx context.Context, force bool) models.FeedResponse {
	var (
		target string
		ok     bool
	)
	if force {
		target, ok = s.scheduler.Oldest()
	} else {
		target, ok = s.scheduler.Next()
	}

	var errs []string
	refreshed := ""
	if ok {
		res, entry := s.refresh(ctx, target)
		errs = res.Errors
		if entry != nil {
			refreshed = target
		}
	}

	var (
		maps   []map[string][]models.FeedItem
		oldest time.Duration
	)
	for _, c := range s.catalog.Categories() {
		e, found := s.store.Get(c)
		if !found {
			continue
		}
		maps = append(maps, e.Feeds)
		if age := s.store.Age(c); age > oldest {
			oldest = age
		}
	}
	feeds := stream.Merge(maps...)
	items := stream.Build(feeds, s.limit)

	if len(items) == 0 {
		if e, age, found := s.loadSnapshot(ctx, SnapshotKey(catalog.All)); found {
			return s.respond(e.Feeds, e.Stream, errs, models.CacheMeta{Stale: true, Age: models.Seconds(age)})
		}
		return s.respond(nil, nil, errs, models.CacheMeta{Refreshed: refreshed})
	}

	if refreshed != "" {
		s.snapshots.PutAsync(SnapshotKey(catalog.All), models.CategoryEntry{
			Feeds:     feeds,
			Stream:    items,
			FetchedAt: s.store.Now(),
		})
	}

	// A failed attempt is neither a hit nor fresh.
	meta := models.CacheMeta{Hit: !ok, Refreshed: refreshed, Stale: ok && refreshed == ""}
	if len(maps) > 0 {
		meta.Age = models.Seconds(oldest)
	}
	return s.respond(feeds, items, errs, meta)
}

// Refresh runs the scheduler's pick, if any, without serving a response.
// It returns the category it attempted.
func (s *Service) Refresh(ctx context.Context) (string, bool) {
	target, ok := s.scheduler.Next()
	if !ok {
		return "", false
	}
	s.refresh(ctx, target)
	return target, true
}

// refresh fetches one category and publishes the result. A refresh that
// produces no feed at all only records the attempt, keeping the old entry.
// The fetch is detached from ctx so a caller going away does not cut it short.
func (s *Service) refresh(ctx context.Context, category string) (models.CategoryFetch, *models.CategoryEntry) {
	sources, err := s.catalog.Sources(category)
	if err != nil {
		s.logger.Error("refresh of undeclared category", "category", category, "error", err)
		s.store.MarkAttempt(category)
		return models.CategoryFetch{Errors: []string{err.Error()}}, nil
	}

	res := s.fetcher.FetchCategory(context.WithoutCancel(ctx), category, sources)
	if len(res.Feeds) == 0 {
		s.store.MarkAttempt(category)
		s.logger.Warn("category refresh produced nothing", "category", category, "errors", len(res.Errors))
		return res, nil
	}

	entry := s.store.Set(category, res.Feeds, stream.Build(res.Feeds, s.limit))
	s.snapshots.PutAsync(SnapshotKey(category), entry)
	return res, entry
}

func (s *Service) loadSnapshot(ctx context.Context, key string) (models.CategoryEntry, time.Duration, bool) {
	snap, ok := s.snapshots.Load(ctx, key)
	if !ok {
		return models.CategoryEntry{}, 0, false
	}
	var e models.CategoryEntry
	if err := json.Unmarshal(snap.Data, &e); err != nil {
		s.logger.Warn("feed snapshot unreadable", "key", key, "error", err)
		return models.CategoryEntry{}, 0, false
	}
	return e, snap.Age(s.store.Now()), true
}

func (s *Service) respond(feeds map[string][]models.FeedItem, items []models.FeedItem, errs []string, meta models.CacheMeta) models.FeedResponse {
	if feeds == nil {
		feeds = map[string][]models.FeedItem{}
	}
	if items == nil {
		items = []models.FeedItem{}
	}
	return models.FeedResponse{
		Feeds:     feeds,
		Stream:    items,
		Errors:    errs,
		Cache:     meta,
		Timestamp: s.store.Now().UTC(),
	}
}

// Status reports the cache state of every category in declared order.
func (s *Service) Status() []models.CategoryStatus {
	categories := s.catalog.Categories()
	out := make([]models.CategoryStatus, 0, len(categories))
	for _, c := range categories {
		st := models.CategoryStatus{Name: c, Stale: s.store.IsStale(c)}
		if sources, err := s.catalog.Sources(c); err == nil {
			st.Feeds = len(sources)
		}
		if e, ok := s.store.Get(c); ok {
			st.Cached = true
			st.Items = len(e.Stream)
			st.AgeSeconds = models.Seconds(s.store.Age(c))
		}
		if t, ok := s.store.LastAttempt(c); ok {
			st.LastAttempt = &t
		}
		out = append(out, st)
	}
	return out
}
