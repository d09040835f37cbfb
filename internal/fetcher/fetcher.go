package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/raffaelramalhorosa/econdash/internal/models"
	"github.com/raffaelramalhorosa/econdash/internal/parse"
)

const (
	// MaxResponseSize caps how much of a feed body is read.
	MaxResponseSize = 10 * 1024 * 1024

	DefaultUserAgent = "econdash/1.0 (+feed aggregator)"
	DefaultTimeout   = 8 * time.Second

	acceptHeader = "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"
)

var (
	// ErrNoItems marks a 200 response that parsed into zero entries.
	ErrNoItems = errors.New("no items parsed")
	// ErrTooLarge marks a body over MaxResponseSize.
	ErrTooLarge = errors.New("response too large")
)

// StatusError is returned for any non-2xx upstream response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

// Options configures a Fetcher. Zero fields fall back to defaults.
type Options struct {
	Client      *http.Client
	Timeout     time.Duration
	UserAgent   string
	Retry       RetryPolicy
	MaxParallel int
	Parser      *parse.Parser
}

// Fetcher downloads and parses feeds. It never touches any cache.
type Fetcher struct {
	client      *http.Client
	parser      *parse.Parser
	timeout     time.Duration
	userAgent   string
	retry       RetryPolicy
	maxParallel int
	logger      *slog.Logger
}

// New returns a Fetcher.
func New(opts Options, logger *slog.Logger) *Fetcher {
	f := &Fetcher{
		client:      opts.Client,
		parser:      opts.Parser,
		timeout:     opts.Timeout,
		userAgent:   opts.UserAgent,
		retry:       opts.Retry,
		maxParallel: opts.MaxParallel,
		logger:      logger,
	}
	if f.client == nil {
		f.client = &http.Client{}
	}
	if f.parser == nil {
		f.parser = parse.New()
	}
	if f.timeout <= 0 {
		f.timeout = DefaultTimeout
	}
	if f.userAgent == "" {
		f.userAgent = DefaultUserAgent
	}
	return f
}

// Fetch downloads one feed, retrying transient failures per the retry policy.
// The result holds either a non-empty item list or an error.
func (f *Fetcher) Fetch(ctx context.Context, src models.FeedSource) models.FetchResult {
	var lastErr error
	attempts := 0

	for n := 0; n <= f.retry.MaxRetries; n++ {
		if n > 0 {
			if err := f.retry.wait(ctx, n); err != nil {
				break
			}
		}

		attempts++
		items, err := f.fetchOnce(ctx, src)
		if err == nil {
			f.logger.Info("feed fetched",
				"feed_id", src.ID,
				"category", src.Category,
				"attempt", attempts,
				"items", len(items),
			)
			return models.FetchResult{FeedID: src.ID, Items: items}
		}

		lastErr = err
		if ctx.Err() != nil || !f.retry.Retryable(err) {
			break
		}
		f.logger.Debug("feed fetch retrying", "feed_id", src.ID, "attempt", attempts, "error", err)
	}

	f.logger.Warn("feed fetch failed",
		"feed_id", src.ID,
		"category", src.Category,
		"attempts", attempts,
		"error", lastErr,
	)
	return models.FetchResult{FeedID: src.ID, Err: lastErr}
}

// fetchOnce performs a single bounded attempt.
func (f *Fetcher) fetchOnce(ctx context.Context, src models.FeedSource) ([]models.FeedItem, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, ErrTooLarge
	}

	items := f.parser.Parse(string(body), src.Name, src.Color)
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	return items, nil
}

// FetchCategory fans Fetch out over every source of one category and waits
// for all of them. A failing feed never aborts the batch: it shows up as one
// line in Errors while the others fill Feeds.
func (f *Fetcher) FetchCategory(ctx context.Context, category string, sources []models.FeedSource) models.CategoryFetch {
	out := models.CategoryFetch{Feeds: make(map[string][]models.FeedItem, len(sources))}
	if len(sources) == 0 {
		return out
	}

	started := time.Now()
	results := make(chan models.FetchResult, len(sources))

	var g errgroup.Group
	if f.maxParallel > 0 {
		g.SetLimit(f.maxParallel)
	}
	for _, src := range sources {
		g.Go(func() error {
			results <- f.Fetch(ctx, src)
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(results)
	}()

	for res := range results {
		if res.Err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("%s: %v", res.FeedID, res.Err))
			continue
		}
		out.Feeds[res.FeedID] = res.Items
	}
	sort.Strings(out.Errors)

	f.logger.Info("category fetched",
		"category", category,
		"feeds", len(sources),
		"ok", len(out.Feeds),
		"failed", len(out.Errors),
		"took", time.Since(started),
	)
	return out
}
