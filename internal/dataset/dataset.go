// Package dataset proxies the economic JSON APIs named in the catalog. Each
// request walks a fallback chain: hot in-process copy, origin fetch, then the
// durable snapshot written by the last successful fetch.
package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/raffaelramalhorosa/econdash/internal/fallback"
	"github.com/raffaelramalhorosa/econdash/internal/fetcher"
	"github.com/raffaelramalhorosa/econdash/internal/models"
)

const (
	DefaultTTL     = 10 * time.Minute
	DefaultTimeout = 8 * time.Second
)

var (
	ErrUnknownDataset = errors.New("unknown dataset")
	// ErrUnavailable means the origin failed and no snapshot exists.
	ErrUnavailable = errors.New("dataset unavailable")
	errInvalidJSON = errors.New("origin returned invalid JSON")
)

// Lookup resolves a dataset name to its upstream URL.
type Lookup interface {
	Dataset(name string) (string, bool)
}

// Meta reports which tier served a dataset.
type Meta struct {
	Hit   bool   `json:"hit"`
	Stale bool   `json:"stale"`
	Age   *int64 `json:"age,omitempty"`
}

// Result is the body of the dataset endpoint.
type Result struct {
	Data      json.RawMessage `json:"data"`
	Cache     Meta            `json:"_cache"`
	Timestamp time.Time       `json:"timestamp"`
}

// Options configures a Service. Zero fields fall back to defaults.
type Options struct {
	Client    *http.Client
	Timeout   time.Duration
	TTL       time.Duration
	UserAgent string
	Now       func() time.Time
}

type hot struct {
	data      json.RawMessage
	fetchedAt time.Time
}

// Service serves datasets.
type Service struct {
	lookup    Lookup
	snapshots *fallback.Snapshots
	client    *http.Client
	timeout   time.Duration
	ttl       time.Duration
	userAgent string
	now       func() time.Time
	logger    *slog.Logger

	mu  sync.RWMutex
	hot map[string]hot
}

// New creates a Service.
func New(lookup Lookup, snapshots *fallback.Snapshots, opts Options, logger *slog.Logger) *Service {
	s := &Service{
		lookup:    lookup,
		snapshots: snapshots,
		client:    opts.Client,
		timeout:   opts.Timeout,
		ttl:       opts.TTL,
		userAgent: opts.UserAgent,
		now:       opts.Now,
		logger:    logger,
		hot:       make(map[string]hot),
	}
	if s.client == nil {
		s.client = &http.Client{}
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.userAgent == "" {
		s.userAgent = fetcher.DefaultUserAgent
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Key is the fallback store key for a dataset.
func Key(name string) string {
	return name + ":data"
}

// Get returns the named dataset.
func (s *Service) Get(ctx context.Context, name string) (Result, error) {
	url, ok := s.lookup.Dataset(name)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownDataset, name)
	}
	now := s.now()

	s.mu.RLock()
	h, cached := s.hot[name]
	s.mu.RUnlock()
	if cached && now.Sub(h.fetchedAt) <= s.ttl {
		return Result{
			Data:      h.data,
			Cache:     Meta{Hit: true, Age: models.Seconds(now.Sub(h.fetchedAt))},
			Timestamp: now,
		}, nil
	}

	data, err := s.fetch(ctx, url)
	if err == nil {
		s.mu.Lock()
		s.hot[name] = hot{data: data, fetchedAt: now}
		s.mu.Unlock()
		s.snapshots.PutAsync(Key(name), data)
		return Result{Data: data, Timestamp: now}, nil
	}
	s.logger.Warn("dataset origin failed", "dataset", name, "error", err)

	if snap, ok := s.snapshots.Load(ctx, Key(name)); ok {
		return Result{
			Data:      snap.Data,
			Cache:     Meta{Stale: true, Age: models.Seconds(snap.Age(now))},
			Timestamp: now,
		}, nil
	}
	return Result{}, fmt.Errorf("%w: %s: %v", ErrUnavailable, name, err)
}

func (s *Service) fetch(ctx context.Context, url string) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &fetcher.StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, fetcher.MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > fetcher.MaxResponseSize {
		return nil, fetcher.ErrTooLarge
	}
	if !json.Valid(body) {
		return nil, errInvalidJSON
	}
	return json.RawMessage(body), nil
}
