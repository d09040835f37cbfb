package store

import (
	"math"
	"sync"
	"time"

	"github.com/raffaelramalhorosa/econdash/internal/models"
)

// DefaultTTL is how long a category entry stays fresh.
const DefaultTTL = 5 * time.Minute

// Infinite is the age reported for a category that was never cached.
const Infinite = time.Duration(math.MaxInt64)

// Store is the process-wide category cache plus the refresh clock the
// scheduler rotates on. All public methods are safe for concurrent use.
//
// Entries are published by swapping a pointer under the lock and are never
// modified afterwards, so a reader holds either the old or the new entry.
type Store struct {
	mu       sync.RWMutex
	entries  map[string]*models.CategoryEntry
	attempts map[string]time.Time
	ttl      time.Duration
	now      func() time.Time
}

// New creates an empty Store. A nil clock means time.Now.
func New(ttl time.Duration, now func() time.Time) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Store{
		entries:  make(map[string]*models.CategoryEntry),
		attempts: make(map[string]time.Time),
		ttl:      ttl,
		now:      now,
	}
}

// TTL returns the freshness window.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// ---------- Entries ----------

// Get returns the cached entry for category, if any.
func (s *Store) Get(category string) (*models.CategoryEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[category]
	return e, ok
}

// Set replaces the category's entry wholesale and stamps the entry and the
// refresh clock with the same instant.
func (s *Store) Set(category string, feeds map[string][]models.FeedItem, stream []models.FeedItem) *models.CategoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e := &models.CategoryEntry{
		Feeds:     feeds,
		Stream:    stream,
		FetchedAt: now,
	}
	s.entries[category] = e
	s.attempts[category] = now
	return e
}

// IsStale reports whether category is absent or older than the TTL.
func (s *Store) IsStale(category string) bool {
	return s.Age(category) > s.ttl
}

// Age returns the time since the category's entry was fetched, or Infinite.
func (s *Store) Age(category string) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[category]
	if !ok {
		return Infinite
	}
	return s.now().Sub(e.FetchedAt)
}

// ---------- Refresh clock ----------

// MarkAttempt records a refresh attempt without touching the entry. It is
// used when a refresh produced nothing worth caching.
func (s *Store) MarkAttempt(category string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts[category] = s.now()
}

// LastAttempt returns when category was last refreshed or attempted.
func (s *Store) LastAttempt(category string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.attempts[category]
	return t, ok
}

// Now exposes the store's clock so collaborators measure age consistently.
func (s *Store) Now() time.Time {
	return s.now()
}
