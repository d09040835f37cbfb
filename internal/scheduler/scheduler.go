// Package scheduler picks which single category an aggregate request refreshes.
package scheduler

import "time"

// Clock reports refresh attempts. *store.Store satisfies it.
type Clock interface {
	LastAttempt(category string) (time.Time, bool)
	Now() time.Time
}

// Scheduler rotates refreshes oldest-first across a fixed category list.
//
// A category whose refreshes keep failing is still picked whenever its
// attempt is the oldest: an attempt is recorded even when nothing was cached,
// so it waits a full TTL like everyone else rather than being retried on every
// request, but it is never skipped.
type Scheduler struct {
	categories []string
	clock      Clock
	ttl        time.Duration
}

// New returns a Scheduler. categories is copied; its order breaks ties.
func New(categories []string, clock Clock, ttl time.Duration) *Scheduler {
	return &Scheduler{
		categories: append([]string(nil), categories...),
		clock:      clock,
		ttl:        ttl,
	}
}

// Next returns the category with the oldest refresh attempt, provided that
// attempt is older than the TTL. Never-attempted categories count as
// infinitely old; ties go to the first declared category.
func (s *Scheduler) Next() (string, bool) {
	name, age, ok := s.oldest()
	if !ok || age <= s.ttl {
		return "", false
	}
	return name, true
}

// Oldest ignores the TTL. Forced refreshes use it so that repeating them
// still walks through every category.
func (s *Scheduler) Oldest() (string, bool) {
	name, _, ok := s.oldest()
	return name, ok
}

func (s *Scheduler) oldest() (string, time.Duration, bool) {
	now := s.clock.Now()

	var (
		best    string
		bestAge time.Duration
		found   bool
	)
	for _, c := range s.categories {
		age := time.Duration(1<<63 - 1)
		if t, ok := s.clock.LastAttempt(c); ok {
			age = now.Sub(t)
		}
		if !found || age > bestAge {
			best, bestAge, found = c, age, true
		}
	}
	return best, bestAge, found
}
