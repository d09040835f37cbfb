package scheduler_test

import (
	"testing"
	"time"

	"github.com/raffaelramalhorosa/econdash/internal/scheduler"
	"github.com/raffaelramalhorosa/econdash/internal/store"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

var categories = []string{"CRYPTO", "TREASURY", "ENERGY", "LABOR"}

func setup() (*scheduler.Scheduler, *store.Store, *clock) {
	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := store.New(store.DefaultTTL, c.Now)
	return scheduler.New(categories, s, store.DefaultTTL), s, c
}

func TestNext_RotatesThroughNeverRefreshedInDeclaredOrder(t *testing.T) {
	sched, s, _ := setup()

	var got []string
	for range categories {
		next, ok := sched.Next()
		if !ok {
			t.Fatal("expected a stale category")
		}
		got = append(got, next)
		s.MarkAttempt(next)
	}

	for i, want := range categories {
		if got[i] != want {
			t.Fatalf("refresh order = %v, want %v", got, categories)
		}
	}

	if next, ok := sched.Next(); ok {
		t.Fatalf("expected nothing stale after a full rotation, got %q", next)
	}
}

func TestNext_OldestFirst(t *testing.T) {
	sched, s, c := setup()

	// Refresh in reverse order, one minute apart.
	for i := len(categories) - 1; i >= 0; i-- {
		s.Set(categories[i], nil, nil)
		c.Advance(time.Minute)
	}
	c.Advance(store.DefaultTTL)

	want := []string{"LABOR", "ENERGY", "TREASURY", "CRYPTO"}
	for _, w := range want {
		next, ok := sched.Next()
		if !ok || next != w {
			t.Fatalf("Next() = %q, %v; want %q", next, ok, w)
		}
		s.Set(next, nil, nil)
	}
}

func TestNext_OnlyStaleCategory(t *testing.T) {
	sched, s, c := setup()

	s.Set("ENERGY", nil, nil)
	c.Advance(6 * time.Minute)
	for _, cat := range []string{"CRYPTO", "TREASURY", "LABOR"} {
		s.Set(cat, nil, nil)
	}

	next, ok := sched.Next()
	if !ok || next != "ENERGY" {
		t.Fatalf("Next() = %q, %v; want ENERGY", next, ok)
	}
}

func TestNext_NoneWithinTTL(t *testing.T) {
	sched, s, c := setup()
	for _, cat := range categories {
		s.Set(cat, nil, nil)
	}
	c.Advance(store.DefaultTTL)

	if next, ok := sched.Next(); ok {
		t.Fatalf("expected no refresh at exactly TTL, got %q", next)
	}
}

func TestOldest_IgnoresTTL(t *testing.T) {
	sched, s, c := setup()
	for _, cat := range categories {
		s.Set(cat, nil, nil)
		c.Advance(time.Second)
	}

	next, ok := sched.Oldest()
	if !ok || next != "CRYPTO" {
		t.Fatalf("Oldest() = %q, %v; want CRYPTO", next, ok)
	}
}

func TestEmptyScheduler(t *testing.T) {
	_, s, _ := setup()
	sched := scheduler.New(nil, s, store.DefaultTTL)
	if _, ok := sched.Next(); ok {
		t.Fatal("expected no category from empty scheduler")
	}
	if _, ok := sched.Oldest(); ok {
		t.Fatal("expected no category from empty scheduler")
	}
}
