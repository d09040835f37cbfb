package fallback_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/raffaelramalhorosa/econdash/internal/fallback"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock {
	return &clock{t: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
}

// exerciseStore runs the same contract checks against any backend.
func exerciseStore(t *testing.T, s fallback.Store, c *clock) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok:%v err:%v, want absent", ok, err)
	}

	if err := s.Put(ctx, "bls:data", `{"v":1}`, time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, "bls:data", `{"v":2}`, time.Hour); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	v, ok, err := s.Get(ctx, "bls:data")
	if err != nil || !ok || v != `{"v":2}` {
		t.Fatalf("Get = %q, %v, %v; want last write", v, ok, err)
	}

	if err := s.Put(ctx, "forever", "x", 0); err != nil {
		t.Fatalf("Put without ttl: %v", err)
	}

	c.Advance(2 * time.Hour)
	if _, ok, _ := s.Get(ctx, "bls:data"); ok {
		t.Fatal("expected expired entry to read as absent")
	}
	if _, ok, _ := s.Get(ctx, "forever"); !ok {
		t.Fatal("entry without ttl should not expire")
	}
}

func TestMemoryStore(t *testing.T) {
	c := newClock()
	exerciseStore(t, fallback.NewMemoryStore(c.Now), c)
}

func TestSQLiteStore(t *testing.T) {
	s, err := fallback.OpenSQLite(filepath.Join(t.TempDir(), "fallback.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()

	c := newClock()
	fallback.SetSQLClock(s, c.Now)
	exerciseStore(t, s, c)
}

func TestOpen(t *testing.T) {
	s, err := fallback.Open(context.Background(), fallback.Options{})
	if err != nil {
		t.Fatalf("default backend: %v", err)
	}
	if _, ok := s.(*fallback.MemoryStore); !ok {
		t.Fatalf("expected memory store by default, got %T", s)
	}

	if _, err := fallback.Open(context.Background(), fallback.Options{Backend: "redis"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if _, err := fallback.Open(context.Background(), fallback.Options{Backend: "sqlite"}); err == nil {
		t.Fatal("expected error for sqlite without path")
	}
}

func TestEncodeDecode(t *testing.T) {
	saved := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	raw, err := fallback.Encode(map[string]int{"a": 1}, saved)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	snap, err := fallback.Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !snap.SavedAt.Equal(saved) {
		t.Errorf("SavedAt = %v, want %v", snap.SavedAt, saved)
	}
	var data map[string]int
	if err := json.Unmarshal(snap.Data, &data); err != nil || data["a"] != 1 {
		t.Errorf("unexpected data %s", snap.Data)
	}
	if got := snap.Age(saved.Add(time.Hour)); got != time.Hour {
		t.Errorf("Age = %v, want 1h", got)
	}

	if _, err := fallback.Decode("not json"); err == nil {
		t.Error("expected error for corrupt snapshot")
	}
	if _, err := fallback.Decode(`{"savedAt":"2026-01-01T00:00:00Z"}`); err == nil {
		t.Error("expected error for snapshot without data")
	}
}

func TestSnapshots_PutAsyncThenLoad(t *testing.T) {
	c := newClock()
	snaps := fallback.NewSnapshots(fallback.NewMemoryStore(c.Now), time.Hour, c.Now, quietLogger())

	snaps.PutAsync("feeds:ALL", []string{"x", "y"})
	snaps.Wait()

	snap, ok := snaps.Load(context.Background(), "feeds:ALL")
	if !ok {
		t.Fatal("expected snapshot after write")
	}
	if !snap.SavedAt.Equal(c.Now()) {
		t.Errorf("SavedAt = %v, want %v", snap.SavedAt, c.Now())
	}
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("boom")
}
func (failingStore) Put(context.Context, string, string, time.Duration) error {
	return errors.New("boom")
}
func (failingStore) Close() error { return nil }

func TestSnapshots_SwallowsStoreErrors(t *testing.T) {
	snaps := fallback.NewSnapshots(failingStore{}, time.Hour, nil, quietLogger())

	snaps.PutAsync("k", 1)
	snaps.Wait()

	if _, ok := snaps.Load(context.Background(), "k"); ok {
		t.Fatal("expected failing store to read as absent")
	}
}

func TestSnapshots_CorruptEntryIsAbsent(t *testing.T) {
	store := fallback.NewMemoryStore(nil)
	store.Put(context.Background(), "k", "garbage", 0)

	snaps := fallback.NewSnapshots(store, time.Hour, nil, quietLogger())
	if _, ok := snaps.Load(context.Background(), "k"); ok {
		t.Fatal("expected corrupt entry to read as absent")
	}
}
