package fallback

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const writeTimeout = 5 * time.Second

// Snapshots reads and writes Snapshot envelopes on a Store. Writes are
// detached: PutAsync returns immediately and failures are only logged.
type Snapshots struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
	wg     sync.WaitGroup
}

// NewSnapshots wraps store. A nil clock means time.Now.
func NewSnapshots(store Store, ttl time.Duration, now func() time.Time, logger *slog.Logger) *Snapshots {
	if now == nil {
		now = time.Now
	}
	return &Snapshots{store: store, ttl: ttl, logger: logger, now: now}
}

// PutAsync stores v under key in the background.
func (s *Snapshots) PutAsync(key string, v any) {
	raw, err := Encode(v, s.now())
	if err != nil {
		s.logger.Error("fallback encode failed", "key", key, "error", err)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		if err := s.store.Put(ctx, key, raw, s.ttl); err != nil {
			s.logger.Warn("fallback write failed", "key", key, "error", err)
			return
		}
		s.logger.Debug("fallback written", "key", key, "bytes", len(raw))
	}()
}

// Load returns the snapshot stored under key. Store and decode errors are
// logged and reported as absence: the fallback must never fail a request.
func (s *Snapshots) Load(ctx context.Context, key string) (Snapshot, bool) {
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Warn("fallback read failed", "key", key, "error", err)
		return Snapshot{}, false
	}
	if !ok {
		return Snapshot{}, false
	}
	snap, err := Decode(raw)
	if err != nil {
		s.logger.Warn("fallback snapshot corrupt", "key", key, "error", err)
		return Snapshot{}, false
	}
	return snap, true
}

// Wait blocks until every pending write has finished.
func (s *Snapshots) Wait() {
	s.wg.Wait()
}

// Now returns the clock used to stamp and age snapshots.
func (s *Snapshots) Now() time.Time {
	return s.now()
}
