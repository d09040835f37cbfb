// Package fallback persists last-known-good results in an external key/value
// store so a restarted process, or one whose live fetch failed, still has
// something to serve.
package fallback

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DefaultTTL bounds how long a snapshot is kept.
const DefaultTTL = 7 * 24 * time.Hour

// Store is a text key/value store with per-key expiry. Expired keys read as
// absent. Writes are last-write-wins.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Close() error
}

// Snapshot wraps a stored payload with the time it was saved.
type Snapshot struct {
	SavedAt time.Time       `json:"savedAt"`
	Data    json.RawMessage `json:"data"`
}

// Age returns how old the snapshot is relative to now.
func (s Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.SavedAt)
}

// Encode marshals v into a snapshot stamped with savedAt.
func Encode(v any, savedAt time.Time) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot data: %w", err)
	}
	b, err := json.Marshal(Snapshot{SavedAt: savedAt.UTC(), Data: data})
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	return string(b), nil
}

// Decode parses a stored snapshot.
func Decode(raw string) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if len(s.Data) == 0 {
		return Snapshot{}, fmt.Errorf("decode snapshot: no data")
	}
	return s, nil
}

// Options selects and configures a backend.
type Options struct {
	Backend          string // memory, sqlite, postgres or firestore
	DSN              string // file path for sqlite, connection string for postgres
	FirestoreProject string
	FirestoreCreds   string // optional service account JSON file
}

// Open builds the configured backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(opts.Backend) {
	case "", "memory":
		return NewMemoryStore(nil), nil
	case "sqlite":
		return OpenSQLite(opts.DSN)
	case "postgres":
		return OpenPostgres(opts.DSN)
	case "firestore":
		return OpenFirestore(ctx, opts.FirestoreProject, opts.FirestoreCreds)
	default:
		return nil, fmt.Errorf("unknown fallback backend: %q", opts.Backend)
	}
}

// expiry converts a ttl into an absolute deadline; zero means no expiry.
func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

func expired(deadline, now time.Time) bool {
	return !deadline.IsZero() && !now.Before(deadline)
}
