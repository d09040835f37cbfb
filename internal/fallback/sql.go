package fallback

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS fallback_entries (
	entry_key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	expires_at BIGINT NOT NULL DEFAULT 0,
	updated_at BIGINT NOT NULL
)`

// SQLStore keeps entries in a single table. The same statements run on
// SQLite and Postgres; only the placeholder style differs.
type SQLStore struct {
	db       *sql.DB
	numbered bool
	now      func() time.Time
}

// OpenSQLite opens (creating if needed) a SQLite database file.
func OpenSQLite(path string) (*SQLStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite fallback needs a database path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer keeps SQLite out of "database is locked".
	db.SetMaxOpenConns(1)

	return newSQLStore(db, false)
}

// OpenPostgres connects to Postgres using a lib/pq connection string.
func OpenPostgres(dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres fallback needs a connection string")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return newSQLStore(db, true)
}

func newSQLStore(db *sql.DB, numbered bool) (*SQLStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &SQLStore{db: db, numbered: numbered, now: time.Now}, nil
}

// rebind rewrites ? placeholders as $1, $2, ... for Postgres.
func (s *SQLStore) rebind(query string) string {
	if !s.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		value   string
		expires int64
	)
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT value, expires_at FROM fallback_entries WHERE entry_key = ?`), key)
	err := row.Scan(&value, &expires)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select fallback entry: %w", err)
	}

	var deadline time.Time
	if expires > 0 {
		deadline = time.UnixMilli(expires)
	}
	if expired(deadline, s.now()) {
		return "", false, nil
	}
	return value, true, nil
}

func (s *SQLStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	now := s.now()
	var expires int64
	if d := expiry(now, ttl); !d.IsZero() {
		expires = d.UnixMilli()
	}

	query := `
		INSERT INTO fallback_entries (entry_key, value, expires_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (entry_key) DO UPDATE
		SET value = excluded.value, expires_at = excluded.expires_at, updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, s.rebind(query), key, value, expires, now.UnixMilli()); err != nil {
		return fmt.Errorf("upsert fallback entry: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
