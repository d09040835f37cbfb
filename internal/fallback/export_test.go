package fallback

import "time"

// SetSQLClock lets tests drive expiry on a SQLStore.
func SetSQLClock(s *SQLStore, now func() time.Time) {
	s.now = now
}
