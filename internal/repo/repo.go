package repo

import (
	"database/sql"
	"time"

	"github.com/helmsman-ai/helmsman/internal/types"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = types.ErrNotFound

// Timestamps are stored as fixed-width UTC text so lexicographic order
// matches time order under SQLite's ORDER BY. RFC3339Nano would not do:
// it drops trailing fractional zeros, and ".1Z" sorts after ".099Z".
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func fmtTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func notFound(err error) error {
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	return err
}
