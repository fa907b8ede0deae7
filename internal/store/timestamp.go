package store

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"repoindex/internal/errors"
)

// TimestampFile is the persisted sync marker co-located with the index.
// Absence means "never synced"; downstream consumers treat that as a
// full-resync signal.
const TimestampFile = "timestamp"

// ReadTimestamp reads the persisted timestamp marker from an index root.
// A missing or unparseable marker yields nil (never synced).
func ReadTimestamp(dir string) (*time.Time, error) {
	data, err := os.ReadFile(filepath.Join(dir, TimestampFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.IOError("read timestamp marker", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(string(data)))
	if err != nil {
		// Corrupt marker degrades to "never synced" rather than failing open.
		return nil, nil
	}
	return &ts, nil
}

// WriteTimestamp persists the timestamp marker, or removes it when ts is
// nil to reset the index to "never synced".
func WriteTimestamp(dir string, ts *time.Time) error {
	path := filepath.Join(dir, TimestampFile)

	if ts == nil {
		err := os.Remove(path)
		if err != nil && !os.IsNotExist(err) {
			return errors.IOError("delete timestamp marker", err)
		}
		return nil
	}

	content := []byte(ts.UTC().Format(time.RFC3339Nano))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return errors.IOError("write timestamp marker", err)
	}
	return nil
}
