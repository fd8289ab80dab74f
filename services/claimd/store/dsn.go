package store

import (
	"fmt"
	"path/filepath"
	"strings"
)

const defaultFilePragmas = "mode=rwc&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// FileDSN converts a filesystem path into an on-disk SQLite DSN with sensible
// defaults. Callers must ensure the path is non-empty.
func FileDSN(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", ErrDSNRequired
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve settlement store path: %w", err)
	}
	return fmt.Sprintf("file:%s?%s", abs, defaultFilePragmas), nil
}

// ParseDSN splits a configured DSN into a driver name and the DSN handed to
// that driver. Accepted forms are postgres:// and postgresql:// URLs,
// sqlite://<path>, sqlite::memory: and file: DSNs.
func ParseDSN(raw string) (driver, dsn string, err error) {
	trimmed := strings.TrimSpace(raw)
	switch {
	case trimmed == "":
		return "", "", ErrDSNRequired
	case strings.HasPrefix(trimmed, "postgres://"), strings.HasPrefix(trimmed, "postgresql://"):
		return DriverPostgres, trimmed, nil
	case trimmed == "sqlite::memory:":
		return DriverSQLite, "file::memory:?cache=shared", nil
	case strings.HasPrefix(trimmed, "sqlite://"):
		dsn, err := FileDSN(strings.TrimPrefix(trimmed, "sqlite://"))
		if err != nil {
			return "", "", err
		}
		return DriverSQLite, dsn, nil
	case strings.HasPrefix(trimmed, "file:"):
		return DriverSQLite, trimmed, nil
	default:
		return "", "", fmt.Errorf("unsupported settlement store DSN %q", raw)
	}
}
