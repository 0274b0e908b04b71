// Package sqlite opens SQLite database files with explicit open-mode flags.
// The driver behind the connection is selected at build time; see the
// driver_*.go files.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
)

// Mode is a bitmask of open-mode flags, mirroring the SQLITE_OPEN_* values.
type Mode int

const (
	// OpenReadOnly opens an existing database for reading only.
	OpenReadOnly Mode = 0x1
	// OpenReadWrite opens an existing database for reading and writing.
	OpenReadWrite Mode = 0x2
	// OpenCreate creates the database file if it does not exist. Only valid
	// combined with OpenReadWrite.
	OpenCreate Mode = 0x4
)

// DefaultMode is the mode used when callers pass zero: read/write, creating
// the file if needed.
const DefaultMode = OpenReadWrite | OpenCreate

// Validate checks that the mode flags are a legal combination.
func (m Mode) Validate() error {
	if m&OpenReadOnly != 0 && m&(OpenReadWrite|OpenCreate) != 0 {
		return fmt.Errorf("invalid open mode %#x: read-only excludes read-write and create", int(m))
	}
	if m&(OpenReadOnly|OpenReadWrite) == 0 {
		return fmt.Errorf("invalid open mode %#x: need read-only or read-write", int(m))
	}
	return nil
}

// uriMode returns the SQLite URI mode parameter for the flags.
func (m Mode) uriMode() string {
	switch {
	case m&OpenReadOnly != 0:
		return "ro"
	case m&OpenCreate != 0:
		return "rwc"
	default:
		return "rw"
	}
}

// Open opens the SQLite database at path using the given mode flags.
// Zero mode means DefaultMode. For creating modes the containing directory
// is created first. The connection is pinged before it is returned, so a
// read-only open against a nonexistent file fails here rather than on first
// use.
func Open(path string, mode Mode) (*sql.DB, error) {
	if mode == 0 {
		mode = DefaultMode
	}
	if err := mode.Validate(); err != nil {
		return nil, err
	}

	if mode&OpenCreate != 0 {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return nil, fmt.Errorf("create directory %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open(driverName, buildDSN(path, mode))
	if err != nil {
		return nil, fmt.Errorf("sql open failed: %w", err)
	}

	// Ping to verify the connection is alive immediately after opening.
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping failed after open: %w", err)
	}

	return db, nil
}
