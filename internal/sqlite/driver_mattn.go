//go:build !modernc

package sqlite

import (
	"fmt"

	// Ensure the driver is imported. The name "_" means we only want its side effects (registering the driver).
	_ "github.com/mattn/go-sqlite3"
)

const driverName = "sqlite3"

// buildDSN constructs a DSN for github.com/mattn/go-sqlite3.
// mattn uses the syntax: file:path?mode=rwc&_busy_timeout=5000
func buildDSN(path string, mode Mode) string {
	// Busy timeout is generally a good idea.
	// Foreign keys are often enabled by default or good practice.
	return fmt.Sprintf(
		"file:%s?mode=%s&_busy_timeout=5000&_foreign_keys=on",
		path, mode.uriMode(),
	)
}
