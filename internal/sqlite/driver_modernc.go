//go:build modernc

package sqlite

import (
	"fmt"

	// Ensure the driver is imported. The name "_" means we only want its side effects (registering the driver).
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// buildDSN constructs a DSN for modernc.org/sqlite.
// modernc uses the syntax: file:path?mode=rwc&_pragma=name(value)
func buildDSN(path string, mode Mode) string {
	return fmt.Sprintf(
		"file:%s?mode=%s&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
		path, mode.uriMode(),
	)
}
