//go:build !modernc

package modelbase

// testDriverName matches the driver registered by internal/sqlite for this
// build.
const testDriverName = "sqlite3"
