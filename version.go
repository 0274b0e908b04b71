package modelbase

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrSchemaVersion is the single condition reported for any failure while
// reading the schema version: missing bookkeeping table, missing version
// row, or an unparsable value. Callers cannot distinguish the three; the
// wrapped cause is attached for diagnosis only.
var ErrSchemaVersion = errors.New("error while retrieving current schema version")

// SchemaVersion reads the version marker from the bookkeeping table and
// returns it as a nonzero integer.
func (m *Model) SchemaVersion() (int, error) {
	if err := m.Ready(); err != nil {
		return 0, err
	}

	var raw string
	err := m.db.QueryRow(
		fmt.Sprintf("SELECT value FROM %s WHERE key = ?", m.cfg.InternalTable),
		versionKey,
	).Scan(&raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSchemaVersion, err)
	}

	version, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSchemaVersion, err)
	}
	if version == 0 {
		return 0, fmt.Errorf("%w: version is zero", ErrSchemaVersion)
	}

	return version, nil
}
