package modelbase

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const (
	// DatabaseIDKey is the bookkeeping-table key holding the database UUID.
	DatabaseIDKey = "database_uuid"
)

// ErrNoDatabaseID is returned by DatabaseID when no UUID has been assigned.
var ErrNoDatabaseID = errors.New("database has no UUID")

// DatabaseID returns the UUID previously assigned to this database file.
// The UUID is opt-in; initialization does not create one.
func (m *Model) DatabaseID() (string, error) {
	if err := m.Ready(); err != nil {
		return "", err
	}

	var id string
	err := m.db.QueryRow(
		fmt.Sprintf("SELECT value FROM %s WHERE key = ?", m.cfg.InternalTable),
		DatabaseIDKey,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoDatabaseID
	}
	if err != nil {
		return "", fmt.Errorf("failed to query database UUID: %w", err)
	}
	return id, nil
}

// EnsureDatabaseID returns the database UUID, generating and storing a new
// one if none exists yet.
func (m *Model) EnsureDatabaseID() (string, error) {
	id, err := m.DatabaseID()
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrNoDatabaseID) {
		return "", err
	}

	id = uuid.New().String()
	_, err = m.db.Exec(
		fmt.Sprintf("INSERT INTO %s (key, value) VALUES (?, ?)", m.cfg.InternalTable),
		DatabaseIDKey, id,
	)
	if err != nil {
		return "", fmt.Errorf("failed to store database UUID: %w", err)
	}
	return id, nil
}
