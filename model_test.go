package modelbase

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestModel builds a Model against a fresh temp file and waits for
// readiness.
func newTestModel(t *testing.T, initSQL []string, queries map[string]string) *Model {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "model_test.db")
	t.Logf("Test database path: %s", dbPath)

	m := New(Config{
		Path:    dbPath,
		InitSQL: initSQL,
		Queries: queries,
	})
	require.NoError(t, m.Ready(), "Model initialization failed")
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestReadyCreatesBookkeeping(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "fresh.db")

	m := New(Config{Path: dbPath})
	require.NoError(t, m.Ready(), "Readiness failed for fresh database")

	// Ready is idempotent under repeated calls
	require.NoError(t, m.Ready(), "Second Ready call failed")
	require.NoError(t, m.Ready(), "Third Ready call failed")

	assert.True(t, m.IsNew(), "Expected fresh database to be reported new")
	assert.FileExists(t, dbPath, "Expected database file to be created")

	version, err := m.SchemaVersion()
	require.NoError(t, err, "Reading schema version failed")
	assert.Equal(t, 1, version, "Expected seeded schema version 1")

	require.NoError(t, m.Close(), "Closing model failed")

	// Reopening the same file must not re-run initialization
	m2 := New(Config{Path: dbPath})
	require.NoError(t, m2.Ready(), "Readiness failed for existing database")
	assert.False(t, m2.IsNew(), "Expected existing database to not be new")
	require.NoError(t, m2.Close(), "Closing second model failed")
}

func TestInitSQLRunsInOrder(t *testing.T) {
	// The second unit references a table created by the first, so any
	// reordering or parallelism would fail it.
	m := newTestModel(t, []string{
		"CREATE TABLE parent (id INTEGER PRIMARY KEY, name TEXT NOT NULL)",
		"CREATE TABLE child (id INTEGER PRIMARY KEY, parent_id INTEGER NOT NULL REFERENCES parent(id))",
		"INSERT INTO parent (id, name) VALUES (1, 'root')",
	}, nil)

	require.NoError(t, m.ExecSQL("INSERT INTO child (id, parent_id) VALUES (1, 1)"),
		"Inserting into child failed")
}

func TestInitSQLFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	sqlPath := filepath.Join(tmpDir, "schema.sql")
	schema := "-- test schema\nCREATE TABLE items ( -- items table\n  id INTEGER PRIMARY KEY,\n  label TEXT NOT NULL\n);\n"
	require.NoError(t, os.WriteFile(sqlPath, []byte(schema), 0600), "Writing schema file failed")

	m := newTestModel(t, []string{sqlPath}, map[string]string{
		"insert": "INSERT INTO items (label) VALUES (?)",
	})

	insert, err := m.Stmt("insert")
	require.NoError(t, err, "Getting insert statement failed")
	_, err = insert.Run("widget")
	require.NoError(t, err, "Inserting via file-defined schema failed")
}

func TestInitSQLFailureAbortsRemainingUnits(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "abort.db")

	m := New(Config{
		Path: dbPath,
		InitSQL: []string{
			"CREATE TABLE ok (id INTEGER)",
			"THIS IS NOT SQL",
			"CREATE TABLE never (id INTEGER)",
		},
	})
	require.Error(t, m.Ready(), "Expected readiness to fail on bad init unit")

	// Units after the failing one must not have run.
	db, err := sql.Open(testDriverName, dbPath)
	require.NoError(t, err, "Opening database directly failed")
	defer db.Close()

	var count int
	err = db.QueryRow("SELECT count(*) FROM sqlite_master WHERE type='table' AND name='never'").Scan(&count)
	require.NoError(t, err, "Checking for aborted table failed")
	assert.Equal(t, 0, count, "Expected table after failed unit to not exist")
}

func TestPrepareFailureNamesQuery(t *testing.T) {
	m := New(Config{
		Path: filepath.Join(t.TempDir(), "badquery.db"),
		Queries: map[string]string{
			"broken": "SELECT * FROM no_such_table",
		},
	})

	err := m.Ready()
	require.Error(t, err, "Expected readiness to fail on unpreparable query")
	assert.Contains(t, err.Error(), "broken", "Expected error to name the query")
	assert.Contains(t, err.Error(), "no_such_table", "Expected error to include the SQL")
}

func TestReadOnlyMissingFileFailsReadiness(t *testing.T) {
	m := New(Config{
		Path: filepath.Join(t.TempDir(), "missing.db"),
		Mode: OpenReadOnly,
	})
	require.Error(t, m.Ready(), "Expected read-only open of missing file to fail readiness")
}

func TestReadOnlyWriteRejected(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ro.db")

	// Initialize the file with a writable instance first.
	writer := New(Config{
		Path:    dbPath,
		InitSQL: []string{"CREATE TABLE t (v INTEGER NOT NULL)"},
	})
	require.NoError(t, writer.Ready(), "Writer initialization failed")
	require.NoError(t, writer.Close(), "Closing writer failed")

	reader := New(Config{
		Path: dbPath,
		Mode: OpenReadOnly,
		Queries: map[string]string{
			"insert": "INSERT INTO t (v) VALUES (?)",
			"count":  "SELECT count(*) AS n FROM t",
		},
	})
	require.NoError(t, reader.Ready(), "Read-only open of existing database failed")
	defer reader.Close()

	insert, err := reader.Stmt("insert")
	require.NoError(t, err, "Getting insert statement failed")
	_, err = insert.Run(1)
	require.Error(t, err, "Expected write against read-only database to fail")

	// Reads still work, and other statements are unaffected.
	count, err := reader.Stmt("count")
	require.NoError(t, err, "Getting count statement failed")
	row, err := count.Get()
	require.NoError(t, err, "Counting rows read-only failed")
	assert.EqualValues(t, 0, row["n"], "Expected empty table")
}

func TestTwoInstancesSeeCommittedWrites(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "shared.db")

	writer := New(Config{
		Path:    dbPath,
		InitSQL: []string{"CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT NOT NULL)"},
		Queries: map[string]string{
			"insert": "INSERT INTO notes (body) VALUES (?)",
		},
	})
	require.NoError(t, writer.Ready(), "Writer initialization failed")
	defer writer.Close()

	reader := New(Config{
		Path: dbPath,
		Mode: OpenReadWrite,
		Queries: map[string]string{
			"all": "SELECT body FROM notes ORDER BY id",
		},
	})
	require.NoError(t, reader.Ready(), "Reader initialization failed")
	defer reader.Close()

	insert, err := writer.Stmt("insert")
	require.NoError(t, err, "Getting insert statement failed")
	_, err = insert.Run("hello from writer")
	require.NoError(t, err, "Writing via writer failed")

	all, err := reader.Stmt("all")
	require.NoError(t, err, "Getting all statement failed")
	rows, err := all.All()
	require.NoError(t, err, "Reading via reader failed")
	require.Len(t, rows, 1, "Expected the committed write to be visible")
	assert.Equal(t, "hello from writer", rows[0]["body"])
}

// TestInsertScenario is the end-to-end shape most embedders use: one init
// statement, one named query, one write, one read back.
func TestInsertScenario(t *testing.T) {
	m := newTestModel(t,
		[]string{"CREATE TABLE t (v INTEGER NOT NULL)"},
		map[string]string{"insert": "INSERT INTO t (v) VALUES (?)"},
	)

	insert, err := m.Stmt("insert")
	require.NoError(t, err, "Getting insert statement failed")

	res, err := insert.Run(42)
	require.NoError(t, err, "Insert failed")
	assert.EqualValues(t, 1, res.RowsAffected, "Expected one affected row")

	sel, err := m.PrepareStmt("SELECT v FROM t")
	require.NoError(t, err, "Preparing ad hoc select failed")
	defer sel.Finalize()

	rows, err := sel.All()
	require.NoError(t, err, "Selecting rows failed")
	require.Len(t, rows, 1, "Expected exactly one row")
	assert.EqualValues(t, 42, rows[0]["v"], "Expected the inserted value")
}

func TestStmtUnknownName(t *testing.T) {
	m := newTestModel(t, nil, nil)
	_, err := m.Stmt("nope")
	require.Error(t, err, "Expected unknown query name to fail")
}

func TestCloseIsIdempotent(t *testing.T) {
	m := newTestModel(t,
		[]string{"CREATE TABLE t (v INTEGER)"},
		map[string]string{"insert": "INSERT INTO t (v) VALUES (?)"},
	)
	require.NoError(t, m.Close(), "First close failed")
	require.NoError(t, m.Close(), "Second close failed")
}
