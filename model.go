// Package modelbase is a convenience base layer over a SQLite database file.
// Constructing a Model opens (or creates) the file, runs schema
// initialization SQL exactly once for new databases, prepares a named set of
// queries, and gates all use behind a single readiness signal.
package modelbase

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/modelbase/modelbase/internal/log"
	"github.com/modelbase/modelbase/internal/sqlite"
	"github.com/modelbase/modelbase/internal/sqltext"
)

const (
	// DefaultInternalTable is the default name of the bookkeeping table. The
	// leading underscore keeps it apart from user schema.
	DefaultInternalTable = "_modelbase"

	versionKey = "version"
)

// Mode is the open-mode bitmask for a Model's database file.
type Mode = sqlite.Mode

// Open-mode flags, re-exported for configuration convenience.
const (
	OpenReadOnly  = sqlite.OpenReadOnly
	OpenReadWrite = sqlite.OpenReadWrite
	OpenCreate    = sqlite.OpenCreate
)

// Config describes one Model. It is read once at construction and never
// mutated afterward.
type Config struct {
	// Path is the database file path.
	Path string
	// Mode is the open-mode bitmask. Zero means read/write plus create.
	Mode sqlite.Mode
	// InitSQL lists the initialization units executed, in order, when the
	// database is new. Each unit is either inline SQL text or a path to a
	// file containing SQL; an existing file wins the ambiguity.
	InitSQL []string
	// Queries maps logical query names to SQL text. Every entry is prepared
	// during initialization.
	Queries map[string]string
	// Verbose raises the process-wide log level to debug.
	Verbose bool
	// InternalTable overrides the bookkeeping table name.
	InternalTable string
}

// Model owns a database handle and its prepared statements. All methods
// other than construction wait on the readiness signal; the first error in
// the open/initialize/prepare sequence fails readiness permanently.
type Model struct {
	cfg   Config
	db    *sql.DB
	stmts map[string]*Statement
	isNew bool

	ready    chan struct{}
	readyErr error

	closeOnce sync.Once
	closeErr  error
}

// New constructs a Model and starts its lifecycle: open, detect whether the
// database is new, initialize it if so, prepare all configured queries.
// Failures are reported through Ready, not here.
func New(cfg Config) *Model {
	if cfg.InternalTable == "" {
		cfg.InternalTable = DefaultInternalTable
	}
	if cfg.Verbose {
		log.SetLevel(zerolog.DebugLevel)
	}

	m := &Model{
		cfg:   cfg,
		stmts: make(map[string]*Statement, len(cfg.Queries)),
		ready: make(chan struct{}),
	}
	go m.initialize()
	return m
}

// Ready blocks until the open/initialize/prepare sequence has settled and
// returns its outcome. It may be called any number of times and always
// returns the same result.
func (m *Model) Ready() error {
	<-m.ready
	return m.readyErr
}

// IsNew reports whether this instance created and initialized the database
// file. Valid once Ready has returned nil.
func (m *Model) IsNew() bool {
	<-m.ready
	return m.isNew
}

// DB exposes the underlying handle for embedding layers that need direct
// access. It fails if readiness failed.
func (m *Model) DB() (*sql.DB, error) {
	if err := m.Ready(); err != nil {
		return nil, err
	}
	return m.db, nil
}

// Stmt returns the prepared statement registered under name.
func (m *Model) Stmt(name string) (*Statement, error) {
	if err := m.Ready(); err != nil {
		return nil, err
	}
	st, ok := m.stmts[name]
	if !ok {
		return nil, fmt.Errorf("no prepared query named %s", name)
	}
	return st, nil
}

// initialize runs the whole lifecycle and settles the readiness signal
// exactly once.
func (m *Model) initialize() {
	defer close(m.ready)

	if err := m.open(); err != nil {
		m.readyErr = err
		log.Error().Err(err).Str("path", m.cfg.Path).Msg("Model initialization failed")
		return
	}

	isNew, err := m.detectNew()
	if err != nil {
		m.readyErr = err
		log.Error().Err(err).Str("path", m.cfg.Path).Msg("Model initialization failed")
		return
	}
	m.isNew = isNew

	if isNew {
		if err := m.initNew(); err != nil {
			m.readyErr = err
			log.Error().Err(err).Str("path", m.cfg.Path).Msg("Model initialization failed")
			return
		}
	}

	if err := m.prepareAll(); err != nil {
		m.readyErr = err
		log.Error().Err(err).Str("path", m.cfg.Path).Msg("Model initialization failed")
		return
	}

	log.Debug().
		Str("path", m.cfg.Path).
		Bool("new", isNew).
		Int("queries", len(m.stmts)).
		Msg("Model ready")
}

func (m *Model) open() error {
	log.Debug().Str("path", m.cfg.Path).Msg("Opening database")
	db, err := sqlite.Open(m.cfg.Path, m.cfg.Mode)
	if err != nil {
		return fmt.Errorf("error opening database %s: %w", m.cfg.Path, err)
	}
	m.db = db
	return nil
}

// detectNew checks the system catalog for the bookkeeping table; its absence
// means the database has never been initialized by this wrapper.
func (m *Model) detectNew() (bool, error) {
	var name string
	err := m.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
		m.cfg.InternalTable,
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("error checking for table %s: %w", m.cfg.InternalTable, err)
	}
	return false, nil
}

// initNew creates the bookkeeping table, seeds the version marker, and runs
// every configured init unit strictly in order. A failing unit aborts the
// rest.
func (m *Model) initNew() error {
	log.Debug().Str("path", m.cfg.Path).Msg("Initializing new database")

	_, err := m.db.Exec(fmt.Sprintf(
		"CREATE TABLE %s (key TEXT PRIMARY KEY, value TEXT NOT NULL)",
		m.cfg.InternalTable,
	))
	if err != nil {
		return fmt.Errorf("error creating table %s: %w", m.cfg.InternalTable, err)
	}

	_, err = m.db.Exec(
		fmt.Sprintf("INSERT INTO %s (key, value) VALUES (?, ?)", m.cfg.InternalTable),
		versionKey, "1",
	)
	if err != nil {
		return fmt.Errorf("error seeding table %s: %w", m.cfg.InternalTable, err)
	}

	for i, unit := range m.cfg.InitSQL {
		sqlText := unit
		if sqltext.IsFile(unit) {
			sqlText, err = sqltext.FromFile(unit)
			if err != nil {
				return err
			}
		}
		log.Debug().Int("unit", i).Msg("Executing init sql")
		if err := m.execSQL(sqlText); err != nil {
			return fmt.Errorf("init unit %d: %w", i, err)
		}
	}

	return nil
}

// prepareAll prepares every configured query concurrently. The queries are
// independent of each other, so there is no ordering to preserve; the first
// failure wins and fails readiness.
func (m *Model) prepareAll() error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for name, query := range m.cfg.Queries {
		wg.Add(1)
		go func(name, query string) {
			defer wg.Done()
			stmt, err := m.db.Prepare(query)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("error preparing query %s (%s): %w", name, query, err)
				}
				return
			}
			m.stmts[name] = &Statement{name: name, sql: query, stmt: stmt}
		}(name, query)
	}
	wg.Wait()

	return firstErr
}

func (m *Model) execSQL(sqlText string) error {
	if _, err := m.db.Exec(sqlText); err != nil {
		return fmt.Errorf("error while executing sql: %w", err)
	}
	return nil
}

// ExecSQL executes arbitrary SQL against the database. Intended for
// embedding layers; waits on readiness first.
func (m *Model) ExecSQL(sqlText string) error {
	if err := m.Ready(); err != nil {
		return err
	}
	return m.execSQL(sqlText)
}

// SQLFromFile reads SQL from the file at path, with line comments stripped.
func (m *Model) SQLFromFile(path string) (string, error) {
	return sqltext.FromFile(path)
}

// PrepareStmt prepares an ad hoc statement outside the configured query set.
// The caller owns it; Close does not finalize it.
func (m *Model) PrepareStmt(sqlText string) (*Statement, error) {
	if err := m.Ready(); err != nil {
		return nil, err
	}
	stmt, err := m.db.Prepare(sqlText)
	if err != nil {
		return nil, fmt.Errorf("error preparing query (%s): %w", sqlText, err)
	}
	return &Statement{name: "(ad hoc)", sql: sqlText, stmt: stmt}, nil
}

// Close finalizes every prepared statement and then closes the database
// handle. A finalization error propagates before the close is attempted.
// Close is idempotent.
func (m *Model) Close() error {
	<-m.ready

	m.closeOnce.Do(func() {
		for name, st := range m.stmts {
			if err := st.Finalize(); err != nil {
				m.closeErr = fmt.Errorf("error finalizing statement %s: %w", name, err)
				return
			}
		}
		if m.db != nil {
			m.closeErr = m.db.Close()
		}
	})
	return m.closeErr
}
