package modelbase

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	// ErrFinalized is returned when a statement is used after Finalize.
	ErrFinalized = errors.New("statement finalized")
)

// Row is one result row, keyed by column name.
type Row map[string]any

// Result carries the execution metadata of a non-query statement.
type Result struct {
	LastInsertID int64
	RowsAffected int64
}

// Statement wraps one prepared query with a uniform execution surface.
// Every execution method accepts trailing bind parameters; when none are
// given, the parameters stored by the last Bind call apply. Execution errors
// carry the native SQLite error untranslated.
type Statement struct {
	name string
	sql  string
	stmt *sql.Stmt

	mu        sync.Mutex
	bound     []any
	finalized bool
}

// Name returns the logical name the statement was registered under.
func (s *Statement) Name() string { return s.name }

// SQL returns the statement's query text.
func (s *Statement) SQL() string { return s.sql }

// Bind stores parameters for subsequent executions, replacing any previous
// bindings.
func (s *Statement) Bind(args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return fmt.Errorf("bind %s: %w", s.name, ErrFinalized)
	}
	s.bound = append([]any(nil), args...)
	return nil
}

// Reset clears any in-progress cursor state. Stored bindings are preserved.
// It never fails; executions fully drain their cursors, so there is nothing
// to unwind here.
func (s *Statement) Reset() {}

// Finalize releases the prepared statement. Finalize is idempotent; every
// other method fails once the statement is finalized.
func (s *Statement) Finalize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return nil
	}
	s.finalized = true
	s.bound = nil
	if err := s.stmt.Close(); err != nil {
		return fmt.Errorf("finalize %s: %w", s.name, err)
	}
	return nil
}

// argsFor returns the effective parameters for an execution: the explicit
// args when given, the stored bindings otherwise.
func (s *Statement) argsFor(args []any) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return nil, fmt.Errorf("statement %s: %w", s.name, ErrFinalized)
	}
	if len(args) > 0 {
		return args, nil
	}
	return s.bound, nil
}

// Run executes the statement without reading rows and returns its execution
// metadata.
func (s *Statement) Run(args ...any) (Result, error) {
	eff, err := s.argsFor(args)
	if err != nil {
		return Result{}, err
	}
	res, err := s.stmt.Exec(eff...)
	if err != nil {
		return Result{}, fmt.Errorf("error while executing query %s: %w", s.name, err)
	}
	var out Result
	// Not every statement yields these; ignore driver refusals.
	if id, err := res.LastInsertId(); err == nil {
		out.LastInsertID = id
	}
	if n, err := res.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	return out, nil
}

// errStop aborts an Each iteration early without reporting a failure.
var errStop = errors.New("stop iteration")

// Get executes the statement and returns the first result row, or nil when
// the result set is empty.
func (s *Statement) Get(args ...any) (Row, error) {
	var first Row
	_, err := s.Each(func(row Row) error {
		first = row
		return errStop
	}, args...)
	if err != nil && !errors.Is(err, errStop) {
		return nil, err
	}
	return first, nil
}

// All executes the statement and returns every result row in order. The
// slice is empty (non-nil) when there are no rows.
func (s *Statement) All(args ...any) ([]Row, error) {
	rows := []Row{}
	if _, err := s.Each(func(row Row) error {
		rows = append(rows, row)
		return nil
	}, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

// Each executes the statement and invokes fn once per result row, in result
// order. fn is never invoked for an empty result set. Each returns the
// number of rows seen; an error from fn stops the iteration and is returned.
func (s *Statement) Each(fn func(Row) error, args ...any) (int, error) {
	eff, err := s.argsFor(args)
	if err != nil {
		return 0, err
	}

	rows, err := s.stmt.Query(eff...)
	if err != nil {
		return 0, fmt.Errorf("error while executing query %s: %w", s.name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, fmt.Errorf("error while executing query %s: %w", s.name, err)
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return 0, fmt.Errorf("error while executing query %s: %w", s.name, err)
	}

	count := 0
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return count, fmt.Errorf("error while executing query %s: %w", s.name, err)
		}

		row := make(Row, len(cols))
		for i, col := range cols {
			row[col] = normalize(values[i], types[i].DatabaseTypeName())
		}

		if err := fn(row); err != nil {
			return count, err
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return count, fmt.Errorf("error while executing query %s: %w", s.name, err)
	}
	return count, nil
}

// normalize makes row values driver-independent. SQLite drivers hand text
// back as []byte when scanning into any; only values from BLOB columns stay
// as bytes, everything else becomes a string. Byte slices are copied because
// drivers may reuse their buffers between rows.
func normalize(v any, declType string) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	if strings.Contains(strings.ToUpper(declType), "BLOB") {
		return append([]byte(nil), b...)
	}
	return string(b)
}
