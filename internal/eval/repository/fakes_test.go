package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"ojcore/internal/common/db"
	"ojcore/internal/eval/model"
)

// fakeDB records every statement it executes so tests can assert on the
// exact write set a repository produces.
type fakeDB struct {
	execs        []execCall
	queries      []execCall
	rowsByQuery  map[string]*fakeRows
	rowByQuery   map[string]*fakeRow
	execErr      map[string]error
	nextInsertID int64

	commits   int
	rollbacks int
}

type execCall struct {
	query string
	args  []interface{}
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		rowsByQuery:  make(map[string]*fakeRows),
		rowByQuery:   make(map[string]*fakeRow),
		execErr:      make(map[string]error),
		nextInsertID: 100,
	}
}

// normalize collapses whitespace so statements can be matched by a fragment.
func normalize(query string) string {
	return strings.Join(strings.Fields(query), " ")
}

func (f *fakeDB) Query(ctx context.Context, query string, args ...interface{}) (db.Rows, error) {
	q := normalize(query)
	f.queries = append(f.queries, execCall{query: q, args: args})
	for fragment, rows := range f.rowsByQuery {
		if strings.Contains(q, fragment) {
			return rows, nil
		}
	}
	return &fakeRows{}, nil
}

func (f *fakeDB) QueryRow(ctx context.Context, query string, args ...interface{}) db.Row {
	q := normalize(query)
	f.queries = append(f.queries, execCall{query: q, args: args})
	for fragment, row := range f.rowByQuery {
		if strings.Contains(q, fragment) {
			return row
		}
	}
	return &fakeRow{err: sql.ErrNoRows}
}

func (f *fakeDB) Exec(ctx context.Context, query string, args ...interface{}) (db.Result, error) {
	q := normalize(query)
	for fragment, err := range f.execErr {
		if strings.Contains(q, fragment) {
			return nil, err
		}
	}
	f.execs = append(f.execs, execCall{query: q, args: args})
	f.nextInsertID++
	return &fakeDBResult{lastID: f.nextInsertID}, nil
}

func (f *fakeDB) Transaction(ctx context.Context, fn func(tx db.Transaction) error) error {
	if err := fn(&fakeTx{db: f}); err != nil {
		f.rollbacks++
		return err
	}
	f.commits++
	return nil
}

func (f *fakeDB) BeginTx(ctx context.Context, opts *db.TxOptions) (db.Transaction, error) {
	return &fakeTx{db: f}, nil
}

func (f *fakeDB) Ping(ctx context.Context) error { return nil }
func (f *fakeDB) Close() error                   { return nil }
func (f *fakeDB) Stats() db.Stats                { return db.Stats{} }

// execsMatching returns recorded statements containing the fragment.
func (f *fakeDB) execsMatching(fragment string) []execCall {
	var out []execCall
	for _, call := range f.execs {
		if strings.Contains(call.query, normalize(fragment)) {
			out = append(out, call)
		}
	}
	return out
}

type fakeTx struct {
	db *fakeDB
}

func (t *fakeTx) Query(ctx context.Context, query string, args ...interface{}) (db.Rows, error) {
	return t.db.Query(ctx, query, args...)
}

func (t *fakeTx) QueryRow(ctx context.Context, query string, args ...interface{}) db.Row {
	return t.db.QueryRow(ctx, query, args...)
}

func (t *fakeTx) Exec(ctx context.Context, query string, args ...interface{}) (db.Result, error) {
	return t.db.Exec(ctx, query, args...)
}

func (t *fakeTx) Commit() error   { return nil }
func (t *fakeTx) Rollback() error { return nil }

type fakeDBResult struct {
	lastID int64
}

func (r *fakeDBResult) LastInsertId() (int64, error) { return r.lastID, nil }
func (r *fakeDBResult) RowsAffected() (int64, error) { return 1, nil }

type fakeRows struct {
	data [][]interface{}
	idx  int
}

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...interface{}) error {
	row := r.data[r.idx-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: want %d values, got %d", len(row), len(dest))
	}
	for i, v := range row {
		if err := assign(dest[i], v); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeRows) Close() error { return nil }
func (r *fakeRows) Err() error   { return nil }

type fakeRow struct {
	data []interface{}
	err  error
}

func (r *fakeRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.data) {
		return fmt.Errorf("scan: want %d values, got %d", len(r.data), len(dest))
	}
	for i, v := range r.data {
		if err := assign(dest[i], v); err != nil {
			return err
		}
	}
	return nil
}

func assign(dest, v interface{}) error {
	switch d := dest.(type) {
	case *int64:
		*d = v.(int64)
	case *int:
		*d = v.(int)
	case *float64:
		*d = v.(float64)
	case *string:
		*d = v.(string)
	case *model.SubmissionStatus:
		*d = model.SubmissionStatus(v.(string))
	default:
		return fmt.Errorf("scan: unsupported destination %T", dest)
	}
	return nil
}
