package repo

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type call struct {
	query string
	args  []any
}

// stubExecutor replays canned rows. Each QueryRow pops the next entry of rows.
type stubExecutor struct {
	rows    []simpleRow
	tag     pgconn.CommandTag
	execErr error
	list    *testRows
	calls   []call
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.calls = append(s.calls, call{query, args})
	return s.tag, s.execErr
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.calls = append(s.calls, call{query, args})
	if len(s.rows) == 0 {
		return simpleRow{}
	}
	row := s.rows[0]
	s.rows = s.rows[1:]
	return row
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	s.calls = append(s.calls, call{query, args})
	if s.list == nil {
		return nil, errors.New("no rows configured")
	}
	return s.list, nil
}

type simpleRow struct {
	values []any
	err    error
}

func rowOf(values ...any) simpleRow { return simpleRow{values: values} }

// Scan copies values into dest pointers; a nil value leaves pointer-typed
// destinations nil.
func (r simpleRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if r.values == nil {
		return pgx.ErrNoRows
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: %d dest for %d values", len(dest), len(r.values))
	}
	for i, v := range r.values {
		if v == nil {
			continue
		}
		target := reflect.ValueOf(dest[i]).Elem()
		val := reflect.ValueOf(v)
		if target.Kind() == reflect.Pointer && val.Kind() != reflect.Pointer {
			p := reflect.New(val.Type())
			p.Elem().Set(val)
			val = p
		}
		target.Set(val)
	}
	return nil
}

type testRows struct {
	rows []simpleRow
	idx  int
	err  error
}

func (r *testRows) Close()                                       {}
func (r *testRows) Err() error                                   { return r.err }
func (r *testRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *testRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *testRows) Conn() *pgx.Conn                              { return nil }
func (r *testRows) RawValues() [][]byte                          { return nil }

func (r *testRows) Values() ([]any, error) {
	return nil, fmt.Errorf("values not supported in test rows")
}

func (r *testRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *testRows) Scan(dest ...any) error {
	return r.rows[r.idx-1].Scan(dest...)
}
