package mockpgx

import (
	"context"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"
)

type Querier struct {
	mock.Mock
}

func (m *Querier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	callArgs := []any{ctx, sql}
	callArgs = append(callArgs, args...)
	return pgconn.CommandTag{}, m.Called(callArgs...).Error(0)
}

func (m *Querier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	callArgs := []any{ctx, sql}
	callArgs = append(callArgs, args...)
	mockArgs := m.Called(callArgs...)
	if v := mockArgs.Get(0); v != nil {
		return v.(pgx.Rows), mockArgs.Error(1)
	}
	return nil, mockArgs.Error(1)
}

// Rows serves fixed values. Each value is assigned to the matching Scan
// destination, which must point to the value's type.
type Rows struct {
	Data    [][]any
	IterErr error
	Closed  bool
	pos     int
}

var _ pgx.Rows = &Rows{}

func (r *Rows) Close() { r.Closed = true }

func (r *Rows) Err() error { return r.IterErr }

func (r *Rows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }

func (r *Rows) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (r *Rows) Next() bool {
	if r.pos >= len(r.Data) {
		return false
	}
	r.pos++
	return true
}

func (r *Rows) Scan(dest ...any) error {
	row := r.Data[r.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(row))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		if row[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		val := reflect.ValueOf(row[i])
		if !val.Type().AssignableTo(target.Type()) {
			return fmt.Errorf("scan column %d: cannot assign %s to %s", i, val.Type(), target.Type())
		}
		target.Set(val)
	}
	return nil
}

func (r *Rows) Values() ([]any, error) { return r.Data[r.pos-1], nil }

func (r *Rows) RawValues() [][]byte { return nil }

func (r *Rows) Conn() *pgx.Conn { return nil }
