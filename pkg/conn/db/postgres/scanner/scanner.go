// Package scanner scans pgx rows into Go values.
package scanner

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
)

type Queryer interface {
	Query(context.Context, string, ...any) (pgx.Rows, error)
}

// Scanner converts rows into []T.
//
// When T is a struct, each column is mapped to a field
//
//  1. tagged with `sql:"column_name"`,
//  2. or, named as the column,
//  3. or, named in CamelCase of the column ("file_path" to "FilePath").
//
// Other T (primitives, time.Time, []byte) take a single column.
//
// For example,
//
//	type row struct {
//		Id     string
//		Status string `sql:"status"`
//	}
//
//	rows, err := scanner.New[row]().QueryAll(ctx, conn, `select "id", "status"::text as "status" from "dataset"`)
type Scanner[T any] interface {
	ScanAll(pgx.Rows) ([]T, error)
	QueryAll(ctx context.Context, conn Queryer, sql string, args ...any) ([]T, error)
}

func New[T any]() Scanner[T] {
	t := reflect.TypeFor[T]()
	if t.AssignableTo(reflect.TypeFor[time.Time]()) || t.AssignableTo(reflect.TypeFor[[]byte]()) {
		return singleColumn[T]{}
	}
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return singleColumn[T]{}
	}

	s := structScanner[T]{byTag: map[string]int{}, byName: map[string]int{}}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		s.byName[f.Name] = i
		if tag, ok := f.Tag.Lookup("sql"); ok {
			s.byTag[tag] = i
		}
	}
	return s
}

func camel(s string) string {
	b := new(strings.Builder)
	for _, part := range strings.Split(s, "_") {
		if part == "" {
			b.WriteString("_")
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

type structScanner[T any] struct {
	byTag  map[string]int
	byName map[string]int
}

func (s structScanner[T]) field(col string) (int, bool) {
	if i, ok := s.byTag[col]; ok {
		return i, true
	}
	if i, ok := s.byName[col]; ok {
		return i, true
	}
	i, ok := s.byName[camel(col)]
	return i, ok
}

func (s structScanner[T]) ScanAll(rows pgx.Rows) ([]T, error) {
	cols := rows.FieldDescriptions()
	fields := make([]int, len(cols))
	for n, fd := range cols {
		i, ok := s.field(string(fd.Name))
		if !ok {
			return nil, fmt.Errorf(`field for column "%s" is not found in type "%T"`, fd.Name, *new(T))
		}
		fields[n] = i
	}

	ret := []T{}
	for rows.Next() {
		elem := new(T)
		v := reflect.ValueOf(elem).Elem()
		dest := make([]any, len(fields))
		for n, i := range fields {
			dest[n] = v.Field(i).Addr().Interface()
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		ret = append(ret, *elem)
	}
	return ret, rows.Err()
}

func (s structScanner[T]) QueryAll(ctx context.Context, conn Queryer, sql string, args ...any) ([]T, error) {
	return queryAll[T](ctx, s, conn, sql, args...)
}

type singleColumn[T any] struct{}

func (singleColumn[T]) ScanAll(rows pgx.Rows) ([]T, error) {
	cols := rows.FieldDescriptions()
	if len(cols) != 1 {
		return nil, fmt.Errorf("%d columns for %T, want 1", len(cols), *new(T))
	}

	ret := []T{}
	for rows.Next() {
		elem := new(T)
		if err := rows.Scan(elem); err != nil {
			return nil, fmt.Errorf(
				`column "%s" (%s) can not be scanned into %T: %w`,
				cols[0].Name, typeName(cols[0].DataTypeOID), *elem, err,
			)
		}
		ret = append(ret, *elem)
	}
	return ret, rows.Err()
}

func (s singleColumn[T]) QueryAll(ctx context.Context, conn Queryer, sql string, args ...any) ([]T, error) {
	return queryAll[T](ctx, s, conn, sql, args...)
}

func queryAll[T any](ctx context.Context, s Scanner[T], conn Queryer, sql string, args ...any) ([]T, error) {
	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.ScanAll(rows)
}

// typeName names types of columns the stores read.
func typeName(oid uint32) string {
	switch oid {
	case pgtype.BoolOID:
		return "bool"
	case pgtype.Int2OID:
		return "int2"
	case pgtype.Int4OID:
		return "int4"
	case pgtype.Int8OID:
		return "int8"
	case pgtype.Float4OID:
		return "float4"
	case pgtype.Float8OID:
		return "float8"
	case pgtype.NumericOID:
		return "numeric"
	case pgtype.TextOID:
		return "text"
	case pgtype.VarcharOID:
		return "varchar"
	case pgtype.JSONOID:
		return "json"
	case pgtype.JSONBOID:
		return "jsonb"
	case pgtype.TimestampOID:
		return "timestamp"
	case pgtype.TimestamptzOID:
		return "timestamptz"
	case pgtype.UUIDOID:
		return "uuid"
	}
	return fmt.Sprintf("oid(%d)", oid)
}
