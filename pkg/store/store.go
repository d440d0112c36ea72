package store

import (
	"context"
	"database/sql/driver"
	"fmt"
	"reflect"
	"strings"

	"github.com/jmoiron/sqlx"
)

// DTO is a row written through a Datastorer. Only fields with a `db` tag are
// written.
type DTO interface {
	// PrimaryKey names the column Update matches on.
	PrimaryKey() string
}

// Versioned rows are updated with optimistic concurrency: the update only
// applies when the stored version still equals the row's version, and bumps it.
type Versioned interface {
	VersionColumn() string
}

// This type of hook separates from the regular PostSave hook since it has side effects
type AfterSaveCommitHook func()

// Hooks for database operations
type Hooks struct {
	PreSave         []func(ctx context.Context, tx *sqlx.Tx, data DTO, isNew bool) error
	PostSave        []func(ctx context.Context, tx *sqlx.Tx, data DTO, isNew bool) error
	AfterSaveCommit []func(ctx context.Context, data DTO, isNew bool) AfterSaveCommitHook
}

type Datastorer[T any] interface {
	Create(ctx context.Context, data DTO) error
	// Update writes every tagged column except the primary key and returns
	// fault.ErrNotFound, or fault.ErrConflict for a stale Versioned row.
	Update(ctx context.Context, data DTO) error
	Get(ctx context.Context, query string, args ...any) (*T, error)
	Select(ctx context.Context, query string, args ...any) ([]T, error)
	Exec(ctx context.Context, query string, args ...any) (int64, error)

	// Set hooks.
	SetHooks(hooks Hooks)
}

var valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()

func structType(v any) reflect.Type {
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// placeholder returns the named placeholder for a field. Plain slices are
// cast to a postgres array type; types that know how to encode themselves
// (pq arrays, json values) are bound as is.
func placeholder(field reflect.StructField, column string) string {
	if field.Type.Kind() != reflect.Slice || field.Type.Implements(valuerType) {
		return ":" + column
	}

	var pgArrayType string
	switch field.Type.Elem().Kind() {
	case reflect.String:
		pgArrayType = "text[]"
	case reflect.Int, reflect.Int32:
		pgArrayType = "integer[]"
	case reflect.Int64:
		pgArrayType = "bigint[]"
	case reflect.Float32, reflect.Float64:
		pgArrayType = "float[]"
	case reflect.Bool:
		pgArrayType = "boolean[]"
	default:
		pgArrayType = "text[]"
	}

	return fmt.Sprintf("CAST(:%s AS %s)", column, pgArrayType)
}

// Columns lists the db columns of a struct, for SELECT lists.
func Columns(instance any) []string {
	typ := structType(instance)

	var fields []string
	for i := 0; i < typ.NumField(); i++ {
		dbTag := typ.Field(i).Tag.Get("db")
		if dbTag != "" && dbTag != "-" {
			fields = append(fields, dbTag)
		}
	}

	return fields
}

// getStructFieldsFromDTO extracts column names and named placeholders for an INSERT.
func getStructFieldsFromDTO(dto DTO) (columns string, placeholders string) {
	t := structType(dto)

	var columnNames []string
	var placeholderNames []string

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		dbTag := field.Tag.Get("db")
		if dbTag == "" || dbTag == "-" {
			continue
		}

		columnNames = append(columnNames, dbTag)
		placeholderNames = append(placeholderNames, placeholder(field, dbTag))
	}

	return strings.Join(columnNames, ", "), strings.Join(placeholderNames, ", ")
}

// InsertQuery returns a named INSERT statement writing every tagged column of data.
func InsertQuery(tablename string, data DTO) string {
	columns, placeholders := getStructFieldsFromDTO(data)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", tablename, columns, placeholders)
}

// getUpdateClauseFromDTO builds the SET and WHERE clauses of an UPDATE.
func getUpdateClauseFromDTO(dto DTO) (set string, where string) {
	t := structType(dto)
	key := dto.PrimaryKey()

	version := ""
	if v, ok := dto.(Versioned); ok {
		version = v.VersionColumn()
	}

	var fields []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		column := field.Tag.Get("db")
		if column == "" || column == "-" || column == key || column == version {
			continue
		}
		fields = append(fields, fmt.Sprintf("%s = %s", column, placeholder(field, column)))
	}

	where = fmt.Sprintf("%s = :%s", key, key)
	if version != "" {
		fields = append(fields, fmt.Sprintf("%s = %s + 1", version, version))
		where += fmt.Sprintf(" AND %s = :%s", version, version)
	}

	return strings.Join(fields, ", "), where
}
