package store

import (
	"database/sql"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/richard-senior/poolleague/internal/logger"
)

// Persistable is implemented by every record type the store keeps
type Persistable interface {
	TableName() string
	PrimaryKey() map[string]any
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// column describes one persisted struct field
type column struct {
	index   int
	name    string
	dbType  string
	primary bool
	indexed bool
}

// columnsOf reads the persisted columns of a record from its struct tags.
// Fields without a dbtype tag, or tagged db:"-", are not persisted.
func columnsOf(obj any) []column {
	t := reflect.TypeOf(obj)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	var cols []column
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Tag.Get("db") == "-" {
			continue
		}
		dbType := f.Tag.Get("dbtype")
		if dbType == "" {
			continue
		}
		name := f.Tag.Get("column")
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		cols = append(cols, column{
			index:   i,
			name:    name,
			dbType:  dbType,
			primary: f.Tag.Get("primary") == "true",
			indexed: f.Tag.Get("index") == "true",
		})
	}
	return cols
}

// createTableSQL generates CREATE TABLE from struct tags, with a compound
// primary key when more than one field is marked primary
func createTableSQL(obj Persistable) string {
	var defs, keys []string
	for _, c := range columnsOf(obj) {
		defs = append(defs, fmt.Sprintf("%s %s", c.name, c.dbType))
		if c.primary {
			keys = append(keys, c.name)
		}
	}
	if len(keys) > 0 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(keys, ", ")))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", obj.TableName(), strings.Join(defs, ", "))
}

func indexSQL(obj Persistable) []string {
	table := obj.TableName()
	var out []string
	for _, c := range columnsOf(obj) {
		if !c.indexed {
			continue
		}
		out = append(out, fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s)", table, c.name, table, c.name))
	}
	return out
}

// createTable creates the table and indexes for a record type
func createTable(q querier, obj Persistable) error {
	query := createTableSQL(obj)
	logger.Debug("Creating table with SQL", query)
	if _, err := q.Exec(query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", obj.TableName(), err)
	}
	for _, query := range indexSQL(obj) {
		if _, err := q.Exec(query); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", obj.TableName(), err)
		}
	}
	return nil
}

// save upserts a record by its primary key
func save(q querier, obj Persistable) error {
	v := reflect.Indirect(reflect.ValueOf(obj))
	var names, placeholders, updates []string
	var values []any
	for _, c := range columnsOf(obj) {
		names = append(names, c.name)
		placeholders = append(placeholders, "?")
		values = append(values, v.Field(c.index).Interface())
		if !c.primary {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", c.name, c.name))
		}
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		obj.TableName(), strings.Join(names, ", "), strings.Join(placeholders, ", "))
	if keys := primaryColumns(obj); len(keys) > 0 && len(updates) > 0 {
		query += fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(keys, ", "), strings.Join(updates, ", "))
	} else if len(keys) > 0 {
		query += " ON CONFLICT DO NOTHING"
	}
	if _, err := q.Exec(query, values...); err != nil {
		return fmt.Errorf("failed to save into %s: %w", obj.TableName(), err)
	}
	return nil
}

func primaryColumns(obj Persistable) []string {
	var keys []string
	for _, c := range columnsOf(obj) {
		if c.primary {
			keys = append(keys, c.name)
		}
	}
	return keys
}

// deleteWhere removes every row of the record's table matching the clause
func deleteWhere(q querier, obj Persistable, where string, args ...any) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", obj.TableName(), where)
	if _, err := q.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", obj.TableName(), err)
	}
	return nil
}

// findWhere loads every row matching the clause into new values of T.
// An empty clause selects the whole table.
func findWhere[T any, P interface {
	*T
	Persistable
}](q querier, where string, args ...any) ([]T, error) {
	var zero T
	obj := P(&zero)
	cols := columnsOf(obj)
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(names, ", "), obj.TableName())
	if where != "" {
		query += " WHERE " + where
	}
	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", obj.TableName(), err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var rec T
		v := reflect.ValueOf(&rec).Elem()
		dest := make([]any, len(cols))
		for i, c := range cols {
			dest[i] = v.Field(c.index).Addr().Interface()
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row from %s: %w", obj.TableName(), err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows from %s: %w", obj.TableName(), err)
	}
	return out, nil
}

// findByPrimaryKey loads a single record into obj
func findByPrimaryKey(q querier, obj Persistable) error {
	cols := columnsOf(obj)
	v := reflect.Indirect(reflect.ValueOf(obj))
	names := make([]string, len(cols))
	dest := make([]any, len(cols))
	for i, c := range cols {
		names[i] = c.name
		dest[i] = v.Field(c.index).Addr().Interface()
	}
	where, values := buildWhereClause(obj.PrimaryKey())
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s", strings.Join(names, ", "), obj.TableName(), where)
	if err := q.QueryRow(query, values...).Scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("record not found in %s: %w", obj.TableName(), err)
		}
		return fmt.Errorf("failed to scan row from %s: %w", obj.TableName(), err)
	}
	return nil
}

// buildWhereClause builds a WHERE clause from a primary key map, columns sorted by name
func buildWhereClause(key map[string]any) (string, []any) {
	names := make([]string, 0, len(key))
	for name := range key {
		names = append(names, name)
	}
	sort.Strings(names)
	conditions := make([]string, len(names))
	values := make([]any, len(names))
	for i, name := range names {
		conditions[i] = name + " = ?"
		values[i] = key[name]
	}
	return strings.Join(conditions, " AND "), values
}
