package stops2sqlite

import (
	"context"
	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"fmt"
	"log/slog"
)

// Validate reports rows in the database at dbPath that break the schema's
// references, and line names held by more than one lines row. If there are
// any issues they are returned along with ErrInvalidInput.
func Validate(dbPath string) ([]string, error) {
	if dbPath == "" {
		panic("Missing dbPath")
	}

	db, err := sqlite.OpenConn(dbPath, sqlite.SQLITE_OPEN_READONLY)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	return validate(db, slog.LevelWarn)
}

func validate(db *sqlite.Conn, logLevel slog.Level) ([]string, error) {
	v := &validator{db: db, logLevel: logLevel}

	slog.Info("Validating")

	if err := v.validateReferences(); err != nil {
		return nil, err
	}
	if err := v.validateUniqueLineNames(); err != nil {
		return nil, err
	}
	return v.result()
}

// validateReferences checks only the foreign IDs. Duplicate line names are
// expected in databases loaded more than once.
func validateReferences(db *sqlite.Conn, logLevel slog.Level) ([]string, error) {
	v := &validator{db: db, logLevel: logLevel}
	if err := v.validateReferences(); err != nil {
		return nil, err
	}
	return v.result()
}

type validator struct {
	db       *sqlite.Conn
	logLevel slog.Level
	issues   []string
}

func (v *validator) append(msg string, args ...any) {
	issue := fmt.Sprintf(msg, args...)
	slog.Log(context.Background(), v.logLevel, issue)
	v.issues = append(v.issues, issue)
}

func (v *validator) result() ([]string, error) {
	if len(v.issues) > 0 {
		return v.issues, ErrInvalidInput
	}
	return nil, nil
}

func (v *validator) validateReferences() error {
	for _, schema := range dbSchema {
		for _, column := range schema.Columns {
			if column.ForeignID == nil {
				continue
			}
			if err := v.validateForeignID(schema.Name, column.Name, *column.ForeignID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v *validator) validateForeignID(table, column string, schema foreignIDSchema) error {
	query := fmt.Sprintf("SELECT rowid AS row_id, %s AS value FROM %s WHERE %s IS NOT NULL AND %s NOT IN (SELECT %s FROM %s) ORDER BY rowid",
		column, table, column, column, schema.Column, schema.Table)

	return sqlitex.Exec(v.db, query, func(stmt *sqlite.Stmt) error {
		v.append("%s.%s %d in row %d references no %s.%s",
			table, column, stmt.GetInt64("value"), stmt.GetInt64("row_id"), schema.Table, schema.Column)
		return nil
	})
}

func (v *validator) validateUniqueLineNames() error {
	query := "SELECT name, count(*) AS count FROM lines GROUP BY name HAVING count(*) > 1 ORDER BY min(id)"
	return sqlitex.Exec(v.db, query, func(stmt *sqlite.Stmt) error {
		v.append("line %q appears in %d lines rows", stmt.GetText("name"), stmt.GetInt64("count"))
		return nil
	})
}
