package stops2sqlite

import (
	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"fmt"
	"log/slog"
	"strings"
)

type tableSchema struct {
	Name       string
	Columns    []columnSchema
	PrimaryKey []string
}

type columnSchema struct {
	Name          string
	Type          string
	NotNull       bool
	AutoIncrement bool
	ForeignID     *foreignIDSchema
}

type foreignIDSchema struct {
	Table  string
	Column string
}

// dbSchema is in creation order: line_stops references the other two.
var dbSchema = []tableSchema{
	{
		Name: "lines",
		Columns: []columnSchema{
			{Name: "id", Type: "INTEGER", AutoIncrement: true},
			{Name: "name", Type: "TEXT", NotNull: true},
		},
	},
	{
		Name: "stops",
		Columns: []columnSchema{
			{Name: "id", Type: "INTEGER", AutoIncrement: true},
			{Name: "stop_number", Type: "INTEGER", NotNull: true},
			{Name: "stop_id", Type: "INTEGER", NotNull: true},
			{Name: "name", Type: "TEXT", NotNull: true},
			{Name: "lat", Type: "REAL"},
			{Name: "lon", Type: "REAL"},
		},
	},
	{
		Name: "line_stops",
		Columns: []columnSchema{
			{Name: "line_id", Type: "INTEGER", ForeignID: &foreignIDSchema{Table: "lines", Column: "id"}},
			{Name: "stop_id", Type: "INTEGER", ForeignID: &foreignIDSchema{Table: "stops", Column: "id"}},
		},
		PrimaryKey: []string{"line_id", "stop_id"},
	},
}

var sqlitexNoop = func(stmt *sqlite.Stmt) error { return nil }

// InitSchema creates the lines, stops and line_stops tables in the database at
// dbPath if they don't already exist. Existing tables and rows are left alone.
func InitSchema(dbPath string) error {
	if dbPath == "" {
		panic("Missing dbPath")
	}

	slog.Info(fmt.Sprintf("Initializing schema in %s", dbPath))

	db, err := sqlite.OpenConn(dbPath, 0)
	if err != nil {
		return err
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	if err := createTables(db); err != nil {
		return err
	}

	err = db.Close()
	db = nil
	return err
}

func createTables(db *sqlite.Conn) (err error) {
	defer sqlitex.Save(db)(&err)
	for _, schema := range dbSchema {
		if err := sqlitex.ExecTransient(db, createTableQuery(schema), sqlitexNoop); err != nil {
			return fmt.Errorf("create table %s: %w", schema.Name, err)
		}
	}
	return nil
}

func createTableQuery(schema tableSchema) string {
	var fragments []string
	for _, column := range schema.Columns {
		fragment := column.Name + " " + column.Type
		if column.AutoIncrement {
			fragment += " PRIMARY KEY AUTOINCREMENT"
		}
		if column.NotNull {
			fragment += " NOT NULL"
		}
		fragments = append(fragments, fragment)
	}
	if len(schema.PrimaryKey) > 0 {
		fragments = append(fragments, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(schema.PrimaryKey, ", ")))
	}
	for _, column := range schema.Columns {
		if column.ForeignID != nil {
			fragments = append(fragments, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s(%s)",
				column.Name, column.ForeignID.Table, column.ForeignID.Column))
		}
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", schema.Name, strings.Join(fragments, ", "))
}
