package stops2sqlite

import (
	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"unicode"
)

type LoadOpts struct {
	// InitSchema runs InitSchema on its own connection before loading.
	InitSchema bool
	// Pragmas are applied to the load connection after the defaults.
	Pragmas map[string]string
}

type LoadStats struct {
	Records      int
	LinesCreated int
	LinesReused  int
	Links        int
}

var loadPragmas = map[string]string{
	"foreign_keys": "ON",
}

// Keep in sync with the oneof rule on Config.Pragmas.
var allowedPragmas = map[string]bool{
	"synchronous":  true,
	"journal_mode": true,
	"cache_size":   true,
	"temp_store":   true,
	"foreign_keys": true,
}

// Load inserts every stop record in the JSON document at inputPath into the
// database at dbPath. The whole run is one transaction: on any error nothing
// from this run is kept.
//
// A line name is looked up only among the lines rows created by this run, so
// loading the same file twice duplicates stops, lines and links.
func Load(dbPath string, inputPath string, opts *LoadOpts) (*LoadStats, error) {
	if dbPath == "" {
		panic("Missing dbPath")
	}
	if inputPath == "" {
		panic("Missing inputPath")
	}

	if opts == nil {
		opts = &LoadOpts{}
	}
	if err := checkPragmas(opts.Pragmas); err != nil {
		return nil, err
	}

	if opts.InitSchema {
		if err := InitSchema(dbPath); err != nil {
			return nil, err
		}
	}

	slog.Info(fmt.Sprintf("Loading %s into %s", inputPath, dbPath))

	input, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, err
	}
	records, err := parseStopRecords(input)
	if err != nil {
		return nil, err
	}
	slog.Info(fmt.Sprintf("Parsed %d stop records", len(records)))

	db, err := sqlite.OpenConn(dbPath, 0)
	if err != nil {
		return nil, err
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	if err := applyPragmas(db, loadPragmas); err != nil {
		return nil, err
	}
	if err := applyPragmas(db, opts.Pragmas); err != nil {
		return nil, err
	}

	stats, err := loadRecords(db, records)
	if err != nil {
		return nil, err
	}

	err = db.Close()
	db = nil
	if err != nil {
		return nil, err
	}

	slog.Info(fmt.Sprintf("Wrote %d stops, %d new lines (%d reused) and %d links to %s",
		stats.Records, stats.LinesCreated, stats.LinesReused, stats.Links, dbPath))
	return stats, nil
}

// checkPragmas rejects names outside allowedPragmas and values that are not a
// single word or integer, since both are pasted into the PRAGMA statement.
func checkPragmas(pragmas map[string]string) error {
	for name, value := range pragmas {
		if !allowedPragmas[name] {
			return fmt.Errorf("%w: pragma %s is not allowed", ErrInvalidInput, name)
		}
		bad := strings.IndexFunc(value, func(r rune) bool {
			return !(r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-'))
		})
		if value == "" || bad >= 0 {
			return fmt.Errorf("%w: pragma %s = %q", ErrInvalidInput, name, value)
		}
	}
	return nil
}

func applyPragmas(db *sqlite.Conn, pragmas map[string]string) error {
	names := make([]string, 0, len(pragmas))
	for name := range pragmas {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		err := sqlitex.ExecTransient(db, "PRAGMA "+name+" = "+pragmas[name], sqlitexNoop)
		if err != nil {
			return fmt.Errorf("pragma %s: %w", name, err)
		}
	}
	return nil
}

func loadRecords(db *sqlite.Conn, records []stopRecord) (stats *LoadStats, err error) {
	defer sqlitex.Save(db)(&err)

	// AUTOINCREMENT ids are never reused, so rows above the floor belong to this run.
	var lineFloor int64
	err = sqlitex.Exec(db, "SELECT coalesce(max(id), 0) AS max_id FROM lines", func(stmt *sqlite.Stmt) error {
		lineFloor = stmt.GetInt64("max_id")
		return nil
	})
	if err != nil {
		return nil, err
	}

	stats = &LoadStats{}
	for i, record := range records {
		if err := loadRecord(db, record, lineFloor, stats); err != nil {
			return nil, fmt.Errorf("record %d (stop %d): %w", i, record.Number, err)
		}
		stats.Records++
	}
	return stats, nil
}

func loadRecord(db *sqlite.Conn, record stopRecord, lineFloor int64, stats *LoadStats) error {
	err := sqlitex.Exec(db, "INSERT INTO stops (stop_number, stop_id, name, lat, lon) VALUES (?, ?, ?, ?, ?)",
		sqlitexNoop, record.Number, record.StopID, record.Name, nullableFloat(record.Lat), nullableFloat(record.Lon))
	if err != nil {
		return err
	}
	stopRowID := db.LastInsertRowID()

	for _, name := range record.lineNames() {
		lineRowID, created, err := findOrCreateLine(db, name, lineFloor)
		if err != nil {
			return err
		}
		if created {
			stats.LinesCreated++
		} else {
			stats.LinesReused++
		}

		err = sqlitex.Exec(db, "INSERT INTO line_stops (line_id, stop_id) VALUES (?, ?)", sqlitexNoop, lineRowID, stopRowID)
		if err != nil {
			return fmt.Errorf("link line %q: %w", name, err)
		}
		stats.Links++
	}
	return nil
}

// findOrCreateLine returns the id of the lines row named name with an id above
// floor, inserting one if none exists.
func findOrCreateLine(db *sqlite.Conn, name string, floor int64) (id int64, created bool, err error) {
	found := false
	err = sqlitex.Exec(db, "SELECT id FROM lines WHERE name = ? AND id > ? ORDER BY id LIMIT 1", func(stmt *sqlite.Stmt) error {
		id = stmt.GetInt64("id")
		found = true
		return nil
	}, name, floor)
	if err != nil {
		return 0, false, err
	}
	if found {
		return id, false, nil
	}

	err = sqlitex.Exec(db, "INSERT INTO lines (name) VALUES (?)", sqlitexNoop, name)
	if err != nil {
		return 0, false, err
	}
	return db.LastInsertRowID(), true, nil
}
