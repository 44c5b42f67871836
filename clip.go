package stops2sqlite

import (
	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"fmt"
	"github.com/tidwall/geojson"
	"github.com/tidwall/geojson/geometry"
	"log/slog"
)

type ClipStats struct {
	StopsKept    int
	StopsRemoved int
	LinesRemoved int
}

// Clip writes a copy of the database at inputPath to outputPath keeping only
// the stops inside clipFeature, a GeoJSON object. Stops without coordinates
// are removed, as are lines left with no stops.
func Clip(inputPath string, outputPath string, clipFeature string) (*ClipStats, error) {
	if inputPath == "" {
		panic("Missing inputPath")
	}
	if outputPath == "" {
		panic("Missing outputPath")
	}

	feature, err := geojson.Parse(clipFeature, &geojson.ParseOptions{RequireValid: true})
	if err != nil {
		return nil, fmt.Errorf("parse clip feature: %w", err)
	}

	slog.Info(fmt.Sprintf("Writing a clipped copy of %s to %s (clipFeature has %d points)",
		inputPath, outputPath, feature.NumPoints()))

	inputDB, err := sqlite.OpenConn(inputPath, sqlite.SQLITE_OPEN_READONLY)
	if err != nil {
		return nil, err
	}
	defer func() {
		if inputDB != nil {
			_ = inputDB.Close()
		}
	}()

	db, err := inputDB.BackupToDB("", outputPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	err = inputDB.Close()
	inputDB = nil
	if err != nil {
		return nil, err
	}
	slog.Info("Copied input db")

	stats, err := clipStops(db, feature)
	if err != nil {
		return nil, err
	}
	slog.Info(fmt.Sprintf("%d of %d stops are inside, removed %d lines",
		stats.StopsKept, stats.StopsKept+stats.StopsRemoved, stats.LinesRemoved))

	if _, err = validateReferences(db, slog.LevelError); err != nil {
		return nil, err
	}

	err = db.Close()
	db = nil
	if err != nil {
		return nil, err
	}

	slog.Info(fmt.Sprintf("Wrote %s", outputPath))
	return stats, nil
}

func clipStops(db *sqlite.Conn, feature geojson.Object) (stats *ClipStats, err error) {
	defer sqlitex.Save(db)(&err)

	if err := sqlitex.ExecTransient(db, "CREATE TEMP TABLE stops_inside (id INTEGER PRIMARY KEY)", sqlitexNoop); err != nil {
		return nil, err
	}

	stats = &ClipStats{}
	query := "SELECT id, lat, lon FROM stops WHERE lat IS NOT NULL AND lon IS NOT NULL"
	err = sqlitex.Exec(db, query, func(stmt *sqlite.Stmt) error {
		point := geojson.NewPoint(geometry.Point{X: stmt.GetFloat("lon"), Y: stmt.GetFloat("lat")})
		if !feature.Contains(point) {
			return nil
		}
		stats.StopsKept++
		return sqlitex.Exec(db, "INSERT INTO stops_inside (id) VALUES (?)", sqlitexNoop, stmt.GetInt64("id"))
	})
	if err != nil {
		return nil, err
	}

	err = sqlitex.Exec(db, "SELECT count(*) AS count FROM stops WHERE lat IS NULL OR lon IS NULL", func(stmt *sqlite.Stmt) error {
		if n := stmt.GetInt64("count"); n > 0 {
			slog.Warn(fmt.Sprintf("Removing %d stops without coordinates", n))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = sqlitex.Exec(db, "DELETE FROM line_stops WHERE stop_id NOT IN (SELECT id FROM stops_inside)", sqlitexNoop)
	if err != nil {
		return nil, err
	}
	err = sqlitex.Exec(db, "DELETE FROM stops WHERE id NOT IN (SELECT id FROM stops_inside)", sqlitexNoop)
	if err != nil {
		return nil, err
	}
	stats.StopsRemoved = db.Changes()

	err = sqlitex.Exec(db, "DELETE FROM lines WHERE id NOT IN (SELECT DISTINCT line_id FROM line_stops WHERE line_id IS NOT NULL)", sqlitexNoop)
	if err != nil {
		return nil, err
	}
	stats.LinesRemoved = db.Changes()

	if err := sqlitex.ExecTransient(db, "DROP TABLE stops_inside", sqlitexNoop); err != nil {
		return nil, err
	}
	return stats, nil
}
