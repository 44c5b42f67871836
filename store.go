package stops2sqlite

import (
	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"errors"
	"fmt"
	"github.com/tidwall/geojson/geo"
	"sort"
	"strings"
)

var ErrNotFound = errors.New("not found")

type Line struct {
	ID   int64
	Name string
}

type Stop struct {
	ID         int64
	StopNumber int64
	StopID     int64
	Name       string
	Lat        *float64
	Lon        *float64
	// Lines are the names of the linked lines in link order.
	Lines []string
}

func (s Stop) HasLocation() bool {
	return s.Lat != nil && s.Lon != nil
}

// NearbyStop is a Stop with its distance from the search point.
type NearbyStop struct {
	Stop
	DistanceMeters float64
}

// Store reads a loaded database. It is not safe for concurrent use.
type Store struct {
	db *sqlite.Conn
}

func OpenStore(dbPath string) (*Store, error) {
	db, err := sqlite.OpenConn(dbPath, sqlite.SQLITE_OPEN_READONLY)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Lines() ([]Line, error) {
	var lines []Line
	err := sqlitex.Exec(s.db, "SELECT id, name FROM lines ORDER BY id", func(stmt *sqlite.Stmt) error {
		lines = append(lines, Line{ID: stmt.GetInt64("id"), Name: stmt.GetText("name")})
		return nil
	})
	return lines, err
}

// LineByName returns the lowest-id line called name.
func (s *Store) LineByName(name string) (Line, error) {
	var line Line
	found := false
	err := sqlitex.Exec(s.db, "SELECT id, name FROM lines WHERE name = ? ORDER BY id LIMIT 1", func(stmt *sqlite.Stmt) error {
		line = Line{ID: stmt.GetInt64("id"), Name: stmt.GetText("name")}
		found = true
		return nil
	}, name)
	if err != nil {
		return Line{}, err
	}
	if !found {
		return Line{}, fmt.Errorf("line %q: %w", name, ErrNotFound)
	}
	return line, nil
}

func (s *Store) Stops() ([]Stop, error) {
	return s.queryStops("", nil)
}

// StopByNumber returns the lowest-id stop whose stop_number is n.
func (s *Store) StopByNumber(n int64) (Stop, error) {
	stops, err := s.queryStops("WHERE stop_number = ?", []any{n})
	if err != nil {
		return Stop{}, err
	}
	if len(stops) == 0 {
		return Stop{}, fmt.Errorf("stop number %d: %w", n, ErrNotFound)
	}
	return stops[0], nil
}

// FindStopsByText returns the stops whose name contains text, ignoring ASCII
// case.
func (s *Store) FindStopsByText(text string) ([]Stop, error) {
	return s.queryStops(`WHERE name LIKE ? ESCAPE '\'`, []any{"%" + escapeLike(text) + "%"})
}

// StopsOnLine returns the stops linked to any line called name.
func (s *Store) StopsOnLine(name string) ([]Stop, error) {
	return s.queryStops("WHERE id IN (SELECT ls.stop_id FROM line_stops ls JOIN lines l ON l.id = ls.line_id WHERE l.name = ?)",
		[]any{name})
}

// FindStopsNear returns the stops within radiusMeters of (lat, lon), closest
// first.
func (s *Store) FindStopsNear(lat, lon, radiusMeters float64) ([]NearbyStop, error) {
	stops, err := s.queryStops("WHERE lat IS NOT NULL AND lon IS NOT NULL", nil)
	if err != nil {
		return nil, err
	}

	var out []NearbyStop
	for _, stop := range stops {
		d := geo.DistanceTo(lat, lon, *stop.Lat, *stop.Lon)
		if d <= radiusMeters {
			out = append(out, NearbyStop{Stop: stop, DistanceMeters: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceMeters < out[j].DistanceMeters
	})
	return out, nil
}

func (s *Store) queryStops(where string, args []any) ([]Stop, error) {
	query := "SELECT id, stop_number, stop_id, name, lat, lon, lat IS NULL AS lat_null, lon IS NULL AS lon_null FROM stops " +
		where + " ORDER BY id"

	var stops []Stop
	index := make(map[int64]int)
	err := sqlitex.Exec(s.db, query, func(stmt *sqlite.Stmt) error {
		stop := Stop{
			ID:         stmt.GetInt64("id"),
			StopNumber: stmt.GetInt64("stop_number"),
			StopID:     stmt.GetInt64("stop_id"),
			Name:       stmt.GetText("name"),
		}
		if stmt.GetInt64("lat_null") == 0 {
			lat := stmt.GetFloat("lat")
			stop.Lat = &lat
		}
		if stmt.GetInt64("lon_null") == 0 {
			lon := stmt.GetFloat("lon")
			stop.Lon = &lon
		}
		index[stop.ID] = len(stops)
		stops = append(stops, stop)
		return nil
	}, args...)
	if err != nil {
		return nil, err
	}
	if len(stops) == 0 {
		return nil, nil
	}

	linesQuery := "SELECT ls.stop_id AS stop_id, l.name AS name FROM line_stops ls JOIN lines l ON l.id = ls.line_id " +
		"WHERE ls.stop_id IN (SELECT id FROM stops " + where + ") ORDER BY ls.rowid"
	err = sqlitex.Exec(s.db, linesQuery, func(stmt *sqlite.Stmt) error {
		if i, ok := index[stmt.GetInt64("stop_id")]; ok {
			stops[i].Lines = append(stops[i].Lines, stmt.GetText("name"))
		}
		return nil
	}, args...)
	if err != nil {
		return nil, err
	}
	return stops, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
