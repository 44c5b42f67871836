package stops2sqlite

import (
	"encoding/json"
	"fmt"
	"github.com/tidwall/pretty"
	"log/slog"
	"os"
	"strings"
)

// exportedStop mirrors the input record layout, field order included.
type exportedStop struct {
	ID     int64    `json:"id"`
	StopID int64    `json:"stop_id"`
	Nombre string   `json:"nombre"`
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
	Lineas string   `json:"lineas"`
}

// Export writes the stops in the database at inputPath to outputPath in the
// same JSON format Load reads.
func Export(inputPath string, outputPath string) error {
	if inputPath == "" {
		panic("Missing inputPath")
	}
	if outputPath == "" {
		panic("Missing outputPath")
	}

	slog.Info(fmt.Sprintf("Exporting %s to %s", inputPath, outputPath))

	store, err := OpenStore(inputPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	stops, err := store.Stops()
	if err != nil {
		return err
	}

	out := make([]exportedStop, 0, len(stops))
	for _, stop := range stops {
		out = append(out, exportedStop{
			ID:     stop.StopNumber,
			StopID: stop.StopID,
			Nombre: stop.Name,
			Lat:    stop.Lat,
			Lon:    stop.Lon,
			Lineas: strings.Join(stop.Lines, lineSeparator),
		})
	}

	data, err := json.Marshal(out)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, pretty.Pretty(data), 0o644); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("Wrote %d stops to %s", len(out), outputPath))
	return nil
}
