package main

import (
	"fmt"
	"github.com/dzfranklin/stops2sqlite"
	"github.com/spf13/pflag"
	"os"
	"path"
	"strconv"
	"strings"
)

func usageAndDie() {
	fmt.Println("Example usage:\n" +
		"    stops2sqlite                      (loads stops.json into stops.db)\n" +
		"    stops2sqlite --db <stops.db> --input <stops.json>\n" +
		"    stops2sqlite --export <stops_out.json>\n" +
		"    stops2sqlite --clip <clipped.db> --clip-feature <feature_geojson.json>\n" +
		"    stops2sqlite --validate\n" +
		"    stops2sqlite --search <text> | --line <name> | --near <lat,lon> [--radius <meters>]")
	os.Exit(1)
}

func main() {
	configPath := pflag.String("config", "", "YAML config file")
	dbPath := pflag.StringP("db", "d", stops2sqlite.DefaultDBPath, "Database to load into or read from")
	inputPath := pflag.StringP("input", "i", stops2sqlite.DefaultInputPath, "JSON stops file to load")

	exportPath := pflag.StringP("export", "e", "", "Export the database to a JSON stops file")
	clipPath := pflag.StringP("clip", "c", "", "Write a clipped copy of the database")
	search := pflag.String("search", "", "List stops whose name contains the text")
	line := pflag.String("line", "", "List stops on a line")
	near := pflag.String("near", "", "List stops near a point given as lat,lon")
	primaryOptions := []*string{exportPath, clipPath, search, line, near}
	validateMode := pflag.Bool("validate", false, "Check the database for integrity issues")

	clipFeaturePath := pflag.String("clip-feature", "", "If --clip is specified clips to the GeoJSON feature in the file specified")
	radius := pflag.Float64("radius", 500, "Search radius in meters for --near")

	pflag.Parse()

	primaryCount := 0
	for _, opt := range primaryOptions {
		if *opt != "" {
			primaryCount++
		}
	}
	if *validateMode {
		primaryCount++
	}
	if primaryCount > 1 || pflag.NArg() > 0 {
		usageAndDie()
	}

	cfg := stops2sqlite.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = stops2sqlite.LoadConfig(*configPath)
		if err != nil {
			fmt.Printf("Error: %s\n", err)
			os.Exit(1)
		}
	}
	if pflag.CommandLine.Changed("db") || *configPath == "" {
		cfg.DBPath = *dbPath
	}
	if pflag.CommandLine.Changed("input") || *configPath == "" {
		cfg.InputPath = *inputPath
	}

	var err error
	var done string
	if *exportPath != "" {
		err = stops2sqlite.Export(cfg.DBPath, *exportPath)
		done = "Exported to " + *exportPath
	} else if *clipPath != "" {
		if *clipFeaturePath == "" {
			usageAndDie()
		}
		var feature []byte
		feature, err = os.ReadFile(*clipFeaturePath)
		if err != nil {
			panic(err)
		}
		var stats *stops2sqlite.ClipStats
		stats, err = stops2sqlite.Clip(cfg.DBPath, *clipPath, string(feature))
		if err == nil {
			done = fmt.Sprintf("Clipped to %s (%s): kept %d stops",
				*clipPath, trimFileExt(path.Base(*clipFeaturePath)), stats.StopsKept)
		}
	} else if *validateMode {
		var issues []string
		issues, err = stops2sqlite.Validate(cfg.DBPath)
		for _, issue := range issues {
			fmt.Println(issue)
		}
		done = "No issues"
	} else if *search != "" || *line != "" || *near != "" {
		err = query(cfg.DBPath, *search, *line, *near, *radius)
	} else {
		err = stops2sqlite.InitSchema(cfg.DBPath)
		if err == nil {
			_, err = stops2sqlite.Load(cfg.DBPath, cfg.InputPath, cfg.LoadOpts())
		}
		done = "Database created and data inserted at " + cfg.DBPath
	}

	if err != nil {
		fmt.Printf("Error: %s\n", err)
		os.Exit(1)
	} else if done != "" {
		fmt.Println(done)
	}
}

func query(dbPath, search, line, near string, radius float64) error {
	store, err := stops2sqlite.OpenStore(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var stops []stops2sqlite.Stop
	switch {
	case search != "":
		stops, err = store.FindStopsByText(search)
	case line != "":
		stops, err = store.StopsOnLine(line)
	default:
		lat, lon, perr := parseLatLon(near)
		if perr != nil {
			return perr
		}
		nearby, err := store.FindStopsNear(lat, lon, radius)
		if err != nil {
			return err
		}
		for _, stop := range nearby {
			fmt.Printf("%d\t%s\t%s\t%.0fm\n", stop.StopNumber, stop.Name, strings.Join(stop.Lines, ", "), stop.DistanceMeters)
		}
		return nil
	}
	if err != nil {
		return err
	}
	for _, stop := range stops {
		fmt.Printf("%d\t%s\t%s\n", stop.StopNumber, stop.Name, strings.Join(stop.Lines, ", "))
	}
	return nil
}

func parseLatLon(s string) (float64, float64, error) {
	latText, lonText, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("expected lat,lon, got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latText), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse lat: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonText), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse lon: %w", err)
	}
	return lat, lon, nil
}

func trimFileExt(name string) string {
	i := strings.LastIndex(name, ".")
	if i == -1 {
		return name
	} else {
		return name[:i]
	}
}
