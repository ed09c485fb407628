// Dev tool: load a reports GeoJSON (or synthesize a set), run one
// viewport query against the clustering engine, and print the
// resulting feature collection.
//
// Usage:
//
//	clusterdump -reports reports.geojson -lat 16.0 -lon 107.5 -zoom 8
//	clusterdump -synthetic 500 -zoom 6 -density
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"floodmap/pkg/config"
	"floodmap/pkg/engine"
	"floodmap/pkg/logging"
	"floodmap/pkg/model"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", envOr("FLOODMAP_CONFIG", "config.yaml"), "config file path")
	reportsPath := flag.String("reports", "", "reports GeoJSON file")
	synthetic := flag.Int("synthetic", 0, "generate N synthetic reports instead of loading a file")
	lat := flag.Float64("lat", 16.0, "viewport center latitude")
	lon := flag.Float64("lon", 107.5, "viewport center longitude")
	zoom := flag.Float64("zoom", 8, "viewport zoom")
	printDensity := flag.Bool("density", false, "also print H3 density cells")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cleanup, err := logging.Init(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logging: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	var reports []model.Report
	switch {
	case *synthetic > 0:
		reports = syntheticReports(*synthetic, *lat, *lon)
	case *reportsPath != "":
		reports, err = loadReports(*reportsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load reports: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "Either -reports or -synthetic is required")
		os.Exit(1)
	}

	eng := engine.New(cfg, slog.Default(), nil)
	eng.SetReports(reports)

	vp := model.Viewport{Lat: *lat, Lon: *lon, Zoom: *zoom}
	fc := eng.FeaturesAt(vp)
	slog.Info("viewport query", "reports", len(reports), "features", len(fc.Features))

	out, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal features: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))

	if *printDensity {
		cells, err := eng.DensityCells(*zoom)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to compute density: %v\n", err)
			os.Exit(1)
		}
		dout, _ := json.MarshalIndent(cells, "", "  ")
		fmt.Println(string(dout))
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadReports parses a GeoJSON FeatureCollection of Point features with
// id, category, trust_score, and created_at (RFC 3339) properties.
func loadReports(path string) ([]model.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, err
	}

	reports := make([]model.Report, 0, len(fc.Features))
	for _, f := range fc.Features {
		r := model.Report{
			ID:         stringProp(f.Properties, "id"),
			Category:   model.Category(stringProp(f.Properties, "category")),
			TrustScore: floatProp(f.Properties, "trust_score"),
		}
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if r.Category == "" {
			r.Category = model.CategoryOther
		}
		if ts := stringProp(f.Properties, "created_at"); ts != "" {
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				r.CreatedAt = t
			}
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now()
		}
		if p, ok := f.Geometry.(orb.Point); ok {
			r.Lon = p[0]
			r.Lat = p[1]
			r.HasCoords = true
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func stringProp(props geojson.Properties, key string) string {
	if s, ok := props[key].(string); ok {
		return s
	}
	return ""
}

func floatProp(props geojson.Properties, key string) float64 {
	if f, ok := props[key].(float64); ok {
		return f
	}
	return 0
}

// syntheticReports scatters N reports around the given center with a
// category and trust mix resembling a live flood event.
func syntheticReports(n int, lat, lon float64) []model.Report {
	rng := rand.New(rand.NewSource(42))
	categories := []model.Category{
		model.CategoryAlert, model.CategorySOS, model.CategoryRoad,
		model.CategoryNeeds, model.CategoryRain, model.CategoryOther,
	}

	reports := make([]model.Report, n)
	for i := range reports {
		reports[i] = model.Report{
			ID:         uuid.NewString(),
			Lat:        lat + rng.NormFloat64()*0.5,
			Lon:        lon + rng.NormFloat64()*0.5,
			HasCoords:  true,
			Category:   categories[rng.Intn(len(categories))],
			TrustScore: rng.Float64(),
			CreatedAt:  time.Now().Add(-time.Duration(rng.Intn(720)) * time.Minute),
		}
	}
	return reports
}
