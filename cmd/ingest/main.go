package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/parcelforge/api/internal/config"
	"github.com/parcelforge/api/internal/database"
	"github.com/parcelforge/api/internal/ingest"
	"github.com/parcelforge/api/internal/logger"
	"github.com/parcelforge/api/internal/observability"
)

// The ingest command runs one shapefile ingestion and exits. It shares
// configuration with the server; flags override the environment for one-off
// loads from a local export.
func main() {
	shapefilePath := flag.String("shapefile", "", "path to a local .shp file (skips download)")
	dataURL := flag.String("url", "", "shapefile bundle URL override")
	srid := flag.Int("srid", 0, "source EPSG code override")
	batchSize := flag.Int("batch-size", 0, "insert batch size override")
	fieldMapPath := flag.String("field-map", "", "path to a JSON field map override")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *shapefilePath != "" {
		cfg.Ingest.ShapefilePath = *shapefilePath
	}
	if *dataURL != "" {
		cfg.Ingest.DataURL = *dataURL
	}
	if *srid > 0 {
		cfg.Ingest.SourceSRID = *srid
	}
	if *batchSize > 0 {
		cfg.Ingest.BatchSize = *batchSize
	}
	if *fieldMapPath != "" {
		cfg.Ingest.FieldMapPath = *fieldMapPath
	}

	log := logger.New(cfg.Server.Env)

	ctx := context.Background()
	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", err, map[string]interface{}{
			"host": cfg.Database.Host,
			"port": cfg.Database.Port,
			"name": cfg.Database.Name,
		})
	}
	defer db.Close()

	metrics := observability.NewMetrics()
	loader := ingest.NewLoader(db, cfg.Ingest.BatchSize, log, metrics)
	pipeline, err := ingest.NewPipeline(cfg.Ingest, loader, log, metrics)
	if err != nil {
		log.Fatal("Failed to build ingestion pipeline", err, nil)
	}

	result, err := pipeline.Run(ctx)
	if err != nil {
		log.Error("Ingestion run failed", err, nil)
		os.Exit(1)
	}

	fmt.Printf("loaded=%d skipped=%d duplicates=%d elapsed=%s\n",
		result.Loaded, result.Skipped, result.Duplicates, result.Elapsed)
}
