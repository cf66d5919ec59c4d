// Package ingest implements the bulk load path: county parcel data streams
// through schema mapping and reprojection into a staging table, which then
// replaces the live table in a single transaction. Readers never observe a
// half-loaded dataset; a failed run leaves the live table untouched.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/parcelforge/api/internal/database"
	"github.com/parcelforge/api/internal/logger"
	"github.com/parcelforge/api/internal/models"
	"github.com/parcelforge/api/internal/observability"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ErrRunActive is returned when a load is requested while another is already
// in progress. Only one run may own the staging table at a time.
var ErrRunActive = errors.New("an ingestion run is already active")

const stagingTable = models.TableName + "_staging"

// Record is one canonical parcel ready for insertion: attributes mapped to
// canonical names and geometry already in WGS84.
type Record struct {
	ParcelID      string
	SiteAddress   *string
	OwnerName     *string
	ZoningCode    *string
	LandValue     *float64
	BuildingValue *float64
	YearBuilt     *int
	Acres         *float64
	Geometry      orb.MultiPolygon
}

// RecordSource streams records into the loader. It is single-pass; check Err
// after Next returns false.
type RecordSource interface {
	Next() bool
	Record() Record
	Err() error
}

// Result summarizes a completed run.
type Result struct {
	Loaded     int           `json:"loaded"`
	Skipped    int           `json:"skipped"`
	Duplicates int           `json:"duplicates"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Loader writes records into the staging table in batches and swaps it in.
type Loader struct {
	db        *database.Database
	log       *logger.Logger
	metrics   *observability.Metrics
	batchSize int

	mu sync.Mutex
}

// NewLoader creates a Loader. metrics may be nil.
func NewLoader(db *database.Database, batchSize int, log *logger.Logger, metrics *observability.Metrics) *Loader {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Loader{
		db:        db,
		log:       log,
		metrics:   metrics,
		batchSize: batchSize,
	}
}

// Run drains the source into a fresh staging table and atomically replaces
// the live table. Records without a parcel identifier are skipped and
// counted, never inserted. Returns ErrRunActive if another run holds the
// staging table.
func (l *Loader) Run(ctx context.Context, source RecordSource) (*Result, error) {
	if !l.mu.TryLock() {
		return nil, ErrRunActive
	}
	defer l.mu.Unlock()

	start := time.Now()
	if l.metrics != nil {
		l.metrics.IngestRunning.Set(1)
		defer l.metrics.IngestRunning.Set(0)
	}

	result, err := l.run(ctx, source)
	if err != nil {
		if l.metrics != nil {
			l.metrics.IngestRuns.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	result.Elapsed = time.Since(start)
	if l.metrics != nil {
		l.metrics.IngestRuns.WithLabelValues("success").Inc()
		l.metrics.IngestDuration.Observe(result.Elapsed.Seconds())
	}

	l.log.Info("ingestion run complete", map[string]interface{}{
		"loaded":     result.Loaded,
		"skipped":    result.Skipped,
		"duplicates": result.Duplicates,
		"elapsed":    result.Elapsed.String(),
	})
	return result, nil
}

func (l *Loader) run(ctx context.Context, source RecordSource) (*Result, error) {
	if err := l.createStaging(ctx); err != nil {
		return nil, err
	}

	result := &Result{}
	batch := make([]Record, 0, l.batchSize)

	for source.Next() {
		record := source.Record()

		if record.ParcelID == "" {
			// A record we cannot identify is a record we cannot serve.
			result.Skipped++
			if l.metrics != nil {
				l.metrics.ParcelsSkipped.Inc()
			}
			l.log.Warn("skipping record without parcel identifier", map[string]interface{}{
				"skipped_so_far": result.Skipped,
			})
			continue
		}

		batch = append(batch, record)
		if len(batch) >= l.batchSize {
			if err := l.flush(ctx, batch, result); err != nil {
				return nil, err
			}
			batch = batch[:0]
		}
	}
	if err := source.Err(); err != nil {
		return nil, fmt.Errorf("record source failed: %w", err)
	}

	if len(batch) > 0 {
		if err := l.flush(ctx, batch, result); err != nil {
			return nil, err
		}
	}

	if err := l.buildSpatialIndex(ctx); err != nil {
		return nil, err
	}
	if err := l.swap(ctx); err != nil {
		return nil, err
	}

	return result, nil
}

// createStaging replaces any leftover staging table with a fresh one. The
// primary key on parcel_id enforces identifier uniqueness during the load;
// the spatial index is deferred until after the inserts.
func (l *Loader) createStaging(ctx context.Context) error {
	if _, err := l.db.Pool.Exec(ctx, `DROP TABLE IF EXISTS `+stagingTable); err != nil {
		return fmt.Errorf("failed to drop stale staging table: %w", err)
	}

	ddl := `
		CREATE TABLE ` + stagingTable + ` (
			parcel_id        TEXT PRIMARY KEY,
			site_address     TEXT,
			owner_name       TEXT,
			zoning_code      TEXT,
			land_value       DOUBLE PRECISION,
			building_value   DOUBLE PRECISION,
			year_built       INTEGER,
			acres            DOUBLE PRECISION,
			investment_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			geometry         geometry(MultiPolygon, 4326) NOT NULL
		)
	`
	if _, err := l.db.Pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create staging table: %w", err)
	}
	return nil
}

// flush inserts one batch in a single round trip. Duplicate identifiers hit
// ON CONFLICT DO NOTHING; the zero-row command tag is how they are counted.
func (l *Loader) flush(ctx context.Context, records []Record, result *Result) error {
	insert := `
		INSERT INTO ` + stagingTable + ` (
			parcel_id, site_address, owner_name, zoning_code,
			land_value, building_value, year_built, acres, geometry
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, ST_Multi(ST_GeomFromGeoJSON($9)))
		ON CONFLICT (parcel_id) DO NOTHING
	`

	pending := &pgx.Batch{}
	for _, record := range records {
		geomJSON, err := json.Marshal(geojson.NewGeometry(record.Geometry))
		if err != nil {
			return fmt.Errorf("failed to encode geometry for parcel %s: %w", record.ParcelID, err)
		}
		pending.Queue(insert,
			record.ParcelID,
			record.SiteAddress,
			record.OwnerName,
			record.ZoningCode,
			record.LandValue,
			record.BuildingValue,
			record.YearBuilt,
			record.Acres,
			string(geomJSON),
		)
	}

	results := l.db.Pool.SendBatch(ctx, pending)
	defer results.Close()

	for _, record := range records {
		tag, err := results.Exec()
		if err != nil {
			return fmt.Errorf("failed to insert parcel %s: %w", record.ParcelID, err)
		}
		if tag.RowsAffected() == 0 {
			result.Duplicates++
			if l.metrics != nil {
				l.metrics.ParcelsDuplicate.Inc()
			}
			continue
		}
		result.Loaded++
		if l.metrics != nil {
			l.metrics.ParcelsLoaded.Inc()
		}
	}

	if l.metrics != nil {
		l.metrics.IngestBatchSize.Observe(float64(len(records)))
	}
	return nil
}

// buildSpatialIndex creates the GIST index after all rows are in, which is
// much faster than maintaining it during the inserts.
func (l *Loader) buildSpatialIndex(ctx context.Context) error {
	idx := `CREATE INDEX ` + stagingTable + `_geometry_idx ON ` + stagingTable + ` USING GIST (geometry)`
	if _, err := l.db.Pool.Exec(ctx, idx); err != nil {
		return fmt.Errorf("failed to build spatial index: %w", err)
	}
	return nil
}

// swap retires the live table and promotes staging in one transaction, so a
// concurrent reader sees either the old dataset or the new one, never a mix
// and never an empty table.
func (l *Loader) swap(ctx context.Context) error {
	tx, err := l.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin swap transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	statements := []string{
		`DROP TABLE IF EXISTS ` + models.TableName,
		`ALTER TABLE ` + stagingTable + ` RENAME TO ` + models.TableName,
		`ALTER INDEX ` + stagingTable + `_pkey RENAME TO ` + models.TableName + `_pkey`,
		`ALTER INDEX ` + stagingTable + `_geometry_idx RENAME TO ` + models.TableName + `_geometry_idx`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to swap staging table (%s): %w", stmt, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit swap transaction: %w", err)
	}

	// Fresh statistics so the planner uses the new spatial index right away.
	if _, err := l.db.Pool.Exec(ctx, `ANALYZE `+models.TableName); err != nil {
		l.log.Warn("failed to analyze live table after swap", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return nil
}
