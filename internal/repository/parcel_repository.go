package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/parcelforge/api/internal/database"
	"github.com/parcelforge/api/internal/models"
)

// parcelColumns selects the canonical attribute set. total_value is derived
// from its components at read time, never stored, so it can never drift.
const parcelColumns = `
		parcel_id,
		site_address,
		owner_name,
		zoning_code,
		land_value,
		building_value,
		(COALESCE(land_value, 0) + COALESCE(building_value, 0)) AS total_value,
		year_built,
		acres,
		investment_score,
		ST_AsGeoJSON(geometry) AS geometry`

// ParcelRepository defines the read side of the spatial store plus the
// out-of-band score update used by the external scoring collaborator.
// All reads run against the live table; an ingestion swap is atomic, so a
// concurrent read sees either the old or the new complete dataset.
type ParcelRepository interface {
	// FindByPoint finds the parcel whose polygon strictly contains the given
	// lat/lng point. Returns nil, nil if no parcel contains it (boundary
	// points, streets, water) - that is an expected outcome, not an error.
	FindByPoint(ctx context.Context, lat, lng float64) (*models.Parcel, error)

	// IntersectPolygon finds parcels whose geometry intersects the GeoJSON
	// polygon (boundary-touching counts), capped at limit. Results arrive in
	// table order; an empty slice is not an error.
	IntersectPolygon(ctx context.Context, polygonGeoJSON []byte, limit int) ([]models.Parcel, error)

	// FindByID fetches a single parcel by its canonical identifier.
	// Returns nil, nil when absent.
	FindByID(ctx context.Context, parcelID string) (*models.Parcel, error)

	// UpdateInvestmentScore sets the producer-assigned score for one parcel.
	UpdateInvestmentScore(ctx context.Context, parcelID string, score float64) error
}

// parcelRepository is the concrete implementation of ParcelRepository.
type parcelRepository struct {
	db *database.Database
}

// NewParcelRepository creates a new instance of ParcelRepository.
func NewParcelRepository(db *database.Database) ParcelRepository {
	return &parcelRepository{
		db: db,
	}
}

// FindByPoint uses PostGIS ST_Contains for a point-in-polygon query; the GIST
// index on geometry keeps it near-constant relative to matches, not table
// size. ST_Contains is strict: a point on the boundary matches nothing.
//
// Note: PostGIS functions expect (longitude, latitude) order, not (lat, lng).
func (r *parcelRepository) FindByPoint(ctx context.Context, lat, lng float64) (*models.Parcel, error) {
	query := `
		SELECT ` + parcelColumns + `
		FROM parcels
		WHERE ST_Contains(geometry, ST_SetSRID(ST_MakePoint($1, $2), 4326))
		LIMIT 1
	`

	row := r.db.Pool.QueryRow(ctx, query, lng, lat)
	parcel, err := scanParcel(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query parcel at point (lat=%f, lng=%f): %w", lat, lng, err)
	}

	return parcel, nil
}

// IntersectPolygon uses ST_Intersects against a GeoJSON polygon. The limit is
// a safety bound, not pagination; callers needing more re-query with a
// smaller polygon.
func (r *parcelRepository) IntersectPolygon(ctx context.Context, polygonGeoJSON []byte, limit int) ([]models.Parcel, error) {
	query := `
		SELECT ` + parcelColumns + `
		FROM parcels
		WHERE ST_Intersects(geometry, ST_GeomFromGeoJSON($1))
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, string(polygonGeoJSON), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query intersecting parcels: %w", err)
	}
	defer rows.Close()

	parcels := make([]models.Parcel, 0)
	for rows.Next() {
		parcel, err := scanParcel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan parcel row: %w", err)
		}
		parcels = append(parcels, *parcel)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parcel rows: %w", err)
	}

	return parcels, nil
}

// FindByID fetches one parcel by identifier.
func (r *parcelRepository) FindByID(ctx context.Context, parcelID string) (*models.Parcel, error) {
	query := `
		SELECT ` + parcelColumns + `
		FROM parcels
		WHERE parcel_id = $1
	`

	row := r.db.Pool.QueryRow(ctx, query, parcelID)
	parcel, err := scanParcel(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query parcel %s: %w", parcelID, err)
	}

	return parcel, nil
}

// UpdateInvestmentScore writes the externally computed score. Parcels are
// otherwise read-only between ingestion runs.
func (r *parcelRepository) UpdateInvestmentScore(ctx context.Context, parcelID string, score float64) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE parcels SET investment_score = $2 WHERE parcel_id = $1`,
		parcelID, score,
	)
	if err != nil {
		return fmt.Errorf("failed to update score for parcel %s: %w", parcelID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("parcel %s not found", parcelID)
	}
	return nil
}

// scanParcel reads one row in parcelColumns order.
func scanParcel(row pgx.Row) (*models.Parcel, error) {
	var parcel models.Parcel
	var geomJSON []byte

	err := row.Scan(
		&parcel.ParcelID,
		&parcel.SiteAddress,
		&parcel.OwnerName,
		&parcel.ZoningCode,
		&parcel.LandValue,
		&parcel.BuildingValue,
		&parcel.TotalValue,
		&parcel.YearBuilt,
		&parcel.Acres,
		&parcel.InvestmentScore,
		&geomJSON,
	)
	if err != nil {
		return nil, err
	}

	if geomJSON != nil {
		if err := parcel.Geometry.Scan(geomJSON); err != nil {
			return nil, fmt.Errorf("failed to parse geometry for parcel %s: %w", parcel.ParcelID, err)
		}
	}

	return &parcel, nil
}
