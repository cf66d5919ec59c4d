package models

// Parcel is the canonical property record produced by ingestion and returned
// by every query path. Source systems disagree on column names (SERIAL_NUM,
// PropertyID, PARCELID, ...); the schema mapper folds them into this one
// shape. All nullable fields use pointers to distinguish zero values from
// NULL.
type Parcel struct {
	ParcelID      string   `json:"parcel_id"`
	SiteAddress   *string  `json:"site_address"`
	OwnerName     *string  `json:"owner_name"`
	ZoningCode    *string  `json:"zoning_code"`
	LandValue     *float64 `json:"land_value"`
	BuildingValue *float64 `json:"building_value"`

	// TotalValue is always land + building (nulls as zero). It is derived in
	// SQL at read time and never stored, so it cannot drift from its parts.
	TotalValue float64 `json:"total_value"`

	YearBuilt       *int         `json:"year_built"`
	Acres           *float64     `json:"acres"`
	InvestmentScore float64      `json:"investment_score"`
	Geometry        MultiPolygon `json:"geometry"`
}

// TableName is the live table queried by the spatial engine. Ingestion
// populates TableName+"_staging" and swaps it in atomically.
const TableName = "parcels"
