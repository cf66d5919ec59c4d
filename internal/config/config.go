package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	CORS     CORSConfig
	GIS      GISConfig
	Geocoder GeocoderConfig
	Demo     DemographicsConfig
	Ingest   IngestConfig
	Redis    RedisConfig
	Registry RegistryConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	PoolMin  int
	PoolMax  int
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// GISConfig holds the remote feature source (county map server) configuration.
// QueryTimeout bounds every outbound call so a slow upstream cannot stall a
// resolution request.
type GISConfig struct {
	TaxlotsURL   string
	QueryTimeout time.Duration
}

// GeocoderConfig holds the address geocoding service configuration.
type GeocoderConfig struct {
	URL     string
	Timeout time.Duration
}

// DemographicsConfig holds the census statistics service configuration.
type DemographicsConfig struct {
	URL     string
	Timeout time.Duration
}

// IngestConfig holds the bulk shapefile ingestion configuration.
// SourceSRID is the EPSG code of the provider's coordinate system; 2927 is
// the Washington South state-plane system used by the county taxlot export.
type IngestConfig struct {
	DataURL         string
	ShapefilePath   string
	FieldMapPath    string
	SourceSRID      int
	BatchSize       int
	DownloadTimeout time.Duration
}

// RedisConfig holds the optional resolver cache configuration.
// An empty Addr disables caching entirely.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RegistryConfig holds the data-source registry file location.
type RegistryConfig struct {
	Path string
}

// Load reads configuration from environment variables.
// It uses viper to read values and provides sensible defaults for development.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults for development
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "parcels")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001")
	v.SetDefault("GIS_TAXLOTS_URL", "https://gis.clark.wa.gov/arcgisfed2/rest/services/MapsOnline/LandRecords/MapServer/2/query")
	v.SetDefault("GIS_QUERY_TIMEOUT", "5s")
	v.SetDefault("GEOCODE_URL", "https://geocode.arcgis.com/arcgis/rest/services/World/GeocodeServer/findAddressCandidates")
	v.SetDefault("GEOCODE_TIMEOUT", "10s")
	v.SetDefault("DEMOGRAPHICS_URL", "https://api.datacommons.org/stat/series")
	v.SetDefault("DEMOGRAPHICS_TIMEOUT", "3s")
	v.SetDefault("INGEST_DATA_URL", "https://gis.clark.wa.gov/gishome/dataset/download/Taxlots.zip")
	v.SetDefault("INGEST_SHAPEFILE_PATH", "")
	v.SetDefault("INGEST_FIELD_MAP_PATH", "")
	v.SetDefault("INGEST_SOURCE_SRID", 2927)
	v.SetDefault("INGEST_BATCH_SIZE", 1000)
	v.SetDefault("INGEST_DOWNLOAD_TIMEOUT", "5m")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_TTL", "15m")
	v.SetDefault("REGISTRY_PATH", "data_sources.json")

	// Bind environment variables
	v.AutomaticEnv()

	// Build configuration
	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("PORT"),
			Env:  v.GetString("ENV"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
		GIS: GISConfig{
			TaxlotsURL:   v.GetString("GIS_TAXLOTS_URL"),
			QueryTimeout: v.GetDuration("GIS_QUERY_TIMEOUT"),
		},
		Geocoder: GeocoderConfig{
			URL:     v.GetString("GEOCODE_URL"),
			Timeout: v.GetDuration("GEOCODE_TIMEOUT"),
		},
		Demo: DemographicsConfig{
			URL:     v.GetString("DEMOGRAPHICS_URL"),
			Timeout: v.GetDuration("DEMOGRAPHICS_TIMEOUT"),
		},
		Ingest: IngestConfig{
			DataURL:         v.GetString("INGEST_DATA_URL"),
			ShapefilePath:   v.GetString("INGEST_SHAPEFILE_PATH"),
			FieldMapPath:    v.GetString("INGEST_FIELD_MAP_PATH"),
			SourceSRID:      v.GetInt("INGEST_SOURCE_SRID"),
			BatchSize:       v.GetInt("INGEST_BATCH_SIZE"),
			DownloadTimeout: v.GetDuration("INGEST_DOWNLOAD_TIMEOUT"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			TTL:      v.GetDuration("REDIS_TTL"),
		},
		Registry: RegistryConfig{
			Path: v.GetString("REGISTRY_PATH"),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	// Validate database config
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Database.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if c.Database.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if c.Database.PoolMin > c.Database.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}

	// Validate CORS config
	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	// Validate upstream config
	if c.GIS.TaxlotsURL == "" {
		return fmt.Errorf("GIS_TAXLOTS_URL is required")
	}
	if c.GIS.QueryTimeout <= 0 {
		return fmt.Errorf("GIS_QUERY_TIMEOUT must be positive")
	}
	if c.Geocoder.Timeout <= 0 {
		return fmt.Errorf("GEOCODE_TIMEOUT must be positive")
	}
	if c.Demo.Timeout <= 0 {
		return fmt.Errorf("DEMOGRAPHICS_TIMEOUT must be positive")
	}

	// Validate ingest config
	if c.Ingest.SourceSRID <= 0 {
		return fmt.Errorf("INGEST_SOURCE_SRID must be a positive EPSG code")
	}
	if c.Ingest.BatchSize < 1 {
		return fmt.Errorf("INGEST_BATCH_SIZE must be at least 1")
	}
	if c.Ingest.DataURL == "" && c.Ingest.ShapefilePath == "" {
		return fmt.Errorf("one of INGEST_DATA_URL or INGEST_SHAPEFILE_PATH is required")
	}

	if c.Registry.Path == "" {
		return fmt.Errorf("REGISTRY_PATH is required")
	}

	return nil
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
