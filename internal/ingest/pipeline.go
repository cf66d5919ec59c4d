package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/parcelforge/api/internal/config"
	"github.com/parcelforge/api/internal/logger"
	"github.com/parcelforge/api/internal/observability"
	"github.com/parcelforge/api/internal/reproject"
	"github.com/parcelforge/api/internal/schema"
	"github.com/parcelforge/api/internal/shapefile"
	"github.com/paulmach/orb"
)

// Pipeline drives a full ingestion run: acquire the source dataset, validate
// its schema, then stream mapped and reprojected records into the Loader.
type Pipeline struct {
	cfg      config.IngestConfig
	loader   *Loader
	fieldMap schema.FieldMap
	trans    *reproject.Transformer
	log      *logger.Logger
	metrics  *observability.Metrics
}

// NewPipeline builds a Pipeline from configuration. An unknown source SRID or
// an unreadable field map fails here, before any data moves.
func NewPipeline(cfg config.IngestConfig, loader *Loader, log *logger.Logger, metrics *observability.Metrics) (*Pipeline, error) {
	trans, err := reproject.NewTransformer(cfg.SourceSRID)
	if err != nil {
		return nil, err
	}

	fieldMap := schema.Default()
	if cfg.FieldMapPath != "" {
		fieldMap, err = schema.LoadFile(cfg.FieldMapPath)
		if err != nil {
			return nil, err
		}
	}

	return &Pipeline{
		cfg:      cfg,
		loader:   loader,
		fieldMap: fieldMap,
		trans:    trans,
		log:      log,
		metrics:  metrics,
	}, nil
}

// Run executes one complete ingestion. The dataset comes from the configured
// local path when set, otherwise it is downloaded. Schema validation runs
// before the first record so a fully drifted dataset aborts without touching
// the database.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	workDir, err := os.MkdirTemp("", "parcel-ingest-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	shpPath, err := p.acquire(ctx, workDir)
	if err != nil {
		return nil, err
	}

	reader, err := shapefile.Open(shpPath)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	matched, err := p.fieldMap.Validate(reader.Columns())
	if err != nil {
		return nil, err
	}
	p.log.Info("source schema validated", map[string]interface{}{
		"shapefile":     filepath.Base(shpPath),
		"mapped_fields": matched,
	})

	stream := &featureStream{
		reader:   reader,
		fieldMap: p.fieldMap,
		trans:    p.trans,
		log:      p.log,
	}

	return p.loader.Run(ctx, stream)
}

// acquire resolves the source dataset to a local .shp path, downloading and
// unpacking the zip bundle when no local path is configured.
func (p *Pipeline) acquire(ctx context.Context, workDir string) (string, error) {
	path := p.cfg.ShapefilePath
	if path == "" {
		downloaded, err := p.download(ctx, workDir)
		if err != nil {
			return "", err
		}
		path = downloaded
	}

	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return shapefile.ExtractBundle(path, filepath.Join(workDir, "extracted"))
	}
	return path, nil
}

// download fetches the configured bundle URL into the work directory.
func (p *Pipeline) download(ctx context.Context, workDir string) (string, error) {
	p.log.Info("downloading parcel dataset", map[string]interface{}{
		"url": p.cfg.DataURL,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.DataURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build download request: %w", err)
	}

	client := &http.Client{Timeout: p.cfg.DownloadTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", p.cfg.DataURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download of %s returned status %d", p.cfg.DataURL, resp.StatusCode)
	}

	dest := filepath.Join(workDir, "bundle.zip")
	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer out.Close()

	written, err := io.Copy(out, resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to write bundle: %w", err)
	}

	p.log.Info("dataset downloaded", map[string]interface{}{
		"bytes": written,
	})
	return dest, nil
}

// featureStream adapts the shapefile reader into a RecordSource, applying
// the field map and reprojection per feature. A feature whose geometry fails
// to reproject is logged and dropped; it cannot be stored in WGS84.
type featureStream struct {
	reader   *shapefile.Reader
	fieldMap schema.FieldMap
	trans    *reproject.Transformer
	log      *logger.Logger

	current Record
	err     error
}

func (s *featureStream) Next() bool {
	for s.reader.Next() {
		feature := s.reader.Feature()

		geometry, err := s.trans.ToWGS84(feature.Geometry)
		if err != nil {
			s.log.Warn("dropping feature with unprojectable geometry", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}
		mp, ok := geometry.(orb.MultiPolygon)
		if !ok || len(mp) == 0 {
			continue
		}

		s.current = parseRecord(s.fieldMap.Apply(feature.Attrs), mp)
		return true
	}

	s.err = s.reader.Err()
	return false
}

func (s *featureStream) Record() Record {
	return s.current
}

func (s *featureStream) Err() error {
	return s.err
}

// parseRecord converts canonical string attributes into typed fields. Empty
// or unparseable values become nil rather than zero, so absent data stays
// distinguishable from legitimate zeros.
func parseRecord(attrs map[string]string, geometry orb.MultiPolygon) Record {
	return Record{
		ParcelID:      strings.TrimSpace(attrs[schema.FieldParcelID]),
		SiteAddress:   stringAttr(attrs, schema.FieldSiteAddress),
		OwnerName:     stringAttr(attrs, schema.FieldOwnerName),
		ZoningCode:    stringAttr(attrs, schema.FieldZoningCode),
		LandValue:     floatAttr(attrs, schema.FieldLandValue),
		BuildingValue: floatAttr(attrs, schema.FieldBuildingValue),
		YearBuilt:     intAttr(attrs, schema.FieldYearBuilt),
		Acres:         floatAttr(attrs, schema.FieldAcres),
		Geometry:      geometry,
	}
}

func stringAttr(attrs map[string]string, field string) *string {
	value := strings.TrimSpace(attrs[field])
	if value == "" {
		return nil
	}
	return &value
}

func floatAttr(attrs map[string]string, field string) *float64 {
	value := strings.TrimSpace(attrs[field])
	if value == "" {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	return &f
}

func intAttr(attrs map[string]string, field string) *int {
	value := strings.TrimSpace(attrs[field])
	if value == "" {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		// Some exports store years as "1987.0".
		f, ferr := strconv.ParseFloat(value, 64)
		if ferr != nil {
			return nil
		}
		i = int(f)
	}
	if i == 0 {
		return nil
	}
	return &i
}
