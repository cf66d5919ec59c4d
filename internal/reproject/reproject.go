// Package reproject converts geometries from a source spatial reference
// system into WGS84 (EPSG:4326), the only SRID the store persists. The
// geodetic math is delegated to the wgs84 library; this package decides when
// a transform is needed and applies it to every coordinate of a batch so a
// dataset can never be loaded with mixed coordinate systems.
package reproject

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/wroge/wgs84"
)

// WGS84SRID is the canonical target reference system.
const WGS84SRID = 4326

// ErrUnsupportedSRID is returned when the source EPSG code is unknown to the
// geodesy library. The run fails before any feature is read.
var ErrUnsupportedSRID = errors.New("unsupported source SRID")

// usSurveyFoot is the US survey foot in meters (exactly 1200/3937), the
// linear unit of the state-plane EPSG codes.
const usSurveyFoot = 1200.0 / 3937.0

// usFootCRS exchanges coordinates in US survey feet around a projected
// system whose math runs in meters.
type usFootCRS struct {
	wgs84.ProjectedReferenceSystem
}

func (c usFootCRS) ToWGS84(east, north, h float64) (float64, float64, float64) {
	return c.ProjectedReferenceSystem.ToWGS84(east*usSurveyFoot, north*usSurveyFoot, h)
}

func (c usFootCRS) FromWGS84(x, y, z float64) (float64, float64, float64) {
	east, north, h := c.ProjectedReferenceSystem.FromWGS84(x, y, z)
	return east / usSurveyFoot, north / usSurveyFoot, h
}

// washingtonSouth is EPSG:2927, NAD83(HARN) / Washington South (ftUS): the
// Clark County taxlot export system. Lambert conformal conic 2SP with the
// false origin at 45°20'N 120°30'W, standard parallels 47°20' and 45°50',
// and a false easting of 1640416.667 ftUS. The geodesy library ships no US
// state-plane codes, so it is registered here.
func washingtonSouth() wgs84.CoordinateReferenceSystem {
	crs := wgs84.NAD83().LambertConformalConic2SP(
		-120.5,
		45.333333333333336,
		47.333333333333336,
		45.833333333333336,
		1640416.667*usSurveyFoot,
		0,
	)
	crs.Area = wgs84.AreaFunc(func(lon, lat float64) bool {
		return lon >= -125 && lon <= -116.4 && lat >= 45 && lat <= 49.05
	})

	return usFootCRS{crs}
}

// epsg is the shared code repository: the library's built-in codes plus the
// state-plane registrations above.
func epsg() *wgs84.Repository {
	repo := wgs84.EPSG()
	repo.Add(2927, washingtonSouth())

	return repo
}

// Transformer converts coordinates between one source EPSG system and WGS84.
// A Transformer built for EPSG:4326 is an identity pass-through.
type Transformer struct {
	srid    int
	forward wgs84.SafeFunc
	inverse wgs84.SafeFunc
}

// NewTransformer builds a transformer for the given source EPSG code.
func NewTransformer(srid int) (*Transformer, error) {
	if srid == WGS84SRID {
		return &Transformer{srid: srid}, nil
	}

	crs := epsg().Code(srid)
	if crs == nil {
		return nil, fmt.Errorf("%w: EPSG:%d", ErrUnsupportedSRID, srid)
	}

	t := &Transformer{
		srid:    srid,
		forward: wgs84.SafeTransform(crs, wgs84.LonLat()),
		inverse: wgs84.SafeTransform(wgs84.LonLat(), crs),
	}

	return t, nil
}

// SRID returns the source EPSG code this transformer was built for.
func (t *Transformer) SRID() int {
	return t.srid
}

// Identity reports whether the source system already is WGS84.
func (t *Transformer) Identity() bool {
	return t.forward == nil
}

// ToWGS84Point converts a single source coordinate pair to (lon, lat).
func (t *Transformer) ToWGS84Point(x, y float64) (float64, float64, error) {
	if t.forward == nil {
		return x, y, nil
	}
	lon, lat, _, err := t.forward(x, y, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to reproject point (%f, %f) from EPSG:%d: %w", x, y, t.srid, err)
	}
	return lon, lat, nil
}

// FromWGS84Point converts a (lon, lat) coordinate back into the source
// system. Used for round-trip verification.
func (t *Transformer) FromWGS84Point(lon, lat float64) (float64, float64, error) {
	if t.inverse == nil {
		return lon, lat, nil
	}
	x, y, _, err := t.inverse(lon, lat, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to inverse-project point (%f, %f) to EPSG:%d: %w", lon, lat, t.srid, err)
	}
	return x, y, nil
}

// ToWGS84 converts an orb geometry to WGS84 with (lon, lat) coordinate
// order. The input geometry is not modified.
func (t *Transformer) ToWGS84(g orb.Geometry) (orb.Geometry, error) {
	if t.forward == nil {
		return g, nil
	}

	switch geom := g.(type) {
	case orb.Point:
		return t.point(geom)
	case orb.MultiPoint:
		out := make(orb.MultiPoint, len(geom))
		for i, p := range geom {
			tp, err := t.point(p)
			if err != nil {
				return nil, err
			}
			out[i] = tp
		}
		return out, nil
	case orb.LineString:
		out, err := t.line(geom)
		if err != nil {
			return nil, err
		}
		return out, nil
	case orb.Ring:
		out, err := t.ring(geom)
		if err != nil {
			return nil, err
		}
		return out, nil
	case orb.Polygon:
		out, err := t.polygon(geom)
		if err != nil {
			return nil, err
		}
		return out, nil
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(geom))
		for i, poly := range geom {
			tp, err := t.polygon(poly)
			if err != nil {
				return nil, err
			}
			out[i] = tp
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot reproject geometry type %T", g)
	}
}

func (t *Transformer) point(p orb.Point) (orb.Point, error) {
	lon, lat, err := t.ToWGS84Point(p[0], p[1])
	if err != nil {
		return orb.Point{}, err
	}
	return orb.Point{lon, lat}, nil
}

func (t *Transformer) line(l orb.LineString) (orb.LineString, error) {
	out := make(orb.LineString, len(l))
	for i, p := range l {
		tp, err := t.point(p)
		if err != nil {
			return nil, err
		}
		out[i] = tp
	}
	return out, nil
}

func (t *Transformer) ring(r orb.Ring) (orb.Ring, error) {
	out := make(orb.Ring, len(r))
	for i, p := range r {
		tp, err := t.point(p)
		if err != nil {
			return nil, err
		}
		out[i] = tp
	}
	return out, nil
}

func (t *Transformer) polygon(poly orb.Polygon) (orb.Polygon, error) {
	out := make(orb.Polygon, len(poly))
	for i, r := range poly {
		tr, err := t.ring(r)
		if err != nil {
			return nil, err
		}
		out[i] = tr
	}
	return out, nil
}
