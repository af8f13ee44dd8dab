package geo

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// defaultBoundary is a simplified South Carolina border, shipped with the
// binary so the service runs without an external geometry file.
//
//go:embed data/south_carolina.geojson
var defaultBoundary []byte

// ErrNotPolygonal is returned when the geometry source contains no Polygon
// or MultiPolygon.
var ErrNotPolygonal = errors.New("region geometry must be a Polygon or MultiPolygon")

// Region is the immutable geographic boundary detections are filtered
// against. Safe for concurrent use after construction.
type Region struct {
	geom  orb.Geometry
	bound orb.Bound
}

// Load reads a GeoJSON boundary from a file. The file may contain a
// FeatureCollection, a single Feature, or a bare geometry.
func Load(path string, logger *slog.Logger) (*Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read region geometry %s: %w", path, err)
	}
	return Parse(data, logger)
}

// LoadDefault builds the Region from the embedded South Carolina boundary.
func LoadDefault(logger *slog.Logger) (*Region, error) {
	return Parse(defaultBoundary, logger)
}

// Parse builds a Region from raw GeoJSON.
func Parse(data []byte, logger *slog.Logger) (*Region, error) {
	geom, err := extractGeometry(data)
	if err != nil {
		return nil, err
	}

	r := &Region{geom: geom, bound: geom.Bound()}

	// Soft sanity check: a valid boundary contains its own centroid. Failure
	// usually means flipped lat/lon or a degenerate ring, but it is not
	// provably fatal, so warn and continue.
	centroid, _ := planar.CentroidArea(geom)
	if !r.containsPoint(centroid) {
		logger.Warn("region centroid falls outside boundary, geometry may be invalid or coordinates flipped",
			"centroid_lon", centroid[0], "centroid_lat", centroid[1])
	}

	return r, nil
}

// Contains reports whether the WGS-84 point lies inside the region boundary.
func (r *Region) Contains(lat, lon float64) bool {
	return r.containsPoint(orb.Point{lon, lat})
}

// Bound returns the boundary's bounding box (min/max lon/lat), used to
// area-bound feed API requests.
func (r *Region) Bound() orb.Bound {
	return r.bound
}

func (r *Region) containsPoint(p orb.Point) bool {
	switch g := r.geom.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, p)
	default:
		return false
	}
}

// extractGeometry pulls the first polygonal geometry out of a GeoJSON
// document, accepting FeatureCollection, Feature, or bare geometry roots.
func extractGeometry(data []byte) (orb.Geometry, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("parse region geometry: %w", err)
	}

	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("parse region feature collection: %w", err)
		}
		for _, f := range fc.Features {
			if f == nil || f.Geometry == nil {
				continue
			}
			if isPolygonal(f.Geometry) {
				return f.Geometry, nil
			}
		}
		return nil, ErrNotPolygonal
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("parse region feature: %w", err)
		}
		if f.Geometry == nil || !isPolygonal(f.Geometry) {
			return nil, ErrNotPolygonal
		}
		return f.Geometry, nil
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("parse region geometry: %w", err)
		}
		geom := g.Geometry()
		if !isPolygonal(geom) {
			return nil, ErrNotPolygonal
		}
		return geom, nil
	}
}

func isPolygonal(g orb.Geometry) bool {
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return true
	default:
		return false
	}
}
