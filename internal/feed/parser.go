package feed

import (
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/jillmpla/south-carolina-fires/internal/domain"
)

// ErrUnrecognizedPayload signals that a payload's header does not resemble
// FIRMS detection CSV. Callers log it (typically with a body snippet, to catch
// upstream schema drift) and treat the payload as zero records.
var ErrUnrecognizedPayload = errors.New("payload does not look like FIRMS detection CSV")

// requiredColumns must all appear in the header, case-insensitively, for a
// payload to be accepted.
var requiredColumns = []string{"latitude", "longitude", "acq_date", "acq_time"}

// ParseStats reports per-payload row accounting. Drops are counted, never
// raised as errors.
type ParseStats struct {
	Total         int // data rows seen
	Kept          int
	BadCoord      int // missing, unparsable, or non-finite coordinates
	OutsideRegion int
}

// RegionFilter answers point-in-region queries. Implemented by geo.Region.
type RegionFilter interface {
	Contains(lat, lon float64) bool
}

// Parser turns FIRMS CSV payloads into detections, geofiltered to a region.
//
// Columns are resolved by header name once per payload, so upstream column
// reordering or added columns do not break parsing.
type Parser struct {
	region RegionFilter
	logger *slog.Logger
}

// NewParser creates a Parser filtering against the given region.
func NewParser(region RegionFilter, logger *slog.Logger) *Parser {
	return &Parser{region: region, logger: logger}
}

// LooksLikeDetectionCSV reports whether the payload's first line carries the
// required FIRMS columns.
func LooksLikeDetectionCSV(raw string) bool {
	first, _, _ := strings.Cut(raw, "\n")
	first = strings.ToLower(first)
	for _, col := range requiredColumns {
		if !strings.Contains(first, col) {
			return false
		}
	}
	return true
}

// Parse converts one raw CSV payload into detections. Rows with bad
// coordinates or points outside the region are dropped and counted in the
// returned stats. Malformed optional fields degrade to defaults. An
// unrecognized header returns ErrUnrecognizedPayload with zero records.
func (p *Parser) Parse(raw string) ([]domain.Detection, ParseStats, error) {
	var stats ParseStats

	if !LooksLikeDetectionCSV(raw) {
		return nil, stats, ErrUnrecognizedPayload
	}

	r := csv.NewReader(strings.NewReader(raw))
	r.FieldsPerRecord = -1 // column counts drift across products
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, stats, ErrUnrecognizedPayload
	}
	col := columnIndex(header)

	var out []domain.Detection
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A mangled row is a row-level problem, not a payload-level one.
			stats.Total++
			stats.BadCoord++
			continue
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		stats.Total++

		lat, okLat := parseCoordinate(col.field(rec, "latitude"))
		lon, okLon := parseCoordinate(col.field(rec, "longitude"))
		if !okLat || !okLon {
			stats.BadCoord++
			continue
		}

		if !p.region.Contains(lat, lon) {
			stats.OutsideRegion++
			continue
		}

		d := domain.Detection{
			Latitude:   lat,
			Longitude:  lon,
			Brightness: parseOptionalFloat(col.field(rec, "bright_ti4")),
			BrightTI5:  parseOptionalFloat(col.field(rec, "bright_ti5")),
			Confidence: defaultIfEmpty(col.field(rec, "confidence"), domain.Unknown),
			AcqDate:    col.field(rec, "acq_date"),
			AcqTime:    domain.PadAcqTime(col.field(rec, "acq_time")),
			Satellite:  strings.ToUpper(strings.TrimSpace(col.field(rec, "satellite"))),
			Instrument: strings.TrimSpace(col.field(rec, "instrument")),
			Version:    strings.TrimSpace(col.field(rec, "version")),
			FRP:        parseOptionalFloat(col.field(rec, "frp")),
			DayNight:   mapDayNight(col.field(rec, "daynight")),
		}
		d.AcqTS = domain.BuildAcqTimestamp(d.AcqDate, d.AcqTime)

		out = append(out, d)
		stats.Kept++
	}

	p.logger.Debug("parsed feed payload",
		"total", stats.Total, "kept", stats.Kept,
		"bad_coord", stats.BadCoord, "outside_region", stats.OutsideRegion)

	return out, stats, nil
}

// columns maps lower-cased column names to positions, resolved once per
// payload so positional drift in the feed cannot misbind fields.
type columns map[string]int

func columnIndex(header []string) columns {
	col := make(columns, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return col
}

// field reads a named column from a row, yielding "" for columns the payload
// does not carry and for short rows.
func (c columns) field(rec []string, name string) string {
	idx, ok := c[name]
	if !ok || idx >= len(rec) {
		return ""
	}
	return rec[idx]
}

// parseCoordinate parses a latitude/longitude value, rejecting non-finite
// results (ParseFloat accepts "NaN" and "Inf" spellings).
func parseCoordinate(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func parseOptionalFloat(s string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func defaultIfEmpty(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}

func mapDayNight(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "D":
		return domain.Daytime
	case "N":
		return domain.Nighttime
	default:
		return domain.Unknown
	}
}
