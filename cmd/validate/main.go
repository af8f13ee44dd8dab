// Command validate performs offline integrity checks on the data the service
// depends on: a region boundary GeoJSON and, optionally, a FIRMS VIIRS CSV
// export. It verifies the boundary parses and is polygonal, that the CSV is
// recognized by the real parser, and that rows are geographically and
// temporally consistent.
//
// Usage:
//
//	go run ./cmd/validate -region config/boundary.geojson -csv testdata/viirs_mock.csv
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jillmpla/south-carolina-fires/internal/domain"
	"github.com/jillmpla/south-carolina-fires/internal/feed"
	"github.com/jillmpla/south-carolina-fires/internal/geo"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	regionPath := flag.String("region", "", "path to a region boundary GeoJSON (default: embedded South Carolina boundary)")
	csvPath := flag.String("csv", "", "optional path to a FIRMS VIIRS CSV export to check against the boundary")
	flag.Parse()

	if code := run(*regionPath, *csvPath); code != 0 {
		os.Exit(code)
	}
}

func run(regionPath, csvPath string) int {
	fmt.Println("=== Fire Data Integrity Validation ===")
	fmt.Println()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	regionPhase, region := validateRegion(regionPath, logger)
	phases := []*phase{regionPhase}

	if csvPath != "" && region != nil {
		raw, err := os.ReadFile(csvPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: read CSV: %v\n", err)
			return 1
		}
		phases = append(phases,
			validateCSVShape(string(raw)),
			validateCSVRows(string(raw), region, logger),
		)
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Region Boundary ──

func validateRegion(path string, logger *slog.Logger) (*phase, *geo.Region) {
	p := &phase{name: "Phase 1: Region Boundary (GeoJSON)"}

	var region *geo.Region
	var err error
	if path != "" {
		region, err = geo.Load(path, logger)
	} else {
		region, err = geo.LoadDefault(logger)
	}
	if err != nil {
		p.errorf("load boundary: %v", err)
		return p, nil
	}

	bound := region.Bound()
	if bound.Min[0] >= bound.Max[0] || bound.Min[1] >= bound.Max[1] {
		p.errorf("degenerate bounding box: %v", bound)
	}
	if bound.Min[0] < -180 || bound.Max[0] > 180 || bound.Min[1] < -90 || bound.Max[1] > 90 {
		p.errorf("bounding box outside valid coordinates: %v", bound)
	}

	// The boundary must contain its own bounding-box center for any sane
	// single-region polygon; a miss usually means swapped lat/lon.
	center := bound.Center()
	if !region.Contains(center[1], center[0]) {
		p.errorf("boundary does not contain its bounding-box center (%.4f, %.4f); coordinates may be swapped", center[1], center[0])
	}

	return p, region
}

// ── Phase 2: CSV Shape ──

func validateCSVShape(raw string) *phase {
	p := &phase{name: "Phase 2: CSV Shape (header + columns)"}

	if !feed.LooksLikeDetectionCSV(raw) {
		p.errorf("payload is not recognized as a FIRMS detection CSV: %s", feed.Snippet(raw))
		return p
	}

	header := strings.SplitN(raw, "\n", 2)[0]
	for _, col := range []string{"satellite", "confidence", "daynight"} {
		if !strings.Contains(header, col) {
			p.errorf("header missing optional column %q; downstream fields will default", col)
		}
	}
	return p
}

// ── Phase 3: CSV Rows ──

func validateCSVRows(raw string, region *geo.Region, logger *slog.Logger) *phase {
	p := &phase{name: "Phase 3: CSV Rows (coords + timestamps)"}

	records, stats, err := feed.NewParser(region, logger).Parse(raw)
	if err != nil {
		p.errorf("parse: %v", err)
		return p
	}

	if stats.BadCoord > 0 {
		p.errorf("%d rows with malformed coordinates", stats.BadCoord)
	}

	keys := make(map[string]int, len(records))
	var missingTS int
	for i := range records {
		d := &records[i]
		keys[d.NaturalKey()]++
		if d.AcqTS == nil {
			missingTS++
		} else if d.AcqTS.After(time.Now().UTC()) {
			p.errorf("row %d: acquisition timestamp %s is in the future", i, d.AcqTS.Format(time.RFC3339))
		}
	}
	if missingTS > 0 {
		p.errorf("%d rows with underivable acquisition timestamps", missingTS)
	}

	deduped := domain.Dedupe(records)

	fmt.Printf("  Rows: %d total, %d in region, %d outside, %d unique keys, %d after dedupe\n",
		stats.Total, stats.Kept, stats.OutsideRegion, len(keys), len(deduped))

	return p
}
