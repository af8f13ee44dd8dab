// Command genmock generates a synthetic NASA FIRMS VIIRS CSV fixture for
// local development and test suites. It uses the actual region boundary so
// generated rows land inside or outside South Carolina on purpose, and runs
// the real parser over its own output as a sanity check.
//
// Usage:
//
//	go run ./cmd/genmock -out testdata/viirs_mock.csv -rows 200 -outside 20 -dupes 5
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jillmpla/south-carolina-fires/internal/domain"
	"github.com/jillmpla/south-carolina-fires/internal/feed"
	"github.com/jillmpla/south-carolina-fires/internal/geo"
)

const header = "latitude,longitude,bright_ti4,scan,track,acq_date,acq_time,satellite,instrument,confidence,version,bright_ti5,frp,daynight"

var satellites = []string{"N", "1"}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the generated CSV")
	rows := flag.Int("rows", 100, "number of in-region detection rows")
	outside := flag.Int("outside", 10, "number of rows placed outside the region")
	dupes := flag.Int("dupes", 5, "number of duplicated rows appended at the end")
	seed := flag.Int64("seed", 1, "random seed for reproducible output")
	date := flag.String("date", "2024-04-26", "acquisition date (YYYY-MM-DD)")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if _, err := time.Parse("2006-01-02", *date); err != nil {
		return fmt.Errorf("invalid -date: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	region, err := geo.LoadDefault(logger)
	if err != nil {
		return fmt.Errorf("loading region boundary: %w", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	bound := region.Bound()

	var b strings.Builder
	b.WriteString(header + "\n")

	inRegion := 0
	for inRegion < *rows {
		lat := bound.Min[1] + rng.Float64()*(bound.Max[1]-bound.Min[1])
		lon := bound.Min[0] + rng.Float64()*(bound.Max[0]-bound.Min[0])
		if !region.Contains(lat, lon) {
			continue
		}
		b.WriteString(row(rng, lat, lon, *date))
		inRegion++
	}

	// Rows outside the boundary but inside the bounding box, the way the
	// area API actually returns them.
	placed := 0
	for placed < *outside {
		lat := bound.Min[1] + rng.Float64()*(bound.Max[1]-bound.Min[1])
		lon := bound.Min[0] + rng.Float64()*(bound.Max[0]-bound.Min[0])
		if region.Contains(lat, lon) {
			continue
		}
		b.WriteString(row(rng, lat, lon, *date))
		placed++
	}

	// Duplicate some of the generated rows verbatim.
	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	for i := 0; i < *dupes && len(lines) > 1; i++ {
		b.WriteString(lines[1+rng.Intn(len(lines)-1)] + "\n")
	}

	raw := b.String()
	if err := writeFile(*out, raw); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote %s: %d in-region, %d outside, %d duplicates", *out, *rows, *outside, *dupes)

	// Sanity check: run the real parser over the fixture and report what the
	// pipeline would keep.
	records, stats, err := feed.NewParser(region, logger).Parse(raw)
	if err != nil {
		return fmt.Errorf("parsing generated fixture: %w", err)
	}
	deduped := domain.Dedupe(records)

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total rows: %d\n", stats.Total)
	fmt.Printf("Kept (in region): %d\n", stats.Kept)
	fmt.Printf("Outside region: %d\n", stats.OutsideRegion)
	fmt.Printf("After dedupe: %d\n", len(deduped))
	return nil
}

// row renders one synthetic VIIRS detection line.
func row(rng *rand.Rand, lat, lon float64, date string) string {
	hour := rng.Intn(24)
	minute := rng.Intn(60)
	daynight := "D"
	confidence := "n"
	if hour < 6 || hour >= 18 {
		daynight = "N"
	}
	switch rng.Intn(3) {
	case 0:
		confidence = "l"
	case 2:
		confidence = "h"
	}
	sat := satellites[rng.Intn(len(satellites))]

	return fmt.Sprintf("%.5f,%.5f,%.1f,0.39,0.36,%s,%02d%02d,%s,VIIRS,%s,2.0NRT,%.1f,%.2f,%s\n",
		lat, lon,
		300+rng.Float64()*80,
		date, hour, minute,
		sat, confidence,
		280+rng.Float64()*20,
		rng.Float64()*25,
		daynight)
}

func writeFile(path, data string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(data), 0o600)
}
