package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jillmpla/south-carolina-fires/internal/domain"
	"github.com/jillmpla/south-carolina-fires/internal/feed"
	"github.com/jillmpla/south-carolina-fires/internal/observability"
)

// Fetcher retrieves one product's raw feed payload.
type Fetcher interface {
	FetchProduct(ctx context.Context, product string) (string, error)
}

// Parser converts a raw payload into geofiltered detections.
type Parser interface {
	Parse(raw string) ([]domain.Detection, feed.ParseStats, error)
}

// DetectionStore persists detections and owns retention.
type DetectionStore interface {
	InsertDetections(ctx context.Context, records []domain.Detection) (inserted, failed int)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Publisher forwards a cycle's detections to an external sink. Optional.
type Publisher interface {
	PublishDetections(ctx context.Context, records []domain.Detection) error
}

// CycleStats summarizes one ingestion cycle.
type CycleStats struct {
	Fetched  int   `json:"fetched"`  // feed rows seen across all products
	Kept     int   `json:"kept"`     // rows surviving coordinate checks and geofilter
	Deduped  int   `json:"deduped"`  // rows after natural-key dedupe
	Inserted int   `json:"inserted"` // newly inserted rows
	Failed   int   `json:"failed"`   // per-row insert failures
	Purged   int64 `json:"purged"`   // rows removed by the retention sweep
}

// Pipeline runs the fetch → parse → geofilter → dedupe → upsert cycle for a
// fixed set of feed products.
//
// Every step is failure-isolated: a product that cannot be fetched or parsed
// contributes zero rows, a row that cannot be inserted is counted and
// skipped, and a cycle with nothing to insert still completes. Only context
// cancellation aborts a cycle.
type Pipeline struct {
	products  []string
	retention time.Duration // 0 disables the purge step

	fetcher   Fetcher
	parser    Parser
	store     DetectionStore
	publisher Publisher // nil when publishing is disabled

	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
	ready   atomic.Bool
}

// New creates a Pipeline. Pass a nil publisher to disable publishing.
func New(products []string, retention time.Duration, fetcher Fetcher, parser Parser, store DetectionStore, publisher Publisher, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Pipeline {
	return &Pipeline{
		products:  products,
		retention: retention,
		fetcher:   fetcher,
		parser:    parser,
		store:     store,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		clock:     clock,
	}
}

// CheckReadiness returns nil once at least one cycle has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no ingestion cycle has completed yet")
	}
	return nil
}

// productResult carries one product's outcome; results are assembled in
// product order so dedupe sees a deterministic sequence.
type productResult struct {
	records []domain.Detection
	stats   feed.ParseStats
}

// RunCycle executes one full ingestion cycle. The returned error is non-nil
// only when the context is cancelled; all per-product and per-row failures
// are absorbed into the stats.
func (p *Pipeline) RunCycle(ctx context.Context) (CycleStats, error) {
	start := p.clock.Now()
	var stats CycleStats

	if p.retention > 0 {
		cutoff := start.Add(-p.retention)
		purged, err := p.store.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			// The sweep retries next cycle; stale rows are not a correctness problem.
			p.logger.Warn("retention sweep failed", "error", err)
		} else {
			stats.Purged = purged
			p.metrics.RowsPurged.Add(float64(purged))
		}
	}

	results := p.fetchAll(ctx)
	if ctx.Err() != nil {
		return stats, ctx.Err()
	}

	var combined []domain.Detection
	for _, r := range results {
		stats.Fetched += r.stats.Total
		stats.Kept += r.stats.Kept
		combined = append(combined, r.records...)
	}

	deduped := domain.Dedupe(combined)
	stats.Deduped = len(deduped)

	stats.Inserted, stats.Failed = p.store.InsertDetections(ctx, deduped)

	if p.publisher != nil && len(deduped) > 0 {
		if err := p.publisher.PublishDetections(ctx, deduped); err != nil {
			p.logger.Warn("publish detections failed", "error", err, "count", len(deduped))
		}
	}

	p.metrics.IngestCycles.Inc()
	p.metrics.RowsFetched.Add(float64(stats.Fetched))
	p.metrics.RowsKept.Add(float64(stats.Kept))
	p.metrics.RowsInserted.Add(float64(stats.Inserted))
	p.metrics.InsertErrors.Add(float64(stats.Failed))
	p.metrics.CycleDuration.Observe(p.clock.Since(start).Seconds())
	p.ready.Store(true)

	p.logger.Info("ingestion cycle complete",
		"fetched", stats.Fetched, "kept", stats.Kept, "deduped", stats.Deduped,
		"inserted", stats.Inserted, "failed", stats.Failed, "purged", stats.Purged)

	return stats, nil
}

// fetchAll fetches and parses every product concurrently. Each product's
// failure degrades to an empty result for that product only.
func (p *Pipeline) fetchAll(ctx context.Context) []productResult {
	results := make([]productResult, len(p.products))

	var wg sync.WaitGroup
	for i, product := range p.products {
		wg.Add(1)
		go func(i int, product string) {
			defer wg.Done()
			results[i] = p.fetchProduct(ctx, product)
		}(i, product)
	}
	wg.Wait()

	return results
}

func (p *Pipeline) fetchProduct(ctx context.Context, product string) productResult {
	fetchStart := p.clock.Now()
	raw, err := p.fetcher.FetchProduct(ctx, product)
	p.metrics.FetchDuration.WithLabelValues(product).Observe(p.clock.Since(fetchStart).Seconds())
	if err != nil {
		p.logger.Error("product fetch failed", "product", product, "error", err)
		p.metrics.FetchErrors.WithLabelValues(product).Inc()
		return productResult{}
	}

	records, pstats, err := p.parser.Parse(raw)
	if err != nil {
		p.logger.Error("product payload rejected", "product", product,
			"error", err, "body", feed.Snippet(raw))
		p.metrics.FetchErrors.WithLabelValues(product).Inc()
		return productResult{}
	}

	p.logger.Info("product parsed", "product", product,
		"total", pstats.Total, "kept", pstats.Kept,
		"bad_coord", pstats.BadCoord, "outside_region", pstats.OutsideRegion)

	return productResult{records: records, stats: pstats}
}
