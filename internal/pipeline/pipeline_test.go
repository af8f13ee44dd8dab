package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jillmpla/south-carolina-fires/internal/domain"
	"github.com/jillmpla/south-carolina-fires/internal/feed"
	"github.com/jillmpla/south-carolina-fires/internal/observability"
	"github.com/jillmpla/south-carolina-fires/internal/pipeline"
	"github.com/jillmpla/south-carolina-fires/internal/store"
)

// --- fixtures and mocks ---

const feedHeader = "latitude,longitude,bright_ti4,acq_date,acq_time,satellite,instrument,confidence,version,bright_ti5,frp,daynight"

// Three rows: inside the region, outside it, and with a non-numeric latitude.
const mixedPayload = feedHeader + "\n" +
	"34.1,-81.2,330.5,2024-04-26,0134,N,VIIRS,n,2.0NRT,290.1,12.3,N\n" +
	"33.7,-84.4,330.5,2024-04-26,0134,N,VIIRS,n,2.0NRT,290.1,12.3,N\n" +
	"oops,-81.2,330.5,2024-04-26,0134,N,VIIRS,n,2.0NRT,290.1,12.3,N\n"

const validPayload = feedHeader + "\n" +
	"34.1,-81.2,330.5,2024-04-26,0134,N,VIIRS,n,2.0NRT,290.1,12.3,N\n"

// scBox accepts points roughly inside South Carolina.
type scBox struct{}

func (scBox) Contains(lat, lon float64) bool {
	return lat >= 32 && lat <= 35.3 && lon >= -83.4 && lon <= -78.5
}

type mockFetcher struct {
	mu       sync.Mutex
	payloads map[string]string
	errs     map[string]error
	calls    []string
}

func (m *mockFetcher) FetchProduct(_ context.Context, product string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, product)
	m.mu.Unlock()
	if err := m.errs[product]; err != nil {
		return "", err
	}
	return m.payloads[product], nil
}

type mockPublisher struct {
	mu        sync.Mutex
	published [][]domain.Detection
	err       error
}

func (m *mockPublisher) PublishDetections(_ context.Context, records []domain.Detection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, records)
	return m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "fires.db"), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestPipeline(t *testing.T, products []string, retention time.Duration, fetcher pipeline.Fetcher, s *store.Store, pub pipeline.Publisher, clock clockwork.Clock) *pipeline.Pipeline {
	t.Helper()
	parser := feed.NewParser(scBox{}, discardLogger())
	return pipeline.New(products, retention, fetcher, parser, s, pub,
		discardLogger(), observability.NewMetricsForTesting(), clock)
}

// --- tests ---

func TestRunCycle_MixedRows(t *testing.T) {
	s := openTestStore(t)
	fetcher := &mockFetcher{payloads: map[string]string{"VIIRS_SNPP_NRT": mixedPayload}}
	p := newTestPipeline(t, []string{"VIIRS_SNPP_NRT"}, 0, fetcher, s, nil, clockwork.NewRealClock())

	stats, err := p.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Fetched)
	assert.Equal(t, 1, stats.Kept)
	assert.Equal(t, 1, stats.Deduped)
	assert.Equal(t, 1, stats.Inserted)
	assert.Zero(t, stats.Failed)

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestRunCycle_SecondCycleInsertsNothing(t *testing.T) {
	s := openTestStore(t)
	fetcher := &mockFetcher{payloads: map[string]string{"VIIRS_SNPP_NRT": validPayload}}
	p := newTestPipeline(t, []string{"VIIRS_SNPP_NRT"}, 0, fetcher, s, nil, clockwork.NewRealClock())

	first, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Inserted)

	second, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.Fetched)
	assert.Zero(t, second.Inserted)

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestRunCycle_CrossProductDedupe(t *testing.T) {
	// Both products report the same physical detection.
	s := openTestStore(t)
	fetcher := &mockFetcher{payloads: map[string]string{
		"VIIRS_SNPP_NRT":   validPayload,
		"VIIRS_NOAA20_NRT": validPayload,
	}}
	p := newTestPipeline(t, []string{"VIIRS_SNPP_NRT", "VIIRS_NOAA20_NRT"}, 0, fetcher, s, nil, clockwork.NewRealClock())

	stats, err := p.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Fetched)
	assert.Equal(t, 2, stats.Kept)
	assert.Equal(t, 1, stats.Deduped)
	assert.Equal(t, 1, stats.Inserted)
}

func TestRunCycle_ProductFailureIsIsolated(t *testing.T) {
	s := openTestStore(t)
	fetcher := &mockFetcher{
		payloads: map[string]string{"VIIRS_NOAA20_NRT": validPayload},
		errs:     map[string]error{"VIIRS_SNPP_NRT": errors.New("upstream 503")},
	}
	p := newTestPipeline(t, []string{"VIIRS_SNPP_NRT", "VIIRS_NOAA20_NRT"}, 0, fetcher, s, nil, clockwork.NewRealClock())

	stats, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Inserted)
	assert.Len(t, fetcher.calls, 2)
}

func TestRunCycle_UnrecognizedPayloadIsIsolated(t *testing.T) {
	s := openTestStore(t)
	fetcher := &mockFetcher{payloads: map[string]string{
		"VIIRS_SNPP_NRT":   "<html>maintenance</html>",
		"VIIRS_NOAA20_NRT": validPayload,
	}}
	p := newTestPipeline(t, []string{"VIIRS_SNPP_NRT", "VIIRS_NOAA20_NRT"}, 0, fetcher, s, nil, clockwork.NewRealClock())

	stats, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Fetched)
	assert.Equal(t, 1, stats.Inserted)
}

func TestRunCycle_AllProductsFailStillCompletes(t *testing.T) {
	s := openTestStore(t)
	fetcher := &mockFetcher{errs: map[string]error{
		"VIIRS_SNPP_NRT":   errors.New("timeout"),
		"VIIRS_NOAA20_NRT": errors.New("timeout"),
	}}
	p := newTestPipeline(t, []string{"VIIRS_SNPP_NRT", "VIIRS_NOAA20_NRT"}, 0, fetcher, s, nil, clockwork.NewRealClock())

	stats, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Fetched)
	assert.Zero(t, stats.Inserted)

	// The cycle completed, so the service still reports ready.
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestRunCycle_RetentionSweep(t *testing.T) {
	s := openTestStore(t)

	// Seed an old detection directly.
	old := domain.Detection{
		Latitude: 34.2, Longitude: -81.0, Confidence: "n",
		AcqDate: "2024-04-20", AcqTime: "0134", Satellite: "N", DayNight: domain.Nighttime,
		AcqTS: domain.BuildAcqTimestamp("2024-04-20", "0134"),
	}
	inserted, _ := s.InsertDetections(context.Background(), []domain.Detection{old})
	require.Equal(t, 1, inserted)

	clock := clockwork.NewFakeClockAt(time.Date(2024, 4, 26, 19, 0, 0, 0, time.UTC))
	fetcher := &mockFetcher{payloads: map[string]string{"VIIRS_SNPP_NRT": validPayload}}
	p := newTestPipeline(t, []string{"VIIRS_SNPP_NRT"}, 72*time.Hour, fetcher, s, nil, clock)

	stats, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Purged)
	assert.Equal(t, 1, stats.Inserted)

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestRunCycle_PublishesDedupedBatch(t *testing.T) {
	s := openTestStore(t)
	pub := &mockPublisher{}
	fetcher := &mockFetcher{payloads: map[string]string{"VIIRS_SNPP_NRT": validPayload}}
	p := newTestPipeline(t, []string{"VIIRS_SNPP_NRT"}, 0, fetcher, s, pub, clockwork.NewRealClock())

	_, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, pub.published, 1)
	require.Len(t, pub.published[0], 1)
	assert.Equal(t, 34.1, pub.published[0][0].Latitude)
}

func TestRunCycle_PublishFailureDoesNotFailCycle(t *testing.T) {
	s := openTestStore(t)
	pub := &mockPublisher{err: errors.New("broker down")}
	fetcher := &mockFetcher{payloads: map[string]string{"VIIRS_SNPP_NRT": validPayload}}
	p := newTestPipeline(t, []string{"VIIRS_SNPP_NRT"}, 0, fetcher, s, pub, clockwork.NewRealClock())

	stats, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Inserted)
}

func TestCheckReadiness_BeforeFirstCycle(t *testing.T) {
	s := openTestStore(t)
	fetcher := &mockFetcher{}
	p := newTestPipeline(t, nil, 0, fetcher, s, nil, clockwork.NewRealClock())

	assert.Error(t, p.CheckReadiness(context.Background()))
}
