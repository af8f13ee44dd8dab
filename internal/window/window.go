// Package window decides which stored detections a read request should see
// and how long intermediaries may cache the response.
//
// Two policies are supported. When a client asks for a rolling lookback
// (hours), the window reaches back that far from the current instant. With
// no lookback, the window is the current operational day: a day boundary
// anchored at a fixed UTC hour matching the daily ingestion cadence, so a
// request before the anchor hour belongs to the previous operational day.
package window

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// Clamping bounds for request parameters.
const (
	MinLookbackHours = 1
	MaxLookbackHours = 24 * 30
	DefaultLimit     = 500
	MaxLimit         = 5000
)

// Config fixes the daily anchor hour.
type Config struct {
	RolloverHourUTC int
}

// Resolved describes the window applied to one request.
type Resolved struct {
	Since       time.Time
	Limit       int
	Description string // e.g. "48h" or "op-day-from-2024-04-26T19:00:00Z"
	Rolling     bool
}

// Window computes serving windows and cache deadlines against an injected
// clock.
type Window struct {
	cfg   Config
	clock clockwork.Clock
}

// New creates a Window. Pass clockwork.NewRealClock() outside tests.
func New(cfg Config, clock clockwork.Clock) *Window {
	return &Window{cfg: cfg, clock: clock}
}

// Resolve picks the window for a request. hours and limit are nil when the
// client did not send them; both are clamped to their configured bounds.
func (w *Window) Resolve(hours, limit *int) Resolved {
	now := w.clock.Now().UTC()

	r := Resolved{Limit: DefaultLimit}
	if limit != nil {
		r.Limit = clamp(*limit, 1, MaxLimit)
	}

	if hours != nil {
		h := clamp(*hours, MinLookbackHours, MaxLookbackHours)
		r.Since = now.Add(-time.Duration(h) * time.Hour)
		r.Description = fmt.Sprintf("%dh", h)
		r.Rolling = true
		return r
	}

	r.Since = w.OperationalDayStart(now)
	r.Description = "op-day-from-" + r.Since.Format(time.RFC3339)
	return r
}

// RolloverHourUTC returns the configured daily anchor hour.
func (w *Window) RolloverHourUTC() int {
	return w.cfg.RolloverHourUTC
}

// OperationalDayStart returns the most recent anchor-hour boundary at or
// before now. Before the anchor hour, that boundary lies on the previous
// calendar day.
func (w *Window) OperationalDayStart(now time.Time) time.Time {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), w.cfg.RolloverHourUTC, 0, 0, 0, time.UTC)
	if now.Before(start) {
		start = start.AddDate(0, 0, -1)
	}
	return start
}

// CacheDeadline returns the next anchor-hour boundary and the time remaining
// until it. Responses may be cached until then, because stored data only
// changes when the scheduled ingestion at the anchor hour runs.
func (w *Window) CacheDeadline() (time.Time, time.Duration) {
	now := w.clock.Now().UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), w.cfg.RolloverHourUTC, 0, 0, 0, time.UTC)
	if !now.Before(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next, next.Sub(now)
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
