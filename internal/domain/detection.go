package domain

import (
	"strconv"
	"strings"
	"time"
)

// Day/night indicator values derived from the feed's D/N column.
const (
	Daytime   = "Daytime"
	Nighttime = "Nighttime"
	Unknown   = "Unknown"
)

// Detection is one satellite-observed thermal anomaly.
//
// Brightness, BrightTI5, and FRP are nil when the feed omits or mangles the
// column. AcqTS is nil when the acquisition date or time is malformed; such
// rows are stored but never matched by time-windowed queries.
type Detection struct {
	ID         int64      `json:"id,omitempty"`
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	Brightness *float64   `json:"brightness"`
	BrightTI5  *float64   `json:"bright_ti5,omitempty"`
	Confidence string     `json:"confidence"`
	AcqDate    string     `json:"acq_date"` // YYYY-MM-DD
	AcqTime    string     `json:"acq_time"` // HHMM, zero-padded
	Satellite  string     `json:"satellite"`
	Instrument string     `json:"instrument,omitempty"`
	Version    string     `json:"version,omitempty"`
	FRP        *float64   `json:"frp"`
	DayNight   string     `json:"daynight"`
	AcqTS      *time.Time `json:"acq_ts"`
}

// NaturalKey identifies the physical detection event. Two rows with the same
// key describe the same observation, regardless of which product reported it.
func (d Detection) NaturalKey() string {
	var b strings.Builder
	b.WriteString(d.AcqDate)
	b.WriteByte('|')
	b.WriteString(PadAcqTime(d.AcqTime))
	b.WriteByte('|')
	b.WriteString(strconv.FormatFloat(d.Latitude, 'f', -1, 64))
	b.WriteByte('|')
	b.WriteString(strconv.FormatFloat(d.Longitude, 'f', -1, 64))
	b.WriteByte('|')
	b.WriteString(d.Satellite)
	return b.String()
}

// PadAcqTime left-pads an acquisition time to the four-digit HHMM form,
// e.g. "134" -> "0134".
func PadAcqTime(t string) string {
	t = strings.TrimSpace(t)
	for len(t) < 4 {
		t = "0" + t
	}
	return t
}

// BuildAcqTimestamp combines an acquisition date and HHMM time into a UTC
// instant. Returns nil when either part is missing or malformed.
func BuildAcqTimestamp(dateStr, timeStr string) *time.Time {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" || strings.TrimSpace(timeStr) == "" {
		return nil
	}
	hhmm := PadAcqTime(timeStr)
	if len(hhmm) != 4 {
		return nil
	}

	day, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return nil
	}
	hour, errH := strconv.Atoi(hhmm[:2])
	mins, errM := strconv.Atoi(hhmm[2:])
	if errH != nil || errM != nil || hour < 0 || hour > 23 || mins < 0 || mins > 59 {
		return nil
	}

	ts := time.Date(day.Year(), day.Month(), day.Day(), hour, mins, 0, 0, time.UTC)
	return &ts
}
