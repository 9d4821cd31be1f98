package service

import (
	"fmt"
	"time"

	"github.com/Energy-Exe/energyexe-core-backend/internal/models"
)

// Span is the [Start, End) range of one batch unit.
type Span struct {
	Start time.Time
	End   time.Time
}

// SplitUnits cuts [start, end) into whole UTC days or months. start is
// truncated to the unit boundary; the last unit may extend past end so every
// unit is whole.
func SplitUnits(start, end time.Time, g models.Granularity) ([]Span, error) {
	start, end = start.UTC(), end.UTC()
	if !end.After(start) {
		return nil, fmt.Errorf("%w: %s..%s", models.ErrInvalidRange,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	var (
		cur  time.Time
		next func(time.Time) time.Time
	)
	switch g {
	case models.GranularityDay, "":
		cur = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
		next = func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }
	case models.GranularityMonth:
		cur = time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
		next = func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }
	default:
		return nil, fmt.Errorf("unsupported granularity %q", g)
	}

	var spans []Span
	for cur.Before(end) {
		n := next(cur)
		spans = append(spans, Span{Start: cur, End: n})
		cur = n
	}
	return spans, nil
}

// DefaultGranularity returns month for monthly sources and day otherwise.
func DefaultGranularity(bucket models.Granularity) models.Granularity {
	if bucket == models.GranularityMonth {
		return models.GranularityMonth
	}
	return models.GranularityDay
}
