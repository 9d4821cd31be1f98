// Package settlement maps local-calendar settlement periods onto UTC.
//
// A settlement day is a local civil day split into fixed-length periods
// numbered from 1. Across daylight-saving transitions the day is shorter or
// longer, so a 30-minute market has 46, 48 or 50 periods.
package settlement

import (
	"fmt"
	"strings"
	"time"
)

// DefaultPeriod is the settlement period length used by half-hourly markets.
const DefaultPeriod = 30 * time.Minute

var dateLayouts = []string{
	"2006-01-02",
	"20060102",
	"2006/01/02",
}

// ParseSettlementDate parses a civil date. Timestamps are accepted and
// truncated to their date part as written.
func ParseSettlementDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > 10 && (s[10] == 'T' || s[10] == ' ') {
		s = s[:10]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid settlement date %q", s)
}

// LocalDayBoundsUTC returns the UTC instants of local midnight at the start
// of date and of the following day in loc.
func LocalDayBoundsUTC(date time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, d := date.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	end := time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	return start.UTC(), end.UTC()
}

// PeriodsInLocalDay returns how many periods of length periodLen the local
// day contains.
func PeriodsInLocalDay(date time.Time, loc *time.Location, periodLen time.Duration) int {
	start, end := LocalDayBoundsUTC(date, loc)
	return int(end.Sub(start) / periodLen)
}

// PeriodStartUTC returns the UTC start of the given 1-based period of the
// local day. Periods run back to back from local midnight, so the clock
// change is absorbed by the elapsed-time arithmetic rather than by local
// wall-clock labels.
func PeriodStartUTC(date time.Time, period int, loc *time.Location, periodLen time.Duration) (time.Time, error) {
	n := PeriodsInLocalDay(date, loc, periodLen)
	if period < 1 || period > n {
		return time.Time{}, fmt.Errorf("settlement period %d out of range 1..%d for %s in %s",
			period, n, date.Format("2006-01-02"), loc)
	}
	start, _ := LocalDayBoundsUTC(date, loc)
	return start.Add(time.Duration(period-1) * periodLen), nil
}

// MonthStartUTC returns midnight UTC on the first day of the month containing t.
func MonthStartUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// HourStartUTC truncates t to the UTC hour.
func HourStartUTC(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}
