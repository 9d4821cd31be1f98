package settlement

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func london(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)
	return loc
}

func mustDate(t *testing.T, s string) time.Time {
	d, err := ParseSettlementDate(s)
	require.NoError(t, err)
	return d
}

func TestPeriodStartUTC_London(t *testing.T) {
	loc := london(t)

	cases := []struct {
		date   string
		period int
		want   string
	}{
		{"2024-06-15", 1, "2024-06-14T23:00:00Z"},
		{"2024-06-15", 48, "2024-06-15T22:30:00Z"},
		{"2024-01-15", 1, "2024-01-15T00:00:00Z"},
		{"2024-01-15", 48, "2024-01-15T23:30:00Z"},
		{"2024-03-31", 1, "2024-03-31T00:00:00Z"},
		{"2024-03-31", 46, "2024-03-31T22:30:00Z"},
		{"2024-10-27", 1, "2024-10-26T23:00:00Z"},
		{"2024-10-27", 5, "2024-10-27T01:00:00Z"},
		{"2024-10-27", 6, "2024-10-27T01:30:00Z"},
		{"2024-10-27", 50, "2024-10-27T23:30:00Z"},
	}

	for _, tc := range cases {
		got, err := PeriodStartUTC(mustDate(t, tc.date), tc.period, loc, DefaultPeriod)
		require.NoError(t, err, "%s period %d", tc.date, tc.period)
		assert.Equal(t, tc.want, got.Format(time.RFC3339), "%s period %d", tc.date, tc.period)
	}
}

func TestPeriodsInLocalDay(t *testing.T) {
	loc := london(t)
	assert.Equal(t, 46, PeriodsInLocalDay(mustDate(t, "2024-03-31"), loc, DefaultPeriod))
	assert.Equal(t, 48, PeriodsInLocalDay(mustDate(t, "2024-06-15"), loc, DefaultPeriod))
	assert.Equal(t, 50, PeriodsInLocalDay(mustDate(t, "2024-10-27"), loc, DefaultPeriod))
	assert.Equal(t, 48, PeriodsInLocalDay(mustDate(t, "2024-10-27"), time.UTC, DefaultPeriod))
}

func TestPeriodStartUTC_OutOfRange(t *testing.T) {
	loc := london(t)

	_, err := PeriodStartUTC(mustDate(t, "2024-03-31"), 47, loc, DefaultPeriod)
	assert.Error(t, err)
	_, err = PeriodStartUTC(mustDate(t, "2024-06-15"), 0, loc, DefaultPeriod)
	assert.Error(t, err)

	_, err = PeriodStartUTC(mustDate(t, "2024-10-27"), 49, loc, DefaultPeriod)
	assert.NoError(t, err)
}

func TestTransitionDaysCoverTwentyFourUTCHours(t *testing.T) {
	loc := london(t)

	for _, day := range []string{"2024-03-31", "2024-10-27"} {
		date := mustDate(t, day)
		n := PeriodsInLocalDay(date, loc, DefaultPeriod)

		hours := make(map[time.Time]int)
		var prev time.Time
		for p := 1; p <= n; p++ {
			ts, err := PeriodStartUTC(date, p, loc, DefaultPeriod)
			require.NoError(t, err)
			if p > 1 {
				assert.Equal(t, DefaultPeriod, ts.Sub(prev), "%s period %d", day, p)
			}
			prev = ts
			hours[HourStartUTC(ts)]++
		}

		switch day {
		case "2024-03-31":
			assert.Len(t, hours, 23, "spring-forward local day spans 23 UTC hours")
		case "2024-10-27":
			assert.Len(t, hours, 25, "fall-back local day spans 25 UTC hours")
		}
		for h, c := range hours {
			assert.Equal(t, 2, c, "hour %s", h)
		}
	}
}

func TestParseSettlementDate(t *testing.T) {
	for _, s := range []string{"2024-10-27", "20241027", "2024/10/27", "2024-10-27T00:00:00", "2024-10-27 00:00:00+00"} {
		d, err := ParseSettlementDate(s)
		require.NoError(t, err, s)
		assert.Equal(t, "2024-10-27", d.Format("2006-01-02"), s)
	}
	_, err := ParseSettlementDate("27/10/2024")
	assert.Error(t, err)
}
