package normalizer

import (
	"strconv"
	"strings"
	"time"

	"github.com/Energy-Exe/energyexe-core-backend/internal/models"
)

// monthlyNormalizer handles monthly totals (ENERGISTYRELSEN, EIA). The month
// is taken from the reported year/month fields; the stored period start was
// written in the publisher's local time by older importers.
type monthlyNormalizer struct {
	base
}

func (n *monthlyNormalizer) Normalize(obs models.RawObservation) (models.CanonicalObservation, error) {
	c, err := n.start(obs)
	if err != nil {
		return c, err
	}
	c.Resolution = models.P1M

	if obs.Unit == "kWh" {
		c.Value = c.Value.Shift(-3)
	}
	c.Value = applySign(c.Value, obs.Sign)

	year, month, ok := reportedMonth(obs.Metadata)
	if !ok {
		if err := n.fallback(obs, &c, "year/month"); err != nil {
			return c, err
		}
		// the stored instant is interpreted on the publisher's calendar
		local := obs.PeriodStart.In(n.loc)
		year, month = local.Year(), local.Month()
	}

	c.PeriodStartUTC = time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	c.PeriodEndUTC = c.PeriodStartUTC.AddDate(0, 1, 0)
	n.finish(&c)
	return c, nil
}

// reportedMonth reads year/month from "month" ("2024-03", "2024-03-01") or
// from separate "year" and "month" fields (number or English name).
func reportedMonth(m models.Metadata) (int, time.Month, bool) {
	raw, hasMonth := m.String("month")
	if hasMonth && len(raw) >= 7 && raw[4] == '-' {
		if t, err := time.Parse("2006-01", raw[:7]); err == nil {
			return t.Year(), t.Month(), true
		}
	}

	year, ok := m.Int("year")
	if !ok || year < 1900 || !hasMonth {
		return 0, 0, false
	}
	if n, err := strconv.Atoi(raw); err == nil {
		if n < 1 || n > 12 {
			return 0, 0, false
		}
		return year, time.Month(n), true
	}
	for mo := time.January; mo <= time.December; mo++ {
		name := mo.String()
		if strings.EqualFold(raw, name) || strings.EqualFold(raw, name[:3]) {
			return year, mo, true
		}
	}
	return 0, 0, false
}
