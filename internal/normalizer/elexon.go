package normalizer

import (
	"fmt"
	"strings"

	"github.com/Energy-Exe/energyexe-core-backend/internal/models"
	"github.com/Energy-Exe/energyexe-core-backend/internal/settlement"
)

// elexonNormalizer handles ELEXON half-hourly settlement data. The stored UTC
// period is ignored when settlement date and period are present, because
// historical imports encoded BST periods an hour late.
type elexonNormalizer struct {
	base
}

func (n *elexonNormalizer) Normalize(obs models.RawObservation) (models.CanonicalObservation, error) {
	c, err := n.start(obs)
	if err != nil {
		return c, err
	}
	c.Resolution = models.PT30M

	sign := obs.Sign
	switch ind, _ := obs.Metadata.String("import_export_ind"); strings.ToUpper(ind) {
	case "I":
		sign = models.SignImport
	case "E":
		sign = models.SignExport
	}

	if isCurtailment(obs) {
		// accepted bid volumes are reductions; the curtailed energy is their magnitude
		c.Measure = models.MeasureCurtailment
		c.Value = c.Value.Abs()
	} else {
		c.Value = applySign(c.Value, sign)
	}

	date, hasDate := obs.Metadata.String("settlement_date")
	period, hasPeriod := obs.Metadata.Int("settlement_period")
	if !hasDate || !hasPeriod {
		missing := "settlement_date"
		if hasDate {
			missing = "settlement_period"
		}
		if err := n.fallback(obs, &c, missing); err != nil {
			return c, err
		}
		n.finish(&c)
		return c, nil
	}

	day, err := settlement.ParseSettlementDate(date)
	if err != nil {
		return c, fmt.Errorf("raw id %d: %w", obs.ID, err)
	}
	start, err := settlement.PeriodStartUTC(day, period, n.loc, settlement.DefaultPeriod)
	if err != nil {
		return c, fmt.Errorf("raw id %d: %w", obs.ID, err)
	}
	c.PeriodStartUTC = start
	c.PeriodEndUTC = start.Add(settlement.DefaultPeriod)

	n.finish(&c)
	return c, nil
}

func isCurtailment(obs models.RawObservation) bool {
	if obs.Measure == models.MeasureCurtailment {
		return true
	}
	for _, key := range []string{"record_type", "dataset"} {
		if v, ok := obs.Metadata.String(key); ok && strings.EqualFold(v, "BOAV") {
			return true
		}
	}
	return false
}
