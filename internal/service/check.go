package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Energy-Exe/energyexe-core-backend/internal/evaluator"
	"github.com/Energy-Exe/energyexe-core-backend/internal/models"
	"github.com/Energy-Exe/energyexe-core-backend/internal/normalizer"
	"github.com/Energy-Exe/energyexe-core-backend/internal/repository"
	"github.com/Energy-Exe/energyexe-core-backend/internal/settlement"

	"go.uber.org/zap"
)

// RawInspector answers availability questions about stored raw data.
type RawInspector interface {
	Availability(ctx context.Context, source models.Source, start, end time.Time) ([]repository.SourceAvailability, error)
	SettlementPeriods(ctx context.Context, source models.Source, date time.Time) (map[string]int, error)
}

// PeriodCoverage is the settlement-period coverage of one identifier on a
// local day.
type PeriodCoverage struct {
	Identifier   string  `json:"identifier"`
	Observed     int     `json:"observed"`
	Expected     int     `json:"expected"`
	Completeness float64 `json:"completeness"`
}

// SourceCheck is the availability of one source on one day.
type SourceCheck struct {
	Source       models.Source                   `json:"source"`
	Date         string                          `json:"date"`
	Availability []repository.SourceAvailability `json:"availability"`
	Coverage     []PeriodCoverage                `json:"coverage,omitempty"`
}

// Checker reports raw data availability per source.
type Checker struct {
	raw         RawInspector
	normalizers *normalizer.Registry
	logger      *zap.Logger
}

func NewChecker(raw RawInspector, normalizers *normalizer.Registry, logger *zap.Logger) *Checker {
	return &Checker{raw: raw, normalizers: normalizers, logger: logger}
}

// Check inspects the UTC day (or month for monthly sources) containing date.
// Sources with half-hourly local settlement periods also get per-identifier
// coverage against the 46, 48 or 50 periods of the local day.
func (c *Checker) Check(ctx context.Context, source models.Source, date time.Time) (SourceCheck, error) {
	n, err := c.normalizers.Get(source)
	if err != nil {
		return SourceCheck{}, err
	}
	prof := n.Profile()

	spans, err := SplitUnits(date, date.Add(time.Nanosecond), DefaultGranularity(prof.Bucket))
	if err != nil {
		return SourceCheck{}, err
	}
	span := spans[0]

	avail, err := c.raw.Availability(ctx, source, span.Start, span.End)
	if err != nil {
		return SourceCheck{}, fmt.Errorf("failed to check %s: %w", source, err)
	}
	out := SourceCheck{
		Source:       source,
		Date:         span.Start.Format("2006-01-02"),
		Availability: avail,
	}

	if !prof.LocalCalendar || prof.Resolution != models.PT30M {
		return out, nil
	}
	loc, err := time.LoadLocation(prof.Timezone)
	if err != nil {
		return out, fmt.Errorf("failed to load timezone %s: %w", prof.Timezone, err)
	}
	counts, err := c.raw.SettlementPeriods(ctx, source, span.Start)
	if err != nil {
		return out, fmt.Errorf("failed to count settlement periods for %s: %w", source, err)
	}
	expected := evaluator.ExpectedLocalPeriods(span.Start, loc, settlement.DefaultPeriod)
	for id, observed := range counts {
		out.Coverage = append(out.Coverage, PeriodCoverage{
			Identifier:   id,
			Observed:     observed,
			Expected:     expected,
			Completeness: evaluator.DayCompleteness(observed, span.Start, loc, settlement.DefaultPeriod),
		})
	}
	sort.Slice(out.Coverage, func(i, j int) bool { return out.Coverage[i].Identifier < out.Coverage[j].Identifier })

	c.logger.Debug("Checked raw availability",
		zap.String("source", string(source)),
		zap.String("date", out.Date),
		zap.Int("expected_periods", expected),
		zap.Int("identifiers", len(out.Coverage)),
	)
	return out, nil
}

// CheckAll runs Check for every registered source.
func (c *Checker) CheckAll(ctx context.Context, date time.Time) ([]SourceCheck, error) {
	var out []SourceCheck
	for _, src := range c.normalizers.Sources() {
		sc, err := c.Check(ctx, src, date)
		if err != nil {
			return out, err
		}
		out = append(out, sc)
	}
	return out, nil
}
