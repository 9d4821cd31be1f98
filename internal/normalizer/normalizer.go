// Package normalizer converts raw per-source observations into the canonical
// shape consumed by the combiner. There is one Normalizer per source; the
// Registry selects it once per batch unit.
package normalizer

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/Energy-Exe/energyexe-core-backend/internal/models"
	"github.com/Energy-Exe/energyexe-core-backend/internal/settlement"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// FallbackPolicy decides what happens to a record whose local-calendar
// metadata is missing, so its UTC period cannot be recomputed.
type FallbackPolicy string

const (
	// FallbackTrust keeps the record using its stored UTC period, flagged low-confidence.
	FallbackTrust FallbackPolicy = "trust"
	// FallbackDrop discards the record.
	FallbackDrop FallbackPolicy = "drop"
)

// ParseFallbackPolicy validates a policy name.
func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch FallbackPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case FallbackTrust, "":
		return FallbackTrust, nil
	case FallbackDrop:
		return FallbackDrop, nil
	}
	return "", fmt.Errorf("unknown fallback policy %q", s)
}

// Profile describes a source's nominal conventions.
type Profile struct {
	Source     models.Source
	Resolution models.Resolution
	ValueKind  models.ValueKind
	Bucket     models.Granularity
	// Timezone is the IANA zone of the source's local calendar.
	Timezone string
	// LocalCalendar is set when periods are defined by local metadata rather
	// than by the stored UTC instant.
	LocalCalendar bool
	// FetchPadding widens the raw read window on both sides so records whose
	// stored UTC is off by the DST offset are still fetched.
	FetchPadding time.Duration
	// TrustRawCapacity lets per-record capacity override the phase capacity.
	TrustRawCapacity bool
}

// Normalizer converts one raw observation.
//
// Normalize returns models.ErrMissingValue for null readings and an error
// wrapping models.ErrMissingSettlement when the record is dropped by
// FallbackDrop. Any other error means the record is malformed.
type Normalizer interface {
	Profile() Profile
	Normalize(obs models.RawObservation) (models.CanonicalObservation, error)
}

// base holds what every source normalizer shares.
type base struct {
	profile Profile
	loc     *time.Location
	policy  FallbackPolicy
	logger  *zap.Logger
}

func newBase(p Profile, policy FallbackPolicy, logger *zap.Logger) (base, error) {
	loc := time.UTC
	if p.Timezone != "" {
		l, err := time.LoadLocation(p.Timezone)
		if err != nil {
			return base{}, fmt.Errorf("failed to load timezone %s for %s: %w", p.Timezone, p.Source, err)
		}
		loc = l
	}
	return base{
		profile: p,
		loc:     loc,
		policy:  policy,
		logger:  logger.With(zap.String("source", string(p.Source))),
	}, nil
}

func (b *base) Profile() Profile {
	return b.profile
}

// start fills the source-independent fields.
func (b *base) start(obs models.RawObservation) (models.CanonicalObservation, error) {
	if obs.Value == nil {
		return models.CanonicalObservation{}, fmt.Errorf("raw id %d: %w", obs.ID, models.ErrMissingValue)
	}
	c := models.CanonicalObservation{
		RawID:             obs.ID,
		Source:            b.profile.Source,
		OriginType:        obs.OriginType,
		Measure:           obs.Measure,
		Identifier:        obs.Identifier,
		SubUnit:           subUnit(obs),
		Resolution:        obs.Resolution,
		Value:             *obs.Value,
		ValueKind:         b.profile.ValueKind,
		RawCapacityMW:     obs.RawCapacityMW,
		RawCapacityFactor: obs.RawCapacityFactor,
	}
	if c.Measure == "" {
		c.Measure = models.MeasureGeneration
	}
	if c.Resolution == "" {
		c.Resolution = b.profile.Resolution
	}
	if c.RawCapacityMW == nil {
		if d, ok := obs.Metadata.Decimal("installed_capacity_mw"); ok {
			c.RawCapacityMW = d
		}
	}
	if c.RawCapacityFactor == nil {
		if d, ok := obs.Metadata.Decimal("capacity_factor"); ok {
			c.RawCapacityFactor = d
		}
	}
	return c, nil
}

// fallback applies the configured policy to a record that lacks local
// calendar metadata. The stored UTC period is kept when trusted.
func (b *base) fallback(obs models.RawObservation, c *models.CanonicalObservation, missing string) error {
	if b.policy == FallbackDrop {
		b.logger.Warn("Dropping record without local calendar metadata",
			zap.Int64("raw_id", obs.ID),
			zap.String("identifier", obs.Identifier),
			zap.String("missing", missing),
			zap.String("policy", string(b.policy)),
		)
		return fmt.Errorf("raw id %d (%s): %w", obs.ID, missing, models.ErrMissingSettlement)
	}

	b.logger.Warn("Using stored UTC period for record without local calendar metadata",
		zap.Int64("raw_id", obs.ID),
		zap.String("identifier", obs.Identifier),
		zap.String("missing", missing),
		zap.Time("stored_period_start", obs.PeriodStart),
		zap.String("policy", string(b.policy)),
	)
	c.LowConfidence = true
	c.PeriodStartUTC = obs.PeriodStart.UTC()
	c.PeriodEndUTC = obs.PeriodEnd.UTC()
	if c.PeriodEndUTC.IsZero() || !c.PeriodEndUTC.After(c.PeriodStartUTC) {
		c.PeriodEndUTC = c.PeriodStartUTC.Add(c.Resolution.Duration())
	}
	return nil
}

// storedPeriod uses the stored UTC period as authoritative.
func (b *base) storedPeriod(obs models.RawObservation, c *models.CanonicalObservation) {
	c.PeriodStartUTC = obs.PeriodStart.UTC()
	c.PeriodEndUTC = obs.PeriodEnd.UTC()
	if d := c.Resolution.Duration(); d > 0 && (c.PeriodEndUTC.IsZero() || !c.PeriodEndUTC.After(c.PeriodStartUTC)) {
		c.PeriodEndUTC = c.PeriodStartUTC.Add(d)
	}
}

// finish assigns the bucket according to the source's bucket granularity.
func (b *base) finish(c *models.CanonicalObservation) {
	if b.profile.Bucket == models.GranularityMonth {
		c.BucketStart = settlement.MonthStartUTC(c.PeriodStartUTC)
		return
	}
	c.BucketStart = settlement.HourStartUTC(c.PeriodStartUTC)
}

// applySign makes consumption-direction readings negative.
func applySign(v decimal.Decimal, sign models.Sign) decimal.Decimal {
	switch sign {
	case models.SignImport:
		return v.Abs().Neg()
	case models.SignExport:
		return v.Abs()
	}
	return v
}

// subUnit names a physical part of the asset. Spreadsheet positions such as
// "column" are provenance, not sub-units, and never enter the dedup key.
func subUnit(obs models.RawObservation) string {
	for _, key := range []string{"sub_unit", "unit_id"} {
		if s, ok := obs.Metadata.String(key); ok {
			return s
		}
	}
	return ""
}
