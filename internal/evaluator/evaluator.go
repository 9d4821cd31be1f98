// Package evaluator attaches capacity, capacity factor and quality to
// combined buckets and produces the harmonized records.
package evaluator

import (
	"time"

	"github.com/Energy-Exe/energyexe-core-backend/internal/combiner"
	"github.com/Energy-Exe/energyexe-core-backend/internal/models"
	"github.com/Energy-Exe/energyexe-core-backend/internal/settlement"

	"github.com/shopspring/decimal"
)

const (
	// HoursPerMonth is the fixed month length used for monthly capacity factors.
	HoursPerMonth = 730
	// cfPlaces matches the NUMERIC(5,4) storage of capacity factors.
	cfPlaces = 4
)

// DefaultCFCeiling is the largest capacity factor the store can hold.
var DefaultCFCeiling = decimal.RequireFromString("9.9999")

// Policy configures one evaluation.
type Policy struct {
	// TrustRawCapacity prefers per-record capacity over the phase capacity.
	TrustRawCapacity bool
	// CFCeiling bounds |capacity factor|. Zero means DefaultCFCeiling.
	CFCeiling decimal.Decimal
	// Bucket is hour or month.
	Bucket models.Granularity
}

// Evaluator turns combined buckets into harmonized records.
type Evaluator struct {
	policy Policy
}

// New creates an evaluator.
func New(policy Policy) *Evaluator {
	if policy.CFCeiling.IsZero() {
		policy.CFCeiling = DefaultCFCeiling
	}
	if policy.Bucket == "" {
		policy.Bucket = models.GranularityHour
	}
	return &Evaluator{policy: policy}
}

// BucketHours returns the hour count used in capacity factor denominators.
func (e *Evaluator) BucketHours() int64 {
	if e.policy.Bucket == models.GranularityMonth {
		return HoursPerMonth
	}
	return 1
}

// Evaluate builds the harmonized record for b.
func (e *Evaluator) Evaluate(b combiner.Bucket) models.HarmonizedRecord {
	total := b.Total()
	rec := models.HarmonizedRecord{
		BucketStart:      b.Start.UTC(),
		Identifier:       b.Identifier,
		Source:           b.Source,
		SourceResolution: b.Resolution,
		MeteredEnergy:    b.Metered,
		CurtailedEnergy:  b.Curtailed,
		TotalEnergy:      total,
		RawCapacityMW:    b.RawCapacityMW,
		DataPoints:       b.DataPoints,
		ExpectedPoints:   b.ExpectedPoints,
		ProvenanceIDs:    b.ProvenanceIDs,
		LowConfidence:    b.LowConfidence,
	}
	if b.Phase != nil {
		id := b.Phase.ID
		rec.PhaseID = &id
		rec.ParentAssetID = b.Phase.ParentAssetID
	}

	rec.CapacityMWSnapshot = e.capacity(b)
	rec.CapacityFactor = CapacityFactor(total, rec.CapacityMWSnapshot, e.BucketHours(), e.policy.CFCeiling)

	if b.RawCF != nil {
		cf := Clamp(b.RawCF.Round(cfPlaces), e.policy.CFCeiling)
		rec.RawCapacityFactor = &cf
	} else {
		rec.RawCapacityFactor = CapacityFactor(total, b.RawCapacityMW, e.BucketHours(), e.policy.CFCeiling)
	}

	rec.QualityScore, rec.Completeness = QualityScore(b.DataPoints, b.ExpectedPoints)
	rec.QualityFlag = FlagFor(rec.QualityScore)
	rec.AssignID()
	return rec
}

// capacity is unknown for unmatched buckets, since the asset was not in an
// operational phase.
func (e *Evaluator) capacity(b combiner.Bucket) *decimal.Decimal {
	if b.Phase == nil {
		return nil
	}
	if e.policy.TrustRawCapacity && b.RawCapacityMW != nil && b.RawCapacityMW.IsPositive() {
		c := *b.RawCapacityMW
		return &c
	}
	if b.Phase.CapacityMW != nil && b.Phase.CapacityMW.IsPositive() {
		c := *b.Phase.CapacityMW
		return &c
	}
	return nil
}

// CapacityFactor returns energy / (capacity * hours) rounded to four places
// and clamped to ±ceiling. A nil or non-positive capacity yields nil.
func CapacityFactor(energy decimal.Decimal, capacity *decimal.Decimal, hours int64, ceiling decimal.Decimal) *decimal.Decimal {
	if capacity == nil || !capacity.IsPositive() || hours <= 0 {
		return nil
	}
	cf := energy.Div(capacity.Mul(decimal.NewFromInt(hours))).Round(cfPlaces)
	cf = Clamp(cf, ceiling)
	return &cf
}

// Clamp bounds v to [-ceiling, ceiling].
func Clamp(v, ceiling decimal.Decimal) decimal.Decimal {
	if v.GreaterThan(ceiling) {
		return ceiling
	}
	if v.LessThan(ceiling.Neg()) {
		return ceiling.Neg()
	}
	return v
}

var (
	one        = decimal.NewFromInt(1)
	scoreHigh  = decimal.RequireFromString("0.8")
	scoreHalf  = decimal.RequireFromString("0.5")
	flagHigh   = decimal.RequireFromString("0.9")
	flagMedium = decimal.RequireFromString("0.7")
)

// QualityScore maps observed/expected sample counts to a score and a
// completeness ratio. Full coverage scores 1.0; at least 80% scores 0.8; at
// least half scores 0.5; below that the ratio itself is the score.
func QualityScore(points, expected int) (score, completeness decimal.Decimal) {
	if expected <= 0 {
		return decimal.Zero, decimal.Zero
	}
	ratio := decimal.NewFromInt(int64(points)).Div(decimal.NewFromInt(int64(expected)))
	completeness = decimal.Min(ratio, one).Round(cfPlaces)

	switch {
	case ratio.GreaterThanOrEqual(one):
		score = one
	case ratio.GreaterThanOrEqual(scoreHigh):
		score = scoreHigh
	case ratio.GreaterThanOrEqual(scoreHalf):
		score = scoreHalf
	default:
		score = ratio.Round(cfPlaces)
	}
	return score, completeness
}

// FlagFor bands a quality score.
func FlagFor(score decimal.Decimal) models.QualityFlag {
	switch {
	case score.GreaterThanOrEqual(flagHigh):
		return models.QualityHigh
	case score.GreaterThanOrEqual(flagMedium):
		return models.QualityMedium
	case score.GreaterThanOrEqual(scoreHalf):
		return models.QualityLow
	default:
		return models.QualityPoor
	}
}

// ExpectedLocalPeriods is the number of settlement periods in a local day;
// 46, 48 or 50 for half-hourly markets.
func ExpectedLocalPeriods(date time.Time, loc *time.Location, period time.Duration) int {
	return settlement.PeriodsInLocalDay(date, loc, period)
}

// DayCompleteness is observed distinct periods over the local day's expected
// periods, capped at 1.
func DayCompleteness(observed int, date time.Time, loc *time.Location, period time.Duration) float64 {
	expected := ExpectedLocalPeriods(date, loc, period)
	if expected == 0 {
		return 0
	}
	c := float64(observed) / float64(expected)
	if c > 1 {
		return 1
	}
	return c
}
