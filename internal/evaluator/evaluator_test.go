package evaluator

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/Energy-Exe/energyexe-core-backend/internal/combiner"
	"github.com/Energy-Exe/energyexe-core-backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dp(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

func bucket(metered string, phase *models.AssetPhase) combiner.Bucket {
	return combiner.Bucket{
		Start:          time.Date(2008, 9, 1, 0, 0, 0, 0, time.UTC),
		Source:         models.SourceNVE,
		Identifier:     "20",
		Phase:          phase,
		Resolution:     models.PT60M,
		ValueKind:      models.KindEnergy,
		Metered:        decimal.RequireFromString(metered),
		HasGeneration:  true,
		DataPoints:     1,
		ExpectedPoints: 1,
		ProvenanceIDs:  []int64{42},
	}
}

func TestEvaluate_PhaseCapacityFactor(t *testing.T) {
	parent := int64(900)
	phase := &models.AssetPhase{ID: 2, Code: "20", CapacityMW: dp("150"), ParentAssetID: &parent}

	rec := New(Policy{}).Evaluate(bucket("53.5", phase))

	require.NotNil(t, rec.CapacityFactor)
	assert.Equal(t, "0.3567", rec.CapacityFactor.String())
	assert.Equal(t, "150", rec.CapacityMWSnapshot.String())
	require.NotNil(t, rec.PhaseID)
	assert.Equal(t, int64(2), *rec.PhaseID)
	assert.Equal(t, &parent, rec.ParentAssetID)
	assert.Equal(t, models.QualityHigh, rec.QualityFlag)
	assert.True(t, rec.QualityScore.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, []int64{42}, rec.ProvenanceIDs)
}

func TestEvaluate_UnmatchedHasNullCapacity(t *testing.T) {
	b := bucket("53.5", nil)
	b.RawCapacityMW = dp("150")

	rec := New(Policy{TrustRawCapacity: true}).Evaluate(b)
	assert.Nil(t, rec.PhaseID)
	assert.Nil(t, rec.CapacityMWSnapshot)
	assert.Nil(t, rec.CapacityFactor)
	assert.True(t, rec.TotalEnergy.Equal(decimal.RequireFromString("53.5")))
	require.NotNil(t, rec.RawCapacityFactor, "raw capacity factor is still derived from the reported capacity")
	assert.Equal(t, "0.3567", rec.RawCapacityFactor.String())
}

func TestEvaluate_MissingCapacityIsNullNotZero(t *testing.T) {
	rec := New(Policy{}).Evaluate(bucket("10", &models.AssetPhase{ID: 1}))
	assert.Nil(t, rec.CapacityMWSnapshot)
	assert.Nil(t, rec.CapacityFactor)

	rec = New(Policy{}).Evaluate(bucket("10", &models.AssetPhase{ID: 1, CapacityMW: dp("0")}))
	assert.Nil(t, rec.CapacityFactor)
}

func TestEvaluate_TrustedRawCapacityOverridesPhase(t *testing.T) {
	b := bucket("50", &models.AssetPhase{ID: 3, CapacityMW: dp("100")})
	b.RawCapacityMW = dp("200")
	b.RawCF = dp("0.251234")

	trusted := New(Policy{TrustRawCapacity: true}).Evaluate(b)
	assert.Equal(t, "200", trusted.CapacityMWSnapshot.String())
	assert.Equal(t, "0.25", trusted.CapacityFactor.String())
	assert.Equal(t, "0.2512", trusted.RawCapacityFactor.String())

	untrusted := New(Policy{}).Evaluate(b)
	assert.Equal(t, "100", untrusted.CapacityMWSnapshot.String())
	assert.Equal(t, "0.5", untrusted.CapacityFactor.String())
	assert.Equal(t, "200", untrusted.RawCapacityMW.String())
}

func TestEvaluate_CapacityFactorClamped(t *testing.T) {
	rec := New(Policy{}).Evaluate(bucket("2000", &models.AssetPhase{ID: 1, CapacityMW: dp("100")}))
	assert.Equal(t, "9.9999", rec.CapacityFactor.String())

	rec = New(Policy{}).Evaluate(bucket("-2000", &models.AssetPhase{ID: 1, CapacityMW: dp("100")}))
	assert.Equal(t, "-9.9999", rec.CapacityFactor.String())

	b := bucket("1", &models.AssetPhase{ID: 1, CapacityMW: dp("100")})
	b.RawCF = dp("45.2")
	rec = New(Policy{}).Evaluate(b)
	assert.Equal(t, "9.9999", rec.RawCapacityFactor.String())
}

func TestEvaluate_MonthlyUses730Hours(t *testing.T) {
	b := bucket("36500", &models.AssetPhase{ID: 1, CapacityMW: dp("100")})
	b.Resolution = models.P1M

	rec := New(Policy{Bucket: models.GranularityMonth}).Evaluate(b)
	assert.Equal(t, "0.5", rec.CapacityFactor.String())
	assert.Equal(t, models.P1M, rec.SourceResolution)
}

func TestEvaluate_CurtailmentInTotal(t *testing.T) {
	b := bucket("42", &models.AssetPhase{ID: 1, CapacityMW: dp("100")})
	b.Curtailed = dp("8")

	rec := New(Policy{}).Evaluate(b)
	assert.True(t, rec.TotalEnergy.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, "0.5", rec.CapacityFactor.String())
	assert.Equal(t, "8", rec.CurtailedEnergy.String())
}

func TestEvaluate_DeterministicID(t *testing.T) {
	phase := &models.AssetPhase{ID: 2, CapacityMW: dp("150")}
	a := New(Policy{}).Evaluate(bucket("53.5", phase))
	b := New(Policy{}).Evaluate(bucket("99", phase))
	assert.Equal(t, a.ID, b.ID)

	other := bucket("53.5", nil)
	assert.NotEqual(t, a.ID, New(Policy{}).Evaluate(other).ID)
}

func TestQualityScore(t *testing.T) {
	cases := []struct {
		points, expected int
		score            string
		completeness     string
		flag             models.QualityFlag
	}{
		{4, 4, "1", "1", models.QualityHigh},
		{5, 4, "1", "1", models.QualityHigh},
		{3, 4, "0.5", "0.75", models.QualityLow},
		{2, 4, "0.5", "0.5", models.QualityLow},
		{1, 4, "0.25", "0.25", models.QualityPoor},
		{1, 2, "0.5", "0.5", models.QualityLow},
		{9, 10, "0.8", "0.9", models.QualityMedium},
		{0, 2, "0", "0", models.QualityPoor},
	}
	for _, tc := range cases {
		score, completeness := QualityScore(tc.points, tc.expected)
		assert.True(t, score.Equal(decimal.RequireFromString(tc.score)), "%d/%d score %s", tc.points, tc.expected, score)
		assert.True(t, completeness.Equal(decimal.RequireFromString(tc.completeness)), "%d/%d completeness %s", tc.points, tc.expected, completeness)
		assert.Equal(t, tc.flag, FlagFor(score), "%d/%d", tc.points, tc.expected)
	}
}

func TestDayCompleteness_LocalDayLength(t *testing.T) {
	loc, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)
	spring := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	autumn := time.Date(2024, 10, 27, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 46, ExpectedLocalPeriods(spring, loc, 30*time.Minute))
	assert.Equal(t, 50, ExpectedLocalPeriods(autumn, loc, 30*time.Minute))
	assert.Equal(t, 1.0, DayCompleteness(46, spring, loc, 30*time.Minute))
	assert.Equal(t, 0.96, DayCompleteness(48, autumn, loc, 30*time.Minute))
}
