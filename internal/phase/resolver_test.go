package phase

import (
	"testing"
	"time"

	"github.com/Energy-Exe/energyexe-core-backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func until(s string) *time.Time {
	t := day(s)
	return &t
}

func capacity(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func repoweredAsset() []models.AssetPhase {
	return []models.AssetPhase{
		{ID: 2, Code: "20", Source: models.SourceNVE, Name: "Phase B", CapacityMW: capacity(150), ValidFrom: day("2008-08-30")},
		{ID: 1, Code: "20", Source: models.SourceNVE, Name: "Phase A", CapacityMW: capacity(100), ValidFrom: day("2007-09-10"), ValidUntil: until("2008-08-29")},
	}
}

func TestResolve_PicksPhaseValidAtInstant(t *testing.T) {
	r := NewResolver(NewSnapshot(repoweredAsset()), zap.NewNop())

	p, ok := r.Resolve(models.SourceNVE, "20", time.Date(2008, 9, 1, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, "Phase B", p.Name)
	assert.Equal(t, "150", p.CapacityMW.String())

	p, ok = r.Resolve(models.SourceNVE, "20", time.Date(2008, 1, 1, 12, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, "Phase A", p.Name)
}

func TestResolve_HalfOpenBoundaries(t *testing.T) {
	r := NewResolver(NewSnapshot(repoweredAsset()), zap.NewNop())

	_, ok := r.Resolve(models.SourceNVE, "20", day("2007-09-10"))
	assert.True(t, ok, "valid_from is inclusive")

	// Phase A ends exclusively on 2008-08-29 and Phase B starts on 2008-08-30
	_, ok = r.Resolve(models.SourceNVE, "20", day("2008-08-29"))
	assert.False(t, ok)
	_, ok = r.Resolve(models.SourceNVE, "20", day("2008-08-29").Add(23*time.Hour))
	assert.False(t, ok)

	_, ok = r.Resolve(models.SourceNVE, "20", day("2007-09-09"))
	assert.False(t, ok, "pre-commercial data is unmatched")
}

func TestResolve_UnknownCodeOrSource(t *testing.T) {
	r := NewResolver(NewSnapshot(repoweredAsset()), zap.NewNop())

	_, ok := r.Resolve(models.SourceNVE, "21", day("2010-01-01"))
	assert.False(t, ok)
	_, ok = r.Resolve(models.SourceENTSOE, "20", day("2010-01-01"))
	assert.False(t, ok)
}

func TestResolve_ExactlyOnePhasePerInstant(t *testing.T) {
	phases := []models.AssetPhase{
		{ID: 1, Code: "X", Source: models.SourceENTSOE, ValidFrom: day("2010-01-01"), ValidUntil: until("2012-01-01")},
		{ID: 2, Code: "X", Source: models.SourceENTSOE, ValidFrom: day("2012-01-01"), ValidUntil: until("2015-06-01")},
		{ID: 3, Code: "X", Source: models.SourceENTSOE, ValidFrom: day("2015-06-01")},
	}
	r := NewResolver(NewSnapshot(phases), zap.NewNop())
	assert.Empty(t, r.Snapshot().Overlaps())

	for ts := day("2009-12-31"); ts.Before(day("2017-01-01")); ts = ts.Add(97 * time.Hour) {
		p, ok := r.Resolve(models.SourceENTSOE, "X", ts)
		if ts.Before(day("2010-01-01")) {
			assert.False(t, ok)
			continue
		}
		require.True(t, ok, ts.String())

		containing := 0
		for _, candidate := range phases {
			if candidate.Contains(ts) {
				containing++
				assert.Equal(t, candidate.ID, p.ID)
			}
		}
		assert.Equal(t, 1, containing)
	}
}

func TestResolve_OverlapPicksLatestAndWarnsOnce(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	phases := []models.AssetPhase{
		{ID: 7, Code: "T_ABC-1", Source: models.SourceELEXON, ValidFrom: day("2015-01-01"), ValidUntil: until("2020-01-01")},
		{ID: 8, Code: "T_ABC-1", Source: models.SourceELEXON, ValidFrom: day("2018-01-01")},
	}
	r := NewResolver(NewSnapshot(phases), zap.New(core))

	p, ok := r.Resolve(models.SourceELEXON, "T_ABC-1", day("2019-05-05"))
	require.True(t, ok)
	assert.Equal(t, int64(8), p.ID)

	_, _ = r.Resolve(models.SourceELEXON, "T_ABC-1", day("2019-05-06"))
	assert.Equal(t, 1, logs.FilterMessage("Overlapping asset phases, using latest valid_from").Len())

	overlaps := r.Snapshot().Overlaps()
	require.Len(t, overlaps, 1)
	assert.Equal(t, int64(7), overlaps[0].First)
	assert.Equal(t, int64(8), overlaps[0].Second)
}

func TestSnapshot_CodesAndCopies(t *testing.T) {
	s := NewSnapshot(append(repoweredAsset(), models.AssetPhase{ID: 9, Code: "05", Source: models.SourceNVE, ValidFrom: day("2001-01-01")}))

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []string{"05", "20"}, s.Codes(models.SourceNVE))

	list := s.Phases(models.SourceNVE, "20")
	require.Len(t, list, 2)
	assert.Equal(t, "Phase A", list[0].Name)
	list[0].Name = "mutated"
	assert.Equal(t, "Phase A", s.Phases(models.SourceNVE, "20")[0].Name)
}
