package dedup

import (
	"testing"
	"time"

	"github.com/Energy-Exe/energyexe-core-backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var slot = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func obs(id int64, origin models.OriginType, value string) models.CanonicalObservation {
	return models.CanonicalObservation{
		RawID:          id,
		Source:         models.SourceELEXON,
		OriginType:     origin,
		Measure:        models.MeasureGeneration,
		Identifier:     "T_WHILW-1",
		PeriodStartUTC: slot,
		Value:          decimal.RequireFromString(value),
	}
}

func TestDeduplicate_APIBeatsFile(t *testing.T) {
	for _, order := range [][]models.CanonicalObservation{
		{obs(1, models.OriginFile, "10"), obs(2, models.OriginAPI, "12")},
		{obs(2, models.OriginAPI, "12"), obs(1, models.OriginFile, "10")},
		{obs(2, models.OriginAPI, "12"), obs(5, models.OriginFile, "10")},
	} {
		res := Deduplicate(order)
		require.Len(t, res.Kept, 1)
		assert.Equal(t, models.OriginAPI, res.Kept[0].OriginType)
		assert.Equal(t, "12", res.Kept[0].Value.String())
		assert.Equal(t, 1, res.Dropped())
	}
}

func TestDeduplicate_SameOriginLatestImportWins(t *testing.T) {
	res := Deduplicate([]models.CanonicalObservation{
		obs(3, models.OriginFile, "9"),
		obs(8, models.OriginFile, "11"),
		obs(4, models.OriginFile, "10"),
	})
	require.Len(t, res.Kept, 1)
	assert.Equal(t, int64(8), res.Kept[0].RawID)
	assert.ElementsMatch(t, []int64{3, 4}, res.DroppedIDs)
}

func TestDeduplicate_KeepsDistinctReadings(t *testing.T) {
	next := obs(2, models.OriginAPI, "5")
	next.PeriodStartUTC = slot.Add(30 * time.Minute)

	curtailed := obs(3, models.OriginAPI, "4")
	curtailed.Measure = models.MeasureCurtailment

	subA := obs(4, models.OriginFile, "1")
	subA.SubUnit = "A"
	subB := obs(5, models.OriginFile, "2")
	subB.SubUnit = "B"

	other := obs(6, models.OriginFile, "7")
	other.Identifier = "T_WHILW-2"

	res := Deduplicate([]models.CanonicalObservation{obs(1, models.OriginAPI, "5"), next, curtailed, subA, subB, other})
	assert.Len(t, res.Kept, 6)
	assert.Zero(t, res.Dropped())
}

func TestDeduplicate_PreservesFirstSeenOrder(t *testing.T) {
	b := obs(2, models.OriginFile, "2")
	b.Identifier = "B"
	bAPI := obs(3, models.OriginAPI, "3")
	bAPI.Identifier = "B"

	res := Deduplicate([]models.CanonicalObservation{b, obs(1, models.OriginFile, "1"), bAPI})
	require.Len(t, res.Kept, 2)
	assert.Equal(t, "B", res.Kept[0].Identifier)
	assert.Equal(t, int64(3), res.Kept[0].RawID)
	assert.Equal(t, "T_WHILW-1", res.Kept[1].Identifier)
}
