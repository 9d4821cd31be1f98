// Package combiner reduces normalized observations to one energy value per
// (phase, bucket).
//
// Within one sub-unit, rows for the same sample slot are parallel
// contributions and are summed. Slots are then combined per value kind:
// energy slots are summed, power samples are averaged (the average MW over an
// hour is the hour's MWh). Sub-units are disjoint physical contributions and
// are summed. Curtailment rows are summed separately.
package combiner

import (
	"fmt"
	"sort"
	"time"

	"github.com/Energy-Exe/energyexe-core-backend/internal/models"

	"github.com/shopspring/decimal"
)

// Input is one deduplicated observation with its resolved phase, nil when
// unmatched.
type Input struct {
	Obs   models.CanonicalObservation
	Phase *models.AssetPhase
}

// Bucket is the combined result for one (phase, bucket).
type Bucket struct {
	Start          time.Time
	Source         models.Source
	Identifier     string
	Phase          *models.AssetPhase
	Resolution     models.Resolution
	ValueKind      models.ValueKind
	Metered        decimal.Decimal
	Curtailed      *decimal.Decimal
	HasGeneration  bool
	DataPoints     int
	ExpectedPoints int
	RawCapacityMW  *decimal.Decimal
	RawCF          *decimal.Decimal
	ProvenanceIDs  []int64
	LowConfidence  bool
}

// Total returns metered plus curtailed energy.
func (b Bucket) Total() decimal.Decimal {
	if b.Curtailed == nil {
		return b.Metered
	}
	return b.Metered.Add(*b.Curtailed)
}

type groupKey struct {
	start time.Time
	key   string
}

type group struct {
	inputs []Input
}

// Combine groups inputs by (phase, bucket) and reduces each group. Unmatched
// inputs are grouped by identifier. Buckets with no generation rows and zero
// curtailment are omitted. The result is ordered by bucket start, then key.
func Combine(inputs []Input) []Bucket {
	groups := make(map[groupKey]*group)
	for _, in := range inputs {
		k := groupKey{start: in.Obs.BucketStart.UTC(), key: keyOf(in)}
		g, ok := groups[k]
		if !ok {
			g = &group{}
			groups[k] = g
		}
		g.inputs = append(g.inputs, in)
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if !keys[i].start.Equal(keys[j].start) {
			return keys[i].start.Before(keys[j].start)
		}
		return keys[i].key < keys[j].key
	})

	out := make([]Bucket, 0, len(keys))
	for _, k := range keys {
		b := reduce(k.start, groups[k].inputs)
		if !b.HasGeneration && (b.Curtailed == nil || b.Curtailed.IsZero()) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func keyOf(in Input) string {
	if in.Phase != nil {
		return fmt.Sprintf("phase:%020d", in.Phase.ID)
	}
	return "code:" + in.Obs.Identifier
}

func reduce(start time.Time, inputs []Input) Bucket {
	first := inputs[0]
	b := Bucket{
		Start:      start,
		Source:     first.Obs.Source,
		Identifier: first.Obs.Identifier,
		Phase:      first.Phase,
		Resolution: first.Obs.Resolution,
		ValueKind:  first.Obs.ValueKind,
	}

	// sub-unit -> slot -> summed value
	generation := make(map[string]map[time.Time]decimal.Decimal)
	curtailSlots := make(map[time.Time]struct{})
	var curtailed *decimal.Decimal
	var latest *models.CanonicalObservation
	ids := make([]int64, 0, len(inputs))

	for i := range inputs {
		o := inputs[i].Obs
		ids = append(ids, o.RawID)
		if o.LowConfidence {
			b.LowConfidence = true
		}
		if o.RawCapacityMW != nil || o.RawCapacityFactor != nil {
			if latest == nil || o.PeriodStartUTC.After(latest.PeriodStartUTC) ||
				(o.PeriodStartUTC.Equal(latest.PeriodStartUTC) && o.RawID > latest.RawID) {
				latest = &inputs[i].Obs
			}
		}

		if o.Measure == models.MeasureCurtailment {
			sum := o.Value.Abs()
			if curtailed != nil {
				sum = curtailed.Add(sum)
			}
			curtailed = &sum
			curtailSlots[o.PeriodStartUTC.UTC()] = struct{}{}
			continue
		}

		if !b.HasGeneration {
			b.Resolution = o.Resolution
			b.ValueKind = o.ValueKind
		}
		b.HasGeneration = true
		slots, ok := generation[o.SubUnit]
		if !ok {
			slots = make(map[time.Time]decimal.Decimal)
			generation[o.SubUnit] = slots
		}
		slot := o.PeriodStartUTC.UTC()
		slots[slot] = slots[slot].Add(o.Value)
	}

	metered := decimal.Zero
	points := 0
	for _, slots := range generation {
		metered = metered.Add(combineSlots(slots, b.ValueKind))
		if len(slots) > points {
			points = len(slots)
		}
	}
	if !b.HasGeneration {
		points = len(curtailSlots)
	}

	b.Metered = metered
	b.Curtailed = curtailed
	b.DataPoints = points
	b.ExpectedPoints = b.Resolution.SamplesPerBucket()
	if latest != nil {
		b.RawCapacityMW = latest.RawCapacityMW
		b.RawCF = latest.RawCapacityFactor
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	b.ProvenanceIDs = ids
	return b
}

// combineSlots sums energy slots and averages power samples.
func combineSlots(slots map[time.Time]decimal.Decimal, kind models.ValueKind) decimal.Decimal {
	sum := decimal.Zero
	for _, v := range slots {
		sum = sum.Add(v)
	}
	if kind == models.KindPower && len(slots) > 1 {
		return sum.Div(decimal.NewFromInt(int64(len(slots))))
	}
	return sum
}
