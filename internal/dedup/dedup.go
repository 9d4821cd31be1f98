// Package dedup removes overlapping imports of the same reading before they
// are combined. An api observation beats a file observation for the same key;
// between equal origins the most recently imported row (highest raw id) wins.
package dedup

import (
	"time"

	"github.com/Energy-Exe/energyexe-core-backend/internal/models"
)

// Key identifies one reading of one sample slot. Measure and SubUnit are part
// of the key because curtailment and parallel sub-unit rows are distinct
// readings, not re-imports.
type Key struct {
	Source      models.Source
	Identifier  string
	Measure     models.Measure
	SubUnit     string
	PeriodStart time.Time
}

// KeyOf returns the dedup key of c.
func KeyOf(c models.CanonicalObservation) Key {
	return Key{
		Source:      c.Source,
		Identifier:  c.Identifier,
		Measure:     c.Measure,
		SubUnit:     c.SubUnit,
		PeriodStart: c.PeriodStartUTC.UTC(),
	}
}

// Result is the outcome of Deduplicate.
type Result struct {
	Kept       []models.CanonicalObservation
	DroppedIDs []int64
}

// Dropped returns how many observations were discarded.
func (r Result) Dropped() int {
	return len(r.DroppedIDs)
}

// Deduplicate keeps one observation per key. The output preserves the order
// in which keys first appear in obs.
func Deduplicate(obs []models.CanonicalObservation) Result {
	index := make(map[Key]int, len(obs))
	kept := make([]models.CanonicalObservation, 0, len(obs))
	var dropped []int64

	for _, c := range obs {
		k := KeyOf(c)
		i, seen := index[k]
		if !seen {
			index[k] = len(kept)
			kept = append(kept, c)
			continue
		}
		if wins(c, kept[i]) {
			dropped = append(dropped, kept[i].RawID)
			kept[i] = c
		} else {
			dropped = append(dropped, c.RawID)
		}
	}
	return Result{Kept: kept, DroppedIDs: dropped}
}

func wins(challenger, incumbent models.CanonicalObservation) bool {
	cp, ip := challenger.OriginType.Precedence(), incumbent.OriginType.Precedence()
	if cp != ip {
		return cp > ip
	}
	return challenger.RawID > incumbent.RawID
}
