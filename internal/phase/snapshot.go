// Package phase resolves a source identifier and instant to the operational
// phase of the asset that was valid at that instant.
package phase

import (
	"fmt"
	"sort"
	"time"

	"github.com/Energy-Exe/energyexe-core-backend/internal/models"
)

type key struct {
	source models.Source
	code   string
}

// Snapshot is a read-only view of the asset registry taken at the start of a
// run. It is safe for concurrent use.
type Snapshot struct {
	byKey    map[key][]models.AssetPhase
	count    int
	loadedAt time.Time
}

// NewSnapshot indexes phases by (source, code), ordered by ValidFrom.
func NewSnapshot(phases []models.AssetPhase) *Snapshot {
	s := &Snapshot{
		byKey:    make(map[key][]models.AssetPhase),
		count:    len(phases),
		loadedAt: time.Now().UTC(),
	}
	for _, p := range phases {
		k := key{source: p.Source, code: p.Code}
		s.byKey[k] = append(s.byKey[k], p)
	}
	for _, list := range s.byKey {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].ValidFrom.Equal(list[j].ValidFrom) {
				return list[i].ID < list[j].ID
			}
			return list[i].ValidFrom.Before(list[j].ValidFrom)
		})
	}
	return s
}

// Len returns the number of phases in the snapshot.
func (s *Snapshot) Len() int {
	return s.count
}

// LoadedAt returns when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time {
	return s.loadedAt
}

// Phases returns a copy of the phases registered for (source, code).
func (s *Snapshot) Phases(source models.Source, code string) []models.AssetPhase {
	list := s.byKey[key{source: source, code: code}]
	out := make([]models.AssetPhase, len(list))
	copy(out, list)
	return out
}

// Codes returns the identifier codes known for source, sorted.
func (s *Snapshot) Codes(source models.Source) []string {
	var codes []string
	for k := range s.byKey {
		if k.source == source {
			codes = append(codes, k.code)
		}
	}
	sort.Strings(codes)
	return codes
}

// Overlap describes two phases of one code whose validity intervals intersect.
type Overlap struct {
	Source models.Source
	Code   string
	First  int64
	Second int64
}

func (o Overlap) String() string {
	return fmt.Sprintf("%s:%s phases %d and %d overlap", o.Source, o.Code, o.First, o.Second)
}

// Overlaps lists registry consistency violations.
func (s *Snapshot) Overlaps() []Overlap {
	var out []Overlap
	for k, list := range s.byKey {
		for i := 0; i < len(list); i++ {
			for j := i + 1; j < len(list); j++ {
				if intersects(list[i], list[j]) {
					out = append(out, Overlap{Source: k.source, Code: k.code, First: list[i].ID, Second: list[j].ID})
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Code != out[j].Code {
			return out[i].Code < out[j].Code
		}
		return out[i].First < out[j].First
	})
	return out
}

// intersects expects a.ValidFrom <= b.ValidFrom.
func intersects(a, b models.AssetPhase) bool {
	return a.ValidUntil == nil || b.ValidFrom.Before(*a.ValidUntil)
}
