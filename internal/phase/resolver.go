package phase

import (
	"fmt"
	"sync"
	"time"

	"github.com/Energy-Exe/energyexe-core-backend/internal/models"

	"go.uber.org/zap"
)

// Resolver answers phase lookups against a snapshot.
type Resolver struct {
	snap   *Snapshot
	logger *zap.Logger

	mu     sync.Mutex
	warned map[string]struct{}
}

// NewResolver creates a resolver over snap.
func NewResolver(snap *Snapshot, logger *zap.Logger) *Resolver {
	return &Resolver{
		snap:   snap,
		logger: logger,
		warned: make(map[string]struct{}),
	}
}

// Snapshot returns the underlying snapshot.
func (r *Resolver) Snapshot() *Snapshot {
	return r.snap
}

// Resolve returns the phase of (source, code) whose [ValidFrom, ValidUntil)
// contains ts. When the registry holds overlapping phases the one with the
// latest ValidFrom wins and a consistency warning is logged. The boolean is
// false when no phase covers ts.
func (r *Resolver) Resolve(source models.Source, code string, ts time.Time) (models.AssetPhase, bool) {
	list := r.snap.byKey[key{source: source, code: code}]

	var (
		match models.AssetPhase
		found bool
	)
	// list is ordered by ValidFrom, so the last containing phase is the latest
	for _, p := range list {
		if p.Contains(ts) {
			if found {
				r.warnOverlap(source, code, match, p, ts)
			}
			match = p
			found = true
		}
	}
	return match, found
}

func (r *Resolver) warnOverlap(source models.Source, code string, a, b models.AssetPhase, ts time.Time) {
	k := fmt.Sprintf("%s|%s|%d|%d", source, code, a.ID, b.ID)

	r.mu.Lock()
	_, seen := r.warned[k]
	if !seen {
		r.warned[k] = struct{}{}
	}
	r.mu.Unlock()
	if seen {
		return
	}

	r.logger.Warn("Overlapping asset phases, using latest valid_from",
		zap.String("source", string(source)),
		zap.String("code", code),
		zap.Int64("phase_id", a.ID),
		zap.Int64("chosen_phase_id", b.ID),
		zap.Time("at", ts),
	)
}
