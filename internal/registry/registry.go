// Package registry loads asset phases from the asset registry and builds the
// read-only snapshot used for one run.
package registry

import (
	"context"
	"fmt"

	"github.com/Energy-Exe/energyexe-core-backend/internal/models"
	"github.com/Energy-Exe/energyexe-core-backend/internal/phase"

	"go.uber.org/zap"
)

// Loader lists the phases registered for a set of sources.
type Loader interface {
	ListPhases(ctx context.Context, sources []models.Source) ([]models.AssetPhase, error)
}

// LoadSnapshot loads phases once and freezes them into a snapshot.
func LoadSnapshot(ctx context.Context, loader Loader, sources []models.Source, logger *zap.Logger) (*phase.Snapshot, error) {
	phases, err := loader.ListPhases(ctx, sources)
	if err != nil {
		return nil, fmt.Errorf("failed to load asset phases: %w", err)
	}
	snap := phase.NewSnapshot(phases)

	for _, o := range snap.Overlaps() {
		logger.Warn("Asset registry has overlapping phases",
			zap.String("source", string(o.Source)),
			zap.String("code", o.Code),
			zap.Int64("phase_id", o.First),
			zap.Int64("other_phase_id", o.Second),
		)
	}
	logger.Info("Loaded asset phase snapshot", zap.Int("phases", snap.Len()))
	return snap, nil
}
