package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Energy-Exe/energyexe-core-backend/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PhaseRepository reads asset phases from generation_units.
type PhaseRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPhaseRepository creates a phase repository.
func NewPhaseRepository(db *sql.DB, logger *zap.Logger) *PhaseRepository {
	return &PhaseRepository{db: db, logger: logger}
}

// ListPhases returns every phase registered for the given sources.
func (r *PhaseRepository) ListPhases(ctx context.Context, sources []models.Source) ([]models.AssetPhase, error) {
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = string(s)
	}

	query := `
		SELECT id, code, source, name, capacity_mw, valid_from, valid_until, windfarm_id
		FROM generation_units
		WHERE source = ANY($1)
		ORDER BY source, code, valid_from
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("failed to query generation units: %w", err)
	}
	defer rows.Close()

	var out []models.AssetPhase
	for rows.Next() {
		var (
			p          models.AssetPhase
			src        string
			capacity   sql.NullString
			validUntil sql.NullTime
			windfarmID sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &p.Code, &src, &p.Name, &capacity, &p.ValidFrom, &validUntil, &windfarmID); err != nil {
			return nil, fmt.Errorf("failed to scan generation unit: %w", err)
		}
		p.Source = models.Source(src)
		if p.CapacityMW, err = decimalPtr(capacity); err != nil {
			return nil, fmt.Errorf("generation unit %d: invalid capacity_mw: %w", p.ID, err)
		}
		if validUntil.Valid {
			t := validUntil.Time
			p.ValidUntil = &t
		}
		p.ParentAssetID = int64Ptr(windfarmID)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate generation units: %w", err)
	}

	r.logger.Debug("Loaded generation unit phases", zap.Int("count", len(out)), zap.Strings("sources", names))
	return out, nil
}
