package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Energy-Exe/energyexe-core-backend/common/database"
	"github.com/Energy-Exe/energyexe-core-backend/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// HarmonizedRepository owns generation_data. Writes replace a whole
// (source, bucket range) so re-runs are idempotent.
type HarmonizedRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHarmonizedRepository creates a harmonized record repository.
func NewHarmonizedRepository(db *sql.DB, logger *zap.Logger) *HarmonizedRepository {
	return &HarmonizedRepository{db: db, logger: logger}
}

// WriteResult counts the rows touched by ReplaceRange.
type WriteResult struct {
	Deleted  int
	Inserted int
}

var harmonizedColumns = []string{
	"id", "hour", "identifier", "generation_unit_id", "windfarm_id", "source", "source_resolution",
	"metered_mwh", "curtailed_mwh", "generation_mwh", "capacity_mw", "capacity_factor",
	"raw_capacity_mw", "raw_capacity_factor", "quality_score", "quality_flag", "completeness",
	"data_points", "expected_points", "raw_data_ids", "low_confidence",
}

// CheckUniqueKeys returns ErrDuplicateKey if two records share a natural key.
func CheckUniqueKeys(records []models.HarmonizedRecord) error {
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		k := rec.NaturalKey()
		if _, dup := seen[k]; dup {
			return fmt.Errorf("%w: %s", models.ErrDuplicateKey, k)
		}
		seen[k] = struct{}{}
	}
	return nil
}

// ReplaceRange deletes every row of source with hour in [start, end) and
// inserts records, all in one transaction. Records outside the range are
// rejected so a unit can never write into a neighbour's range.
func (r *HarmonizedRepository) ReplaceRange(ctx context.Context, source models.Source, start, end time.Time, records []models.HarmonizedRecord) (WriteResult, error) {
	var res WriteResult
	if !end.After(start) {
		return res, fmt.Errorf("%w: %s..%s", models.ErrInvalidRange, start, end)
	}
	if err := CheckUniqueKeys(records); err != nil {
		return res, err
	}
	for _, rec := range records {
		if rec.Source != source {
			return res, fmt.Errorf("record %s belongs to %s, not %s", rec.NaturalKey(), rec.Source, source)
		}
		if rec.BucketStart.Before(start) || !rec.BucketStart.Before(end) {
			return res, fmt.Errorf("record %s outside write range %s..%s", rec.NaturalKey(),
				start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
		}
	}

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		deleteQuery := `
			DELETE FROM generation_data
			WHERE source = $1
			  AND hour >= $2
			  AND hour < $3
		`
		result, err := tx.ExecContext(ctx, deleteQuery, string(source), start.UTC(), end.UTC())
		if err != nil {
			return fmt.Errorf("failed to delete harmonized rows: %w", err)
		}
		if n, err := result.RowsAffected(); err == nil {
			res.Deleted = int(n)
		}

		if len(records) == 0 {
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, pq.CopyIn("generation_data", harmonizedColumns...))
		if err != nil {
			return fmt.Errorf("failed to prepare harmonized copy: %w", err)
		}
		defer stmt.Close()

		for _, rec := range records {
			if _, err := stmt.ExecContext(ctx, harmonizedArgs(rec)...); err != nil {
				return fmt.Errorf("failed to copy harmonized record %s: %w", rec.NaturalKey(), err)
			}
		}
		if _, err := stmt.ExecContext(ctx); err != nil {
			return fmt.Errorf("failed to flush harmonized copy: %w", err)
		}
		res.Inserted = len(records)
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return WriteResult{}, fmt.Errorf("%w: %v", models.ErrDuplicateKey, err)
		}
		return WriteResult{}, err
	}

	r.logger.Debug("Replaced harmonized range",
		zap.String("source", string(source)),
		zap.Time("start", start),
		zap.Time("end", end),
		zap.Int("deleted", res.Deleted),
		zap.Int("inserted", res.Inserted),
	)
	return res, nil
}

func harmonizedArgs(rec models.HarmonizedRecord) []interface{} {
	ids := rec.ProvenanceIDs
	if ids == nil {
		ids = []int64{}
	}
	return []interface{}{
		rec.ID.String(),
		rec.BucketStart.UTC(),
		rec.Identifier,
		nullInt64ToAny(rec.PhaseID),
		nullInt64ToAny(rec.ParentAssetID),
		string(rec.Source),
		string(rec.SourceResolution),
		rec.MeteredEnergy.String(),
		nullDecimalToAny(rec.CurtailedEnergy),
		rec.TotalEnergy.String(),
		nullDecimalToAny(rec.CapacityMWSnapshot),
		nullDecimalToAny(rec.CapacityFactor),
		nullDecimalToAny(rec.RawCapacityMW),
		nullDecimalToAny(rec.RawCapacityFactor),
		rec.QualityScore.String(),
		string(rec.QualityFlag),
		rec.Completeness.String(),
		rec.DataPoints,
		rec.ExpectedPoints,
		pq.Array(ids),
		rec.LowConfidence,
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// ListRange returns the stored records of source with hour in [start, end),
// ordered by hour and key.
func (r *HarmonizedRepository) ListRange(ctx context.Context, source models.Source, start, end time.Time) ([]models.HarmonizedRecord, error) {
	query := `
		SELECT id, hour, identifier, generation_unit_id, windfarm_id, source, source_resolution,
		       metered_mwh, curtailed_mwh, generation_mwh, capacity_mw, capacity_factor,
		       raw_capacity_mw, raw_capacity_factor, quality_score, quality_flag, completeness,
		       data_points, expected_points, raw_data_ids, low_confidence
		FROM generation_data
		WHERE source = $1
		  AND hour >= $2
		  AND hour < $3
		ORDER BY hour, generation_unit_id NULLS LAST, identifier
	`

	rows, err := r.db.QueryContext(ctx, query, string(source), start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query harmonized rows: %w", err)
	}
	defer rows.Close()

	var out []models.HarmonizedRecord
	for rows.Next() {
		var (
			rec                       models.HarmonizedRecord
			id, src, resolution, flag string
			phaseID, windfarmID       sql.NullInt64
			curtailed, capacity, cf   decimal.NullDecimal
			rawCap, rawCF             decimal.NullDecimal
			ids                       pq.Int64Array
		)
		if err := rows.Scan(&id, &rec.BucketStart, &rec.Identifier, &phaseID, &windfarmID, &src, &resolution,
			&rec.MeteredEnergy, &curtailed, &rec.TotalEnergy, &capacity, &cf, &rawCap, &rawCF,
			&rec.QualityScore, &flag, &rec.Completeness,
			&rec.DataPoints, &rec.ExpectedPoints, &ids, &rec.LowConfidence); err != nil {
			return nil, fmt.Errorf("failed to scan harmonized row: %w", err)
		}

		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid harmonized id %q: %w", id, err)
		}
		rec.Source = models.Source(src)
		rec.SourceResolution = models.Resolution(resolution)
		rec.QualityFlag = models.QualityFlag(flag)
		rec.PhaseID = int64Ptr(phaseID)
		rec.ParentAssetID = int64Ptr(windfarmID)
		rec.ProvenanceIDs = []int64(ids)
		rec.CurtailedEnergy = fromNullDecimal(curtailed)
		rec.CapacityMWSnapshot = fromNullDecimal(capacity)
		rec.CapacityFactor = fromNullDecimal(cf)
		rec.RawCapacityMW = fromNullDecimal(rawCap)
		rec.RawCapacityFactor = fromNullDecimal(rawCF)

		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate harmonized rows: %w", err)
	}
	return out, nil
}
