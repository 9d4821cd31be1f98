package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Energy-Exe/energyexe-core-backend/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// RawRepository reads and bulk-loads generation_data_raw.
type RawRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRawRepository creates a raw observation repository.
func NewRawRepository(db *sql.DB, logger *zap.Logger) *RawRepository {
	return &RawRepository{db: db, logger: logger}
}

// FetchRange returns the observations of source whose stored period_start lies
// in [start, end), ordered by id.
func (r *RawRepository) FetchRange(ctx context.Context, source models.Source, start, end time.Time) ([]models.RawObservation, error) {
	query := `
		SELECT id, source, source_type, identifier, period_start, period_end,
		       period_type, value_extracted, unit, data
		FROM generation_data_raw
		WHERE source = $1
		  AND period_start >= $2
		  AND period_start < $3
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, string(source), start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query raw observations: %w", err)
	}
	defer rows.Close()

	var out []models.RawObservation
	for rows.Next() {
		var (
			obs        models.RawObservation
			src        string
			sourceType string
			periodEnd  sql.NullTime
			periodType sql.NullString
			value      sql.NullString
			unit       sql.NullString
			data       []byte
		)
		if err := rows.Scan(&obs.ID, &src, &sourceType, &obs.Identifier, &obs.PeriodStart, &periodEnd,
			&periodType, &value, &unit, &data); err != nil {
			return nil, fmt.Errorf("failed to scan raw observation: %w", err)
		}

		obs.Source = models.Source(src)
		obs.OriginType = models.ParseOriginType(sourceType)
		obs.Unit = unit.String
		if periodEnd.Valid {
			obs.PeriodEnd = periodEnd.Time
		}
		if periodType.Valid && periodType.String != "" {
			if res, err := models.ParseResolution(periodType.String); err == nil {
				obs.Resolution = res
			}
		}
		if obs.Value, err = decimalPtr(value); err != nil {
			return nil, fmt.Errorf("raw id %d: invalid value_extracted %q: %w", obs.ID, value.String, err)
		}
		meta, err := decodeJSONMap(data)
		if err != nil {
			return nil, fmt.Errorf("raw id %d: invalid data json: %w", obs.ID, err)
		}
		obs.Metadata = models.Metadata(meta)
		hydrate(&obs)

		out = append(out, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate raw observations: %w", err)
	}
	return out, nil
}

// hydrate derives typed fields from unit and metadata.
func hydrate(obs *models.RawObservation) {
	switch strings.ToUpper(obs.Unit) {
	case "MW":
		obs.ValueKind = models.KindPower
	default:
		obs.ValueKind = models.KindEnergy
	}
	if m, ok := obs.Metadata.String("measure"); ok && strings.EqualFold(m, string(models.MeasureCurtailment)) {
		obs.Measure = models.MeasureCurtailment
	}
	switch dir, _ := obs.Metadata.String("direction"); strings.ToLower(dir) {
	case "import", "consumption":
		obs.Sign = models.SignImport
	case "export", "generation":
		obs.Sign = models.SignExport
	}
	if d, ok := obs.Metadata.Decimal("installed_capacity_mw"); ok {
		obs.RawCapacityMW = d
	}
	if d, ok := obs.Metadata.Decimal("capacity_factor"); ok {
		obs.RawCapacityFactor = d
	}
}

// SourceAvailability summarizes stored raw data for one origin type.
type SourceAvailability struct {
	OriginType  models.OriginType `json:"origin_type"`
	Rows        int               `json:"rows"`
	Identifiers int               `json:"identifiers"`
	First       time.Time         `json:"first"`
	Last        time.Time         `json:"last"`
}

// Availability reports raw row counts of source in [start, end) per origin.
func (r *RawRepository) Availability(ctx context.Context, source models.Source, start, end time.Time) ([]SourceAvailability, error) {
	query := `
		SELECT source_type, COUNT(*), COUNT(DISTINCT identifier), MIN(period_start), MAX(period_start)
		FROM generation_data_raw
		WHERE source = $1
		  AND period_start >= $2
		  AND period_start < $3
		GROUP BY source_type
		ORDER BY source_type
	`

	rows, err := r.db.QueryContext(ctx, query, string(source), start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query raw availability: %w", err)
	}
	defer rows.Close()

	var out []SourceAvailability
	for rows.Next() {
		var (
			a          SourceAvailability
			sourceType string
		)
		if err := rows.Scan(&sourceType, &a.Rows, &a.Identifiers, &a.First, &a.Last); err != nil {
			return nil, fmt.Errorf("failed to scan raw availability: %w", err)
		}
		a.OriginType = models.ParseOriginType(sourceType)
		out = append(out, a)
	}
	return out, rows.Err()
}

// SettlementPeriods returns how many distinct settlement periods each
// identifier has for a local settlement date.
func (r *RawRepository) SettlementPeriods(ctx context.Context, source models.Source, date time.Time) (map[string]int, error) {
	query := `
		SELECT identifier, COUNT(DISTINCT data->>'settlement_period')
		FROM generation_data_raw
		WHERE source = $1
		  AND data->>'settlement_date' IN ($2, $3)
		GROUP BY identifier
	`

	rows, err := r.db.QueryContext(ctx, query, string(source), date.Format("2006-01-02"), date.Format("20060102"))
	if err != nil {
		return nil, fmt.Errorf("failed to query settlement periods: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			identifier string
			count      int
		)
		if err := rows.Scan(&identifier, &count); err != nil {
			return nil, fmt.Errorf("failed to scan settlement periods: %w", err)
		}
		out[identifier] = count
	}
	return out, rows.Err()
}

var rawColumns = []string{
	"source", "source_type", "identifier", "period_start", "period_end",
	"period_type", "value_extracted", "unit", "data",
}

// InsertBatch bulk-loads observations with COPY in one transaction.
func (r *RawRepository) InsertBatch(ctx context.Context, batch []models.RawObservation) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("generation_data_raw", rawColumns...))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare raw copy: %w", err)
	}

	for _, obs := range batch {
		meta := obs.Metadata
		if meta == nil {
			meta = models.Metadata{}
		}
		data, err := json.Marshal(meta)
		if err != nil {
			stmt.Close()
			return 0, fmt.Errorf("failed to encode metadata for %s: %w", obs.Identifier, err)
		}
		var periodEnd interface{}
		if !obs.PeriodEnd.IsZero() {
			periodEnd = obs.PeriodEnd.UTC()
		}
		origin := obs.OriginType
		if origin == "" {
			origin = models.OriginFile
		}
		if _, err := stmt.ExecContext(ctx,
			string(obs.Source), string(origin), obs.Identifier, obs.PeriodStart.UTC(), periodEnd,
			string(obs.Resolution), nullDecimalToAny(obs.Value), obs.Unit, string(data),
		); err != nil {
			stmt.Close()
			return 0, fmt.Errorf("failed to copy raw observation %s: %w", obs.Identifier, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return 0, fmt.Errorf("failed to flush raw copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return 0, fmt.Errorf("failed to close raw copy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit raw batch: %w", err)
	}
	return len(batch), nil
}
