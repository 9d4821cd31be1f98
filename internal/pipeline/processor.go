// Package pipeline runs the harmonization steps for one batch unit: fetch,
// normalize, deduplicate, resolve phases, combine, evaluate and write.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Energy-Exe/energyexe-core-backend/internal/combiner"
	"github.com/Energy-Exe/energyexe-core-backend/internal/dedup"
	"github.com/Energy-Exe/energyexe-core-backend/internal/evaluator"
	"github.com/Energy-Exe/energyexe-core-backend/internal/models"
	"github.com/Energy-Exe/energyexe-core-backend/internal/normalizer"
	"github.com/Energy-Exe/energyexe-core-backend/internal/phase"
	"github.com/Energy-Exe/energyexe-core-backend/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// UnmatchedPolicy decides what happens to observations with no operational phase.
type UnmatchedPolicy string

const (
	// UnmatchedRetain keeps the energy with null capacity and capacity factor.
	UnmatchedRetain UnmatchedPolicy = "retain"
	// UnmatchedDrop discards the observation.
	UnmatchedDrop UnmatchedPolicy = "drop"
)

// ParseUnmatchedPolicy validates a policy name; empty means retain.
func ParseUnmatchedPolicy(s string) (UnmatchedPolicy, error) {
	switch UnmatchedPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case UnmatchedRetain, "":
		return UnmatchedRetain, nil
	case UnmatchedDrop:
		return UnmatchedDrop, nil
	}
	return "", fmt.Errorf("unknown unmatched policy %q", s)
}

// RawSource reads stored raw observations.
type RawSource interface {
	FetchRange(ctx context.Context, source models.Source, start, end time.Time) ([]models.RawObservation, error)
}

// Writer replaces the harmonized rows of a range.
type Writer interface {
	ReplaceRange(ctx context.Context, source models.Source, start, end time.Time, records []models.HarmonizedRecord) (repository.WriteResult, error)
}

// Options tunes a processor.
type Options struct {
	Unmatched UnmatchedPolicy
	CFCeiling decimal.Decimal
}

// Unit is one batch unit of one source.
type Unit struct {
	Source models.Source
	Start  time.Time
	End    time.Time
	DryRun bool
}

// Outcome is what processing a unit produced.
type Outcome struct {
	Records []models.HarmonizedRecord
	Result  models.UnitResult
}

// Processor harmonizes batch units against one phase snapshot.
type Processor struct {
	raw         RawSource
	writer      Writer
	normalizers *normalizer.Registry
	resolver    *phase.Resolver
	opts        Options
	logger      *zap.Logger
}

// NewProcessor creates a processor. The resolver's snapshot is shared by
// every unit processed.
func NewProcessor(raw RawSource, writer Writer, normalizers *normalizer.Registry, resolver *phase.Resolver, opts Options, logger *zap.Logger) *Processor {
	if opts.Unmatched == "" {
		opts.Unmatched = UnmatchedRetain
	}
	return &Processor{
		raw:         raw,
		writer:      writer,
		normalizers: normalizers,
		resolver:    resolver,
		opts:        opts,
		logger:      logger,
	}
}

// Process runs one unit. Records are written in a single transaction unless
// the unit is a dry run. The returned result carries the unit's counters
// even when an error is returned.
func (p *Processor) Process(ctx context.Context, unit Unit) (Outcome, error) {
	started := time.Now()
	res := models.UnitResult{Start: unit.Start.UTC(), End: unit.End.UTC(), Status: models.UnitFailed}
	out := Outcome{}
	finish := func(err error) (Outcome, error) {
		res.ElapsedMS = time.Since(started).Milliseconds()
		if err != nil {
			res.Error = err.Error()
		} else {
			res.Status = models.UnitSucceeded
		}
		out.Result = res
		return out, err
	}

	if !unit.End.After(unit.Start) {
		return finish(fmt.Errorf("%w: %s..%s", models.ErrInvalidRange, unit.Start, unit.End))
	}
	n, err := p.normalizers.Get(unit.Source)
	if err != nil {
		return finish(err)
	}
	prof := n.Profile()
	logger := p.logger.With(
		zap.String("source", string(unit.Source)),
		zap.Time("unit_start", unit.Start),
	)

	raw, err := p.raw.FetchRange(ctx, unit.Source, unit.Start.Add(-prof.FetchPadding), unit.End.Add(prof.FetchPadding))
	if err != nil {
		return finish(fmt.Errorf("failed to fetch raw observations: %w", err))
	}

	inRange := func(t time.Time) bool {
		return !t.Before(unit.Start) && t.Before(unit.End)
	}

	canon := make([]models.CanonicalObservation, 0, len(raw))
	for _, obs := range raw {
		c, err := n.Normalize(obs)
		if err != nil {
			// rows that fail to normalize are attributed by their stored period
			if !inRange(obs.PeriodStart) {
				continue
			}
			res.RawRows++
			switch {
			case errors.Is(err, models.ErrMissingSettlement):
				res.LowConfidenceRows++
				res.LowConfidenceDropped++
			default:
				res.InvalidRows++
				logger.Debug("Skipping raw observation", zap.Int64("raw_id", obs.ID), zap.Error(err))
			}
			continue
		}
		if !inRange(c.BucketStart) {
			continue
		}
		res.RawRows++
		if c.LowConfidence {
			res.LowConfidenceRows++
		}
		canon = append(canon, c)
	}

	deduped := dedup.Deduplicate(canon)
	res.DuplicatesDropped = deduped.Dropped()

	inputs := make([]combiner.Input, 0, len(deduped.Kept))
	for _, c := range deduped.Kept {
		ph, ok := p.resolver.Resolve(c.Source, c.Identifier, c.PeriodStartUTC)
		if !ok {
			res.UnmatchedRows++
			if p.opts.Unmatched == UnmatchedDrop {
				continue
			}
			inputs = append(inputs, combiner.Input{Obs: c})
			continue
		}
		inputs = append(inputs, combiner.Input{Obs: c, Phase: &ph})
	}

	eval := evaluator.New(evaluator.Policy{
		TrustRawCapacity: prof.TrustRawCapacity,
		CFCeiling:        p.opts.CFCeiling,
		Bucket:           prof.Bucket,
	})
	buckets := combiner.Combine(inputs)
	records := make([]models.HarmonizedRecord, 0, len(buckets))
	for _, b := range buckets {
		rec := eval.Evaluate(b)
		res.ExpectedPeriods += rec.ExpectedPoints
		res.ObservedPeriods += min(rec.DataPoints, rec.ExpectedPoints)
		records = append(records, rec)
	}
	if res.ExpectedPeriods > 0 {
		res.Completeness = float64(res.ObservedPeriods) / float64(res.ExpectedPeriods)
	}
	out.Records = records

	if err := repository.CheckUniqueKeys(records); err != nil {
		return finish(err)
	}
	if unit.DryRun {
		logger.Info("Dry run, skipping write", zap.Int("records", len(records)))
		return finish(nil)
	}

	wr, err := p.writer.ReplaceRange(ctx, unit.Source, unit.Start, unit.End, records)
	if err != nil {
		return finish(fmt.Errorf("failed to write harmonized records: %w", err))
	}
	res.RecordsDeleted = wr.Deleted
	res.RecordsWritten = wr.Inserted

	logger.Info("Processed unit",
		zap.Int("raw_rows", res.RawRows),
		zap.Int("duplicates_dropped", res.DuplicatesDropped),
		zap.Int("unmatched_rows", res.UnmatchedRows),
		zap.Int("records_written", res.RecordsWritten),
	)
	return finish(nil)
}
