// Package service drives harmonization runs over date ranges and reports on
// them.
package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Energy-Exe/energyexe-core-backend/internal/models"
	"github.com/Energy-Exe/energyexe-core-backend/internal/pipeline"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// UnitProcessor harmonizes one batch unit.
type UnitProcessor interface {
	Process(ctx context.Context, unit pipeline.Unit) (pipeline.Outcome, error)
}

// RunRequest describes one run.
type RunRequest struct {
	Source      models.Source
	Start       time.Time
	End         time.Time
	Granularity models.Granularity
	DryRun      bool
	Workers     int
}

// Driver iterates batch units and collects the run report.
type Driver struct {
	processor  UnitProcessor
	publishers []Publisher
	logger     *zap.Logger
	now        func() time.Time
}

// NewDriver creates a driver. Publishers receive every finished report.
func NewDriver(processor UnitProcessor, publishers []Publisher, logger *zap.Logger) *Driver {
	return &Driver{
		processor:  processor,
		publishers: publishers,
		logger:     logger,
		now:        time.Now,
	}
}

// Run processes every unit of the request. A failed unit is recorded and
// skipped; it never stops other units. Cancelling ctx stops scheduling new
// units and Run returns the partial report with ctx's error.
func (d *Driver) Run(ctx context.Context, req RunRequest) (*models.RunReport, error) {
	spans, err := SplitUnits(req.Start, req.End, req.Granularity)
	if err != nil {
		return nil, err
	}
	g := req.Granularity
	if g == "" {
		g = models.GranularityDay
	}
	report := &models.RunReport{
		RunID:       uuid.NewString(),
		Source:      req.Source,
		Start:       spans[0].Start,
		End:         spans[len(spans)-1].End,
		Granularity: g,
		DryRun:      req.DryRun,
	}
	return d.execute(ctx, report, spans, req.Workers)
}

// RetryFailed re-runs only the failed units of a previous report.
func (d *Driver) RetryFailed(ctx context.Context, prev *models.RunReport, workers int) (*models.RunReport, error) {
	failed := prev.FailedUnits()
	report := &models.RunReport{
		RunID:       uuid.NewString(),
		Source:      prev.Source,
		Start:       prev.Start,
		End:         prev.End,
		Granularity: prev.Granularity,
		DryRun:      prev.DryRun,
	}
	if len(failed) == 0 {
		d.logger.Info("No failed units to retry", zap.String("previous_run_id", prev.RunID))
		report.StartedAt = d.now().UTC()
		report.FinishedAt = report.StartedAt
		return report, nil
	}

	spans := make([]Span, len(failed))
	for i, u := range failed {
		spans[i] = Span{Start: u.Start, End: u.End}
	}
	d.logger.Info("Retrying failed units",
		zap.String("previous_run_id", prev.RunID),
		zap.Int("units", len(spans)),
	)
	return d.execute(ctx, report, spans, workers)
}

func (d *Driver) execute(ctx context.Context, report *models.RunReport, spans []Span, workers int) (*models.RunReport, error) {
	if workers < 1 {
		workers = 1
	}
	report.StartedAt = d.now().UTC()
	logger := d.logger.With(zap.String("run_id", report.RunID), zap.String("source", string(report.Source)))
	logger.Info("Starting harmonization run",
		zap.Time("start", report.Start),
		zap.Time("end", report.End),
		zap.String("granularity", string(report.Granularity)),
		zap.Int("units", len(spans)),
		zap.Int("workers", workers),
		zap.Bool("dry_run", report.DryRun),
	)

	results := make([]*models.UnitResult, len(spans))
	var group errgroup.Group
	group.SetLimit(workers)
	for i, span := range spans {
		if ctx.Err() != nil {
			break
		}
		i, span := i, span
		group.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			res := d.processUnit(ctx, logger, report, span)
			results[i] = &res
			return nil
		})
	}
	_ = group.Wait()

	for _, r := range results {
		if r != nil {
			report.Add(*r)
		}
	}
	sort.SliceStable(report.Units, func(i, j int) bool { return report.Units[i].Start.Before(report.Units[j].Start) })

	report.FinishedAt = d.now().UTC()
	report.ElapsedSeconds = report.FinishedAt.Sub(report.StartedAt).Seconds()
	logger.Info("Finished harmonization run",
		zap.Int("units_attempted", report.UnitsAttempted),
		zap.Int("units_succeeded", report.UnitsSucceeded),
		zap.Int("units_failed", report.UnitsFailed),
		zap.Int("records_written", report.RecordsWritten),
		zap.Float64("elapsed_seconds", report.ElapsedSeconds),
	)

	d.publish(ctx, report)
	return report, ctx.Err()
}

func (d *Driver) processUnit(ctx context.Context, logger *zap.Logger, report *models.RunReport, span Span) models.UnitResult {
	out, err := d.processor.Process(ctx, pipeline.Unit{
		Source: report.Source,
		Start:  span.Start,
		End:    span.End,
		DryRun: report.DryRun,
	})
	res := out.Result
	res.Start, res.End = span.Start, span.End
	if err != nil {
		res.Status = models.UnitFailed
		if res.Error == "" {
			res.Error = err.Error()
		}
		logger.Error("Batch unit failed",
			zap.Time("unit_start", span.Start),
			zap.Time("unit_end", span.End),
			zap.Int("raw_rows", res.RawRows),
			zap.Error(err),
		)
		return res
	}
	res.Status = models.UnitSucceeded
	return res
}

func (d *Driver) publish(ctx context.Context, report *models.RunReport) {
	// publishing must still happen for a cancelled run
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	for _, p := range d.publishers {
		if err := p.Publish(pctx, report); err != nil {
			d.logger.Warn("Failed to publish run report",
				zap.String("run_id", report.RunID),
				zap.String("publisher", fmt.Sprintf("%T", p)),
				zap.Error(err),
			)
		}
	}
}
