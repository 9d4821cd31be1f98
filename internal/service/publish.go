package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Energy-Exe/energyexe-core-backend/common/redis"
	"github.com/Energy-Exe/energyexe-core-backend/internal/models"

	"go.uber.org/zap"
)

const (
	// RunStream is the Redis stream that receives run reports.
	RunStream = "harmonizer:runs"
	// RunTopicPrefix prefixes the per-source MQTT topic.
	RunTopicPrefix = "harmonizer/runs/"

	runStreamMaxLen = 1000
)

// Publisher delivers a finished run report somewhere.
type Publisher interface {
	Publish(ctx context.Context, report *models.RunReport) error
}

// ReportFileWriter writes each report as JSON into a run-log directory.
type ReportFileWriter struct {
	dir    string
	logger *zap.Logger
}

func NewReportFileWriter(dir string, logger *zap.Logger) *ReportFileWriter {
	return &ReportFileWriter{dir: dir, logger: logger}
}

// Path is where the report of runID is written.
func (w *ReportFileWriter) Path(report *models.RunReport) string {
	name := fmt.Sprintf("%s_%s_%s.json", report.Source, report.StartedAt.Format("20060102T150405Z"), report.RunID)
	return filepath.Join(w.dir, name)
}

func (w *ReportFileWriter) Publish(ctx context.Context, report *models.RunReport) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create run-log directory: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run report: %w", err)
	}
	path := w.Path(report)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write run report: %w", err)
	}
	w.logger.Info("Wrote run report", zap.String("path", path))
	return nil
}

// ReadReport loads a report written by ReportFileWriter.
func ReadReport(path string) (*models.RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run report: %w", err)
	}
	var report models.RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to decode run report %s: %w", path, err)
	}
	return &report, nil
}

// StreamPublisher appends reports to the harmonizer:runs Redis stream.
type StreamPublisher struct {
	client *redis.Client
	stream string
}

func NewStreamPublisher(client *redis.Client) *StreamPublisher {
	return &StreamPublisher{client: client, stream: RunStream}
}

func (p *StreamPublisher) Publish(ctx context.Context, report *models.RunReport) error {
	_, err := redis.PublishJSONToStream(ctx, p.client, p.stream, runStreamMaxLen, summarize(report))
	return err
}

// MessagePublisher is the MQTT client contract.
type MessagePublisher interface {
	Publish(topic string, retained bool, payload []byte) error
}

// MQTTPublisher posts a report summary to harmonizer/runs/<source>.
type MQTTPublisher struct {
	client MessagePublisher
}

func NewMQTTPublisher(client MessagePublisher) *MQTTPublisher {
	return &MQTTPublisher{client: client}
}

func (p *MQTTPublisher) Publish(ctx context.Context, report *models.RunReport) error {
	payload, err := json.Marshal(summarize(report))
	if err != nil {
		return fmt.Errorf("failed to encode run summary: %w", err)
	}
	return p.client.Publish(RunTopicPrefix+string(report.Source), true, payload)
}

// RunSummary is the report without per-unit detail.
type RunSummary struct {
	RunID          string             `json:"run_id"`
	Source         models.Source      `json:"source"`
	Start          string             `json:"start"`
	End            string             `json:"end"`
	Granularity    models.Granularity `json:"granularity"`
	DryRun         bool               `json:"dry_run"`
	UnitsAttempted int                `json:"units_attempted"`
	UnitsSucceeded int                `json:"units_succeeded"`
	UnitsFailed    int                `json:"units_failed"`
	RecordsWritten int                `json:"records_written"`
	ElapsedSeconds float64            `json:"elapsed_seconds"`
	FailedUnits    []string           `json:"failed_units,omitempty"`
}

func summarize(r *models.RunReport) RunSummary {
	s := RunSummary{
		RunID:          r.RunID,
		Source:         r.Source,
		Start:          r.Start.Format("2006-01-02"),
		End:            r.End.Format("2006-01-02"),
		Granularity:    r.Granularity,
		DryRun:         r.DryRun,
		UnitsAttempted: r.UnitsAttempted,
		UnitsSucceeded: r.UnitsSucceeded,
		UnitsFailed:    r.UnitsFailed,
		RecordsWritten: r.RecordsWritten,
		ElapsedSeconds: r.ElapsedSeconds,
	}
	for _, u := range r.FailedUnits() {
		s.FailedUnits = append(s.FailedUnits, u.Start.Format("2006-01-02"))
	}
	return s
}
