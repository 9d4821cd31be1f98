package ingest

import (
	"context"
	"fmt"
	"io"

	"github.com/Energy-Exe/energyexe-core-backend/internal/models"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Result is the outcome of parsing one artifact.
type Result struct {
	Observations  []models.RawObservation
	MappedColumns int
	Chunks        int
	SkippedRows   int
	SkippedCells  int
}

// Importer parses spreadsheet artifacts with a fixed layout.
type Importer struct {
	layout    Layout
	workers   int
	chunkSize int
	logger    *zap.Logger
}

// NewImporter creates an importer. workers < 1 means 1; chunkSize < 1 means
// one chunk per worker.
func NewImporter(layout Layout, workers, chunkSize int, logger *zap.Logger) *Importer {
	if workers < 1 {
		workers = 1
	}
	return &Importer{
		layout:    layout,
		workers:   workers,
		chunkSize: chunkSize,
		logger:    logger,
	}
}

// ReadWorkbook loads all rows of the layout's sheet.
func (im *Importer) ReadWorkbook(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := im.layout.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

// Parse builds the column mapping once from the header rows, then converts
// the data rows chunk by chunk on the worker pool. Output order follows the
// sheet.
func (im *Importer) Parse(ctx context.Context, rows [][]string, known func(code string) bool) (Result, error) {
	l := im.layout
	if l.CodeRow < 1 || l.CodeRow > len(rows) {
		return Result{}, fmt.Errorf("code row %d outside sheet of %d rows", l.CodeRow, len(rows))
	}
	var nameRow []string
	if l.NameRow >= 1 && l.NameRow <= len(rows) {
		nameRow = rows[l.NameRow-1]
	}
	mapping := BuildColumnMapping(rows[l.CodeRow-1], nameRow, known)
	if mapping.Len() == 0 {
		return Result{}, fmt.Errorf("no asset columns in code row %d: %w", l.CodeRow, ErrMissingMapping)
	}
	im.logger.Info("Built column mapping",
		zap.String("source", string(l.Source)),
		zap.Int("columns", mapping.Len()),
		zap.Int("codes", len(mapping.Codes())),
	)

	first := l.DataRow
	if first < 1 {
		first = l.CodeRow + 1
	}
	var data []Row
	for i := first - 1; i < len(rows); i++ {
		data = append(data, Row{Number: i + 1, Cells: rows[i]})
	}

	size := im.chunkSize
	if size < 1 {
		size = (len(data) + im.workers - 1) / im.workers
	}
	chunks := SplitChunks(data, size, mapping)
	results := make([]ChunkResult, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.workers)
	for _, c := range chunks {
		c := c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := ProcessChunk(c, l)
			if err != nil {
				return err
			}
			results[c.Index] = res
			im.logger.Debug("Processed chunk",
				zap.Int("chunk", c.Index),
				zap.Int("rows", len(c.Rows)),
				zap.Int("observations", len(res.Observations)),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	out := Result{MappedColumns: mapping.Len(), Chunks: len(chunks)}
	for _, r := range results {
		out.Observations = append(out.Observations, r.Observations...)
		out.SkippedRows += r.SkippedRows
		out.SkippedCells += r.SkippedCells
	}
	return out, nil
}
