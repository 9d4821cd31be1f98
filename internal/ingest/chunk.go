package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Energy-Exe/energyexe-core-backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Row is one data row of the sheet. Number is the 1-based sheet row.
type Row struct {
	Number int
	Cells  []string
}

// Chunk is a contiguous slice of data rows handed to one worker.
type Chunk struct {
	Index   int
	Rows    []Row
	Mapping *ColumnMapping
}

// Layout describes how an artifact is laid out and what its cells mean.
type Layout struct {
	Source     models.Source
	Sheet      string // empty = first sheet
	NameRow    int    // 1-based; 0 = no name row
	CodeRow    int    // 1-based
	DataRow    int    // first 1-based data row
	Resolution models.Resolution
	ValueKind  models.ValueKind
	Unit       string
	Location   *time.Location // timezone of the timestamp column
}

// NVELayout matches the NVE production workbook: names in row 1, unit codes
// in row 2, hourly MWh from row 4.
func NVELayout() Layout {
	loc, err := time.LoadLocation("Europe/Oslo")
	if err != nil {
		loc = time.UTC
	}
	return Layout{
		Source:     models.SourceNVE,
		NameRow:    1,
		CodeRow:    2,
		DataRow:    4,
		Resolution: models.PT60M,
		ValueKind:  models.KindEnergy,
		Unit:       "MWh",
		Location:   loc,
	}
}

// SplitChunks cuts rows into chunks of at most size rows. Every chunk carries
// the same mapping.
func SplitChunks(rows []Row, size int, mapping *ColumnMapping) []Chunk {
	if size <= 0 {
		size = len(rows)
	}
	var chunks []Chunk
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		chunks = append(chunks, Chunk{
			Index:   len(chunks),
			Rows:    rows[start:end],
			Mapping: mapping,
		})
	}
	return chunks
}

// ChunkResult is what one chunk produced.
type ChunkResult struct {
	Observations []models.RawObservation
	SkippedRows  int
	SkippedCells int
}

// ProcessChunk converts the rows of a chunk into raw observations, one per
// mapped non-empty cell. It never derives a mapping from its own rows.
func ProcessChunk(chunk Chunk, layout Layout) (ChunkResult, error) {
	if chunk.Mapping.Len() == 0 {
		return ChunkResult{}, fmt.Errorf("chunk %d: %w", chunk.Index, ErrMissingMapping)
	}
	loc := layout.Location
	if loc == nil {
		loc = time.UTC
	}
	step := layout.Resolution.Duration()

	var res ChunkResult
	for _, row := range chunk.Rows {
		if len(row.Cells) == 0 {
			res.SkippedRows++
			continue
		}
		ts, err := parseTimestamp(row.Cells[0], loc)
		if err != nil {
			res.SkippedRows++
			continue
		}
		start := ts.UTC()

		for _, col := range chunk.Mapping.Columns() {
			if col >= len(row.Cells) {
				continue
			}
			value, ok := parseValue(row.Cells[col])
			if !ok {
				if strings.TrimSpace(row.Cells[col]) != "" {
					res.SkippedCells++
				}
				continue
			}
			code, _ := chunk.Mapping.Code(col)
			colName, _ := excelize.ColumnNumberToName(col + 1)

			meta := models.Metadata{
				"unit_code": code,
				"column":    colName,
				"row":       row.Number,
				"timestamp": ts.Format(time.RFC3339),
			}
			if name := chunk.Mapping.Name(col); name != "" {
				meta["unit_name"] = name
			}
			if sub := chunk.Mapping.SubUnit(col); sub != "" {
				meta["sub_unit"] = sub
			}
			v := value
			res.Observations = append(res.Observations, models.RawObservation{
				Source:      layout.Source,
				OriginType:  models.OriginFile,
				Measure:     models.MeasureGeneration,
				Identifier:  code,
				PeriodStart: start,
				PeriodEnd:   start.Add(step),
				Resolution:  layout.Resolution,
				Value:       &v,
				ValueKind:   layout.ValueKind,
				Unit:        layout.Unit,
				Metadata:    meta,
			})
		}
	}
	return res, nil
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"02.01.2006 15:04",
	"02.01.2006 15:04:05",
	"1/2/06 15:04",
	"01-02-06 15:04",
}

// parseTimestamp reads a rendered timestamp cell, or an Excel serial date.
func parseTimestamp(cell string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, err
		}
		// serial dates carry no zone; reinterpret the wall clock in loc
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func parseValue(cell string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(cell)
	switch strings.ToLower(s) {
	case "", "-", "nan", "n/a":
		return decimal.Decimal{}, false
	}
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}
