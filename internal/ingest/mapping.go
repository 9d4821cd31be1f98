// Package ingest turns spreadsheet artifacts (one timestamp column, one column
// per asset code) into raw observations.
package ingest

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrMissingMapping is returned when a chunk is processed without the
// column mapping built from the artifact's header.
var ErrMissingMapping = errors.New("column mapping is required")

// ColumnMapping maps a sheet column index to an asset code. It is built once
// from the header and shared read-only by every chunk worker.
type ColumnMapping struct {
	codes   map[int]string
	names   map[int]string
	columns []int
	shared  map[string]int // columns per code
}

// BuildColumnMapping reads asset codes from codeRow, skipping the first
// (timestamp) column. nameRow may be nil. When known is non-nil, codes it
// rejects are left out of the mapping.
func BuildColumnMapping(codeRow, nameRow []string, known func(code string) bool) *ColumnMapping {
	m := &ColumnMapping{
		codes:  make(map[int]string),
		names:  make(map[int]string),
		shared: make(map[string]int),
	}
	for col := 1; col < len(codeRow); col++ {
		code := normalizeCode(codeRow[col])
		if code == "" {
			continue
		}
		if known != nil && !known(code) {
			continue
		}
		m.codes[col] = code
		if col < len(nameRow) {
			if name := strings.TrimSpace(nameRow[col]); name != "" {
				m.names[col] = name
			}
		}
		m.columns = append(m.columns, col)
		m.shared[code]++
	}
	sort.Ints(m.columns)
	return m
}

// Len is the number of mapped columns.
func (m *ColumnMapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.columns)
}

// Columns returns the mapped column indexes in ascending order.
func (m *ColumnMapping) Columns() []int {
	out := make([]int, len(m.columns))
	copy(out, m.columns)
	return out
}

// Code returns the asset code for a column.
func (m *ColumnMapping) Code(col int) (string, bool) {
	code, ok := m.codes[col]
	return code, ok
}

// Name returns the header name of a column, or "" when the header had none.
func (m *ColumnMapping) Name(col int) string {
	return m.names[col]
}

// SubUnit labels col when its code spans several columns, so the readings
// of each column stay apart. A code with a single column has no sub-unit.
func (m *ColumnMapping) SubUnit(col int) string {
	code, ok := m.codes[col]
	if !ok || m.shared[code] < 2 {
		return ""
	}
	if name := m.names[col]; name != "" {
		return name
	}
	label, _ := excelize.ColumnNumberToName(col + 1)
	return label
}

// Codes returns the distinct mapped codes, sorted.
func (m *ColumnMapping) Codes() []string {
	seen := make(map[string]bool, len(m.codes))
	var out []string
	for _, code := range m.codes {
		if !seen[code] {
			seen[code] = true
			out = append(out, code)
		}
	}
	sort.Strings(out)
	return out
}

// normalizeCode turns spreadsheet renderings like "20.0" into "20".
func normalizeCode(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return s
}
