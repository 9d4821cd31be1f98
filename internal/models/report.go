package models

import "time"

// Unit statuses.
const (
	UnitSucceeded = "succeeded"
	UnitFailed    = "failed"
)

// UnitResult is the outcome of one batch unit (one day or month of one source).
type UnitResult struct {
	Start                time.Time `json:"start"`
	End                  time.Time `json:"end"`
	Status               string    `json:"status"`
	Error                string    `json:"error,omitempty"`
	RawRows              int       `json:"raw_rows"`
	InvalidRows          int       `json:"invalid_rows"`
	DuplicatesDropped    int       `json:"duplicates_dropped"`
	LowConfidenceRows    int       `json:"low_confidence_rows"`
	LowConfidenceDropped int       `json:"low_confidence_dropped"`
	UnmatchedRows        int       `json:"unmatched_rows"`
	RecordsWritten       int       `json:"records_written"`
	RecordsDeleted       int       `json:"records_deleted"`
	ExpectedPeriods      int       `json:"expected_periods,omitempty"`
	ObservedPeriods      int       `json:"observed_periods,omitempty"`
	Completeness         float64   `json:"completeness"`
	ElapsedMS            int64     `json:"elapsed_ms"`
}

// RunReport summarizes one invocation of the batch driver.
type RunReport struct {
	RunID                string       `json:"run_id"`
	Source               Source       `json:"source"`
	Start                time.Time    `json:"start"`
	End                  time.Time    `json:"end"`
	Granularity          Granularity  `json:"granularity"`
	DryRun               bool         `json:"dry_run"`
	StartedAt            time.Time    `json:"started_at"`
	FinishedAt           time.Time    `json:"finished_at"`
	ElapsedSeconds       float64      `json:"elapsed_seconds"`
	UnitsAttempted       int          `json:"units_attempted"`
	UnitsSucceeded       int          `json:"units_succeeded"`
	UnitsFailed          int          `json:"units_failed"`
	RawRowsRead          int          `json:"raw_rows_read"`
	InvalidRows          int          `json:"invalid_rows"`
	DuplicatesDropped    int          `json:"duplicates_dropped"`
	LowConfidenceRows    int          `json:"low_confidence_rows"`
	LowConfidenceDropped int          `json:"low_confidence_dropped"`
	UnmatchedRows        int          `json:"unmatched_rows"`
	RecordsWritten       int          `json:"records_written"`
	RecordsDeleted       int          `json:"records_deleted"`
	Units                []UnitResult `json:"units"`
}

// Add folds a unit result into the totals.
func (r *RunReport) Add(u UnitResult) {
	r.UnitsAttempted++
	if u.Status == UnitSucceeded {
		r.UnitsSucceeded++
	} else {
		r.UnitsFailed++
	}
	r.RawRowsRead += u.RawRows
	r.InvalidRows += u.InvalidRows
	r.DuplicatesDropped += u.DuplicatesDropped
	r.LowConfidenceRows += u.LowConfidenceRows
	r.LowConfidenceDropped += u.LowConfidenceDropped
	r.UnmatchedRows += u.UnmatchedRows
	r.RecordsWritten += u.RecordsWritten
	r.RecordsDeleted += u.RecordsDeleted
	r.Units = append(r.Units, u)
}

// FailedUnits returns the units that did not succeed, in run order.
func (r *RunReport) FailedUnits() []UnitResult {
	var failed []UnitResult
	for _, u := range r.Units {
		if u.Status != UnitSucceeded {
			failed = append(failed, u)
		}
	}
	return failed
}
