package models

import (
	"fmt"
	"strings"
	"time"
)

// Source identifies an upstream data provider.
type Source string

const (
	SourceENTSOE          Source = "ENTSOE"
	SourceELEXON          Source = "ELEXON"
	SourceTAIPOWER        Source = "TAIPOWER"
	SourceNVE             Source = "NVE"
	SourceENERGISTYRELSEN Source = "ENERGISTYRELSEN"
	SourceEIA             Source = "EIA"
)

// AllSources lists every supported source in processing order.
var AllSources = []Source{
	SourceENTSOE,
	SourceELEXON,
	SourceTAIPOWER,
	SourceNVE,
	SourceENERGISTYRELSEN,
	SourceEIA,
}

// ParseSource accepts any casing of a known source name.
func ParseSource(s string) (Source, error) {
	up := Source(strings.ToUpper(strings.TrimSpace(s)))
	for _, src := range AllSources {
		if src == up {
			return src, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSource, s)
}

// OriginType is how a raw observation reached storage.
type OriginType string

const (
	OriginAPI  OriginType = "api"
	OriginFile OriginType = "file"
)

// Precedence ranks origins; higher wins during deduplication.
func (o OriginType) Precedence() int {
	switch o {
	case OriginAPI:
		return 2
	case OriginFile:
		return 1
	default:
		return 0
	}
}

// ParseOriginType maps stored data_type labels onto origins. Bulk imports have
// historically been labelled "csv", "file" or "excel".
func ParseOriginType(s string) OriginType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "api":
		return OriginAPI
	default:
		return OriginFile
	}
}

// Resolution is the nominal sampling period of a raw observation.
type Resolution string

const (
	PT15M Resolution = "PT15M"
	PT30M Resolution = "PT30M"
	PT60M Resolution = "PT60M"
	P1M   Resolution = "P1M"
)

// ParseResolution accepts ISO 8601 codes and the shorthand used by importers.
func ParseResolution(s string) (Resolution, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PT15M", "15MIN", "15M":
		return PT15M, nil
	case "PT30M", "30MIN", "30M":
		return PT30M, nil
	case "PT60M", "PT1H", "60MIN", "HOUR", "HOURLY", "1H":
		return PT60M, nil
	case "P1M", "MONTH", "MONTHLY":
		return P1M, nil
	}
	return "", fmt.Errorf("unknown resolution %q", s)
}

// Duration returns the sample length. Monthly resolution returns 0.
func (r Resolution) Duration() time.Duration {
	switch r {
	case PT15M:
		return 15 * time.Minute
	case PT30M:
		return 30 * time.Minute
	case PT60M:
		return time.Hour
	}
	return 0
}

// SamplesPerBucket is the number of samples expected in one output bucket
// (one hour for sub-monthly resolutions, one month for P1M).
func (r Resolution) SamplesPerBucket() int {
	switch r {
	case PT15M:
		return 4
	case PT30M:
		return 2
	default:
		return 1
	}
}

// ValueKind distinguishes instantaneous power from integrated energy.
type ValueKind string

const (
	KindPower  ValueKind = "power"
	KindEnergy ValueKind = "energy"
)

// Sign is the flow direction reported by the source.
type Sign string

const (
	SignNone   Sign = ""
	SignExport Sign = "export"
	SignImport Sign = "import"
)

// Measure separates delivered generation from curtailed (undelivered) energy.
type Measure string

const (
	MeasureGeneration  Measure = "generation"
	MeasureCurtailment Measure = "curtailment"
)

// Granularity is the batch unit of the driver and the bucket size of output.
type Granularity string

const (
	GranularityHour  Granularity = "hour"
	GranularityDay   Granularity = "day"
	GranularityMonth Granularity = "month"
)
