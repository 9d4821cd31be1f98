package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Metadata is the opaque per-source JSON payload stored with a raw observation.
type Metadata map[string]interface{}

// String returns the value under key as a trimmed string.
func (m Metadata) String(key string) (string, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", false
	}
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	default:
		s = fmt.Sprintf("%v", val)
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// Int returns the value under key as an int. JSON numbers arrive as float64.
func (m Metadata) Int(key string) (int, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case float64:
		return int(val), val == float64(int(val))
	case int:
		return val, true
	case int64:
		return int(val), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		return n, err == nil
	}
	return 0, false
}

// Decimal returns the value under key as a decimal.
func (m Metadata) Decimal(key string) (*decimal.Decimal, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, false
	}
	var d decimal.Decimal
	switch val := v.(type) {
	case float64:
		d = decimal.NewFromFloat(val)
	case int:
		d = decimal.NewFromInt(int64(val))
	case int64:
		d = decimal.NewFromInt(val)
	case string:
		parsed, err := decimal.NewFromString(strings.TrimSpace(val))
		if err != nil {
			return nil, false
		}
		d = parsed
	default:
		return nil, false
	}
	return &d, true
}

// RawObservation is one source-reported reading as stored by an ingestion
// connector. It is never mutated by the harmonizer.
type RawObservation struct {
	ID                int64
	Source            Source
	OriginType        OriginType
	Measure           Measure
	Identifier        string
	PeriodStart       time.Time
	PeriodEnd         time.Time
	Resolution        Resolution
	Value             *decimal.Decimal
	ValueKind         ValueKind
	Unit              string
	RawCapacityMW     *decimal.Decimal
	RawCapacityFactor *decimal.Decimal
	Sign              Sign
	Metadata          Metadata
}

// CanonicalObservation is a raw observation after source normalization: UTC
// period recovered, sign applied, units converted to MW or MWh.
type CanonicalObservation struct {
	RawID             int64
	Source            Source
	OriginType        OriginType
	Measure           Measure
	Identifier        string
	SubUnit           string
	PeriodStartUTC    time.Time
	PeriodEndUTC      time.Time
	BucketStart       time.Time
	Resolution        Resolution
	Value             decimal.Decimal
	ValueKind         ValueKind
	RawCapacityMW     *decimal.Decimal
	RawCapacityFactor *decimal.Decimal
	// LowConfidence is set when the UTC period could not be recomputed from
	// local-calendar metadata and the stored value was used instead.
	LowConfidence bool
}
