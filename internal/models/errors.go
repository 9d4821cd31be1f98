package models

import "errors"

var (
	// ErrUnknownSource is returned for source names with no registered normalizer.
	ErrUnknownSource = errors.New("unknown source")
	// ErrMissingValue marks a raw observation without a numeric value.
	ErrMissingValue = errors.New("raw observation has no value")
	// ErrMissingSettlement marks a local-calendar record without settlement metadata.
	ErrMissingSettlement = errors.New("missing local settlement metadata")
	// ErrDuplicateKey is returned when two harmonized records share a natural key.
	ErrDuplicateKey = errors.New("duplicate harmonized key")
	// ErrInvalidRange is returned for empty or inverted date ranges.
	ErrInvalidRange = errors.New("invalid date range")
)
