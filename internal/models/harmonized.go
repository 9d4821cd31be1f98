package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QualityFlag is the discrete band of a quality score.
type QualityFlag string

const (
	QualityHigh   QualityFlag = "HIGH"
	QualityMedium QualityFlag = "MEDIUM"
	QualityLow    QualityFlag = "LOW"
	QualityPoor   QualityFlag = "POOR"
)

// recordNamespace seeds the deterministic record ids.
var recordNamespace = uuid.MustParse("5b0c7a52-3f0e-4d44-9a57-0c1f2f6d2b8e")

// HarmonizedRecord is one row of generation_data.
type HarmonizedRecord struct {
	ID                 uuid.UUID
	BucketStart        time.Time
	Identifier         string
	PhaseID            *int64
	ParentAssetID      *int64
	Source             Source
	SourceResolution   Resolution
	MeteredEnergy      decimal.Decimal
	CurtailedEnergy    *decimal.Decimal
	TotalEnergy        decimal.Decimal
	CapacityMWSnapshot *decimal.Decimal
	CapacityFactor     *decimal.Decimal
	RawCapacityMW      *decimal.Decimal
	RawCapacityFactor  *decimal.Decimal
	QualityScore       decimal.Decimal
	QualityFlag        QualityFlag
	Completeness       decimal.Decimal
	DataPoints         int
	ExpectedPoints     int
	ProvenanceIDs      []int64
	LowConfidence      bool
}

// NaturalKey is (bucket, phase, source). Unmatched rows have no phase and are
// keyed on their identifier instead.
func (r HarmonizedRecord) NaturalKey() string {
	if r.PhaseID != nil {
		return fmt.Sprintf("%s|phase:%d|%s", r.BucketStart.UTC().Format(time.RFC3339), *r.PhaseID, r.Source)
	}
	return fmt.Sprintf("%s|code:%s|%s", r.BucketStart.UTC().Format(time.RFC3339), r.Identifier, r.Source)
}

// AssignID derives the record id from its natural key so re-runs produce
// identical rows.
func (r *HarmonizedRecord) AssignID() {
	r.ID = uuid.NewSHA1(recordNamespace, []byte(r.NaturalKey()))
}
