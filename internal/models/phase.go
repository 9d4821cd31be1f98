package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetPhase is one operational version of a generation asset. Several phases
// share a Code when an asset is repowered or expanded.
type AssetPhase struct {
	ID            int64            `json:"id"`
	Code          string           `json:"code"`
	Source        Source           `json:"source"`
	Name          string           `json:"name"`
	CapacityMW    *decimal.Decimal `json:"capacity_mw,omitempty"`
	ValidFrom     time.Time        `json:"valid_from"`
	ValidUntil    *time.Time       `json:"valid_until,omitempty"`
	ParentAssetID *int64           `json:"parent_asset_id,omitempty"`
}

// Contains reports whether ts lies in [ValidFrom, ValidUntil).
func (p AssetPhase) Contains(ts time.Time) bool {
	if ts.Before(p.ValidFrom) {
		return false
	}
	return p.ValidUntil == nil || ts.Before(*p.ValidUntil)
}
