package repository

import (
	"database/sql"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// nullDecimalToAny maps a nil decimal to SQL NULL.
func nullDecimalToAny(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

func nullInt64ToAny(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func decimalPtr(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func decodeJSONMap(raw []byte) (map[string]interface{}, error) {
	out := make(map[string]interface{})
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func fromNullDecimal(nd decimal.NullDecimal) *decimal.Decimal {
	if !nd.Valid {
		return nil
	}
	d := nd.Decimal
	return &d
}
