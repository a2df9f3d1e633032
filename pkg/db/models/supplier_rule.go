package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SupplierRule maps a half-open monetary interval [AmountFrom, AmountTo) to a
// minimum required supplier count on an RFQ. Active rule ranges must not
// overlap; lower Priority wins when more than one matches.
type SupplierRule struct {
	ID           int64           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	RuleName     string          `gorm:"column:rule_name;not null;uniqueIndex" json:"rule_name"`
	AmountFrom   decimal.Decimal `gorm:"column:amount_from;type:numeric(18,6);not null" json:"amount_from"`
	AmountTo     decimal.Decimal `gorm:"column:amount_to;type:numeric(18,6);not null" json:"amount_to"`
	MinSuppliers int             `gorm:"column:min_suppliers;not null" json:"min_suppliers"`
	Priority     int             `gorm:"column:priority;not null;default:100" json:"priority"`
	Active       bool            `gorm:"column:active;not null;default:true" json:"active"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// Covers reports whether amount falls in the rule's half-open interval.
func (r SupplierRule) Covers(amount decimal.Decimal) bool {
	return r.AmountFrom.LessThanOrEqual(amount) && amount.LessThan(r.AmountTo)
}

// Overlaps applies the half-open interval overlap test against other:
// (a.from < b.to) AND (b.from < a.to).
func (r SupplierRule) Overlaps(other SupplierRule) bool {
	return r.AmountFrom.LessThan(other.AmountTo) && other.AmountFrom.LessThan(r.AmountTo)
}
