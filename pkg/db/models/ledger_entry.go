package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nextcoretech/procurement-backend/pkg/enums"
)

// LedgerEntry accumulates the quantity of one item consumed from a source
// document by non-cancelled descendants of one target kind. Derived data: it
// must always agree with recomputation over the documents table.
type LedgerEntry struct {
	ID         int64           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	SourceKind enums.DocKind   `gorm:"column:source_kind;type:doc_kind;not null;uniqueIndex:idx_ledger_key,priority:1" json:"source_kind"`
	SourceNo   string          `gorm:"column:source_no;not null;uniqueIndex:idx_ledger_key,priority:2" json:"source_no"`
	TargetKind enums.DocKind   `gorm:"column:target_kind;type:doc_kind;not null;uniqueIndex:idx_ledger_key,priority:3" json:"target_kind"`
	ItemCode   string          `gorm:"column:item_code;not null;uniqueIndex:idx_ledger_key,priority:4" json:"item_code"`
	Consumed   decimal.Decimal `gorm:"column:consumed;type:numeric(18,6);not null;default:0" json:"consumed"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
