package models

import (
	"time"

	"github.com/google/uuid"
)

// Ledger application directions.
const (
	LedgerDirectionSubmit = "submit"
	LedgerDirectionCancel = "cancel"
)

// LedgerApplication is the processed-flag row that makes submit/cancel ledger
// deltas idempotent: a duplicate hook invocation finds the row and skips the
// accumulation instead of double counting.
type LedgerApplication struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	DocumentID uuid.UUID `gorm:"column:document_id;type:uuid;not null;uniqueIndex:idx_ledger_application,priority:1" json:"document_id"`
	Direction  string    `gorm:"column:direction;not null;uniqueIndex:idx_ledger_application,priority:2" json:"direction"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
