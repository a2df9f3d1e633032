package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentItem is one requested line on a procurement document.
type DocumentItem struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	DocumentID uuid.UUID       `gorm:"column:document_id;type:uuid;not null;index" json:"document_id"`
	ItemCode   string          `gorm:"column:item_code;not null" json:"item_code"`
	ItemName   string          `gorm:"column:item_name;not null" json:"item_name"`
	Qty        decimal.Decimal `gorm:"column:qty;type:numeric(18,6);not null" json:"qty"`
	UOM        string          `gorm:"column:uom;not null;default:'unit'" json:"uom"`
	Rate       decimal.Decimal `gorm:"column:rate;type:numeric(18,6);not null;default:0" json:"rate"`
	Position   int             `gorm:"column:position;not null;default:0" json:"position"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// Amount is rate * qty for the line.
func (i DocumentItem) Amount() decimal.Decimal {
	return i.Rate.Mul(i.Qty)
}
