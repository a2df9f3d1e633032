package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nextcoretech/procurement-backend/pkg/enums"
)

// Document is one procurement document instance. The source fields form the
// single backward edge of the chain; they reference, they do not own.
type Document struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Kind       enums.DocKind   `gorm:"column:kind;type:doc_kind;not null;uniqueIndex:idx_documents_kind_no,priority:1" json:"kind"`
	DocNo      string          `gorm:"column:doc_no;not null;uniqueIndex:idx_documents_kind_no,priority:2" json:"doc_no"`
	Status     enums.DocStatus `gorm:"column:status;type:doc_status;not null;default:'draft'" json:"status"`
	Supplier   *string         `gorm:"column:supplier" json:"supplier,omitempty"`
	Currency   string          `gorm:"column:currency;not null;default:'USD'" json:"currency"`
	SourceKind *enums.DocKind  `gorm:"column:source_kind;type:doc_kind;index:idx_documents_source,priority:1" json:"source_kind,omitempty"`
	SourceNo   *string         `gorm:"column:source_no;index:idx_documents_source,priority:2" json:"source_no,omitempty"`
	Items      []DocumentItem  `gorm:"foreignKey:DocumentID;references:ID" json:"items"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// HasSource reports whether both source fields are set.
func (d *Document) HasSource() bool {
	return d.SourceKind != nil && d.SourceNo != nil
}

// PartialSource reports whether exactly one source field is set. A partial
// reference always fails validation, it is never silently ignored.
func (d *Document) PartialSource() bool {
	return (d.SourceKind != nil) != (d.SourceNo != nil)
}

// ItemQty returns the requested quantity for the given item code.
func (d *Document) ItemQty(itemCode string) (decimal.Decimal, bool) {
	for _, item := range d.Items {
		if item.ItemCode == itemCode {
			return item.Qty, true
		}
	}
	return decimal.Zero, false
}

// GrandTotal sums rate*qty across all item lines.
func (d *Document) GrandTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range d.Items {
		total = total.Add(item.Amount())
	}
	return total
}
