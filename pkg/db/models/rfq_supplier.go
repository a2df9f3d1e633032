package models

import (
	"time"

	"github.com/google/uuid"
)

// RFQSupplier is one supplier invited on a Request for Quotation. Only
// invited suppliers may submit quotations under the RFQ.
type RFQSupplier struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	DocumentID uuid.UUID `gorm:"column:document_id;type:uuid;not null;uniqueIndex:idx_rfq_suppliers_doc_supplier,priority:1" json:"document_id"`
	Supplier   string    `gorm:"column:supplier;not null;uniqueIndex:idx_rfq_suppliers_doc_supplier,priority:2" json:"supplier"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
