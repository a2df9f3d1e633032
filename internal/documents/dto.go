package documents

import (
	"github.com/shopspring/decimal"

	"github.com/nextcoretech/procurement-backend/pkg/db/models"
	"github.com/nextcoretech/procurement-backend/pkg/enums"
)

// ItemInput is one requested line on a document being created. Name, UOM and
// rate are filled from the source line when the document is sourced.
type ItemInput struct {
	ItemCode string          `json:"item_code"`
	ItemName string          `json:"item_name"`
	Qty      decimal.Decimal `json:"qty"`
	UOM      string          `json:"uom"`
	Rate     decimal.Decimal `json:"rate"`
}

// CreateInput captures a draft document to be created.
type CreateInput struct {
	Kind       enums.DocKind  `json:"kind"`
	DocNo      string         `json:"doc_no"`
	Supplier   string         `json:"supplier"`
	Currency   string         `json:"currency"`
	SourceKind *enums.DocKind `json:"source_kind"`
	SourceNo   *string        `json:"source_no"`
	Items      []ItemInput    `json:"items"`
	// Suppliers lists the invited suppliers; RFQ only.
	Suppliers []string `json:"suppliers"`
}

// FromSourceInput drafts the next-step document from an existing one.
type FromSourceInput struct {
	SourceKind enums.DocKind `json:"source_kind"`
	SourceNo   string        `json:"source_no"`
	TargetKind enums.DocKind `json:"target_kind"`
	DocNo      string        `json:"doc_no"`
	// ItemCodes optionally restricts the copy to a subset of source lines.
	ItemCodes []string `json:"item_codes"`
	Supplier  string   `json:"supplier"`
}

// View is a document with its invited suppliers attached.
type View struct {
	models.Document
	Suppliers []string `json:"suppliers,omitempty"`
}

var docNoPrefixes = map[enums.DocKind]string{
	enums.DocKindMaterialRequest:     "MR",
	enums.DocKindPurchaseRequisition: "PR",
	enums.DocKindRFQ:                 "RFQ",
	enums.DocKindSupplierQuotation:   "SQ",
	enums.DocKindPurchaseOrder:       "PO",
	enums.DocKindPurchaseReceipt:     "REC",
	enums.DocKindPurchaseInvoice:     "INV",
}
