package enums

import "fmt"

// DocKind maps to the doc_kind enum in Postgres and names one step of the
// procurement chain.
type DocKind string

const (
	DocKindMaterialRequest     DocKind = "material_request"
	DocKindPurchaseRequisition DocKind = "purchase_requisition"
	DocKindRFQ                 DocKind = "rfq"
	DocKindSupplierQuotation   DocKind = "supplier_quotation"
	DocKindPurchaseOrder       DocKind = "purchase_order"
	DocKindPurchaseReceipt     DocKind = "purchase_receipt"
	DocKindPurchaseInvoice     DocKind = "purchase_invoice"
)

var validDocKinds = []DocKind{
	DocKindMaterialRequest,
	DocKindPurchaseRequisition,
	DocKindRFQ,
	DocKindSupplierQuotation,
	DocKindPurchaseOrder,
	DocKindPurchaseReceipt,
	DocKindPurchaseInvoice,
}

// AllDocKinds returns every procurement document kind in chain order.
func AllDocKinds() []DocKind {
	kinds := make([]DocKind, len(validDocKinds))
	copy(kinds, validDocKinds)
	return kinds
}

// IsValid reports whether the value matches the canonical doc kind enum.
func (k DocKind) IsValid() bool {
	for _, candidate := range validDocKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseDocKind converts raw input into DocKind.
func ParseDocKind(value string) (DocKind, error) {
	for _, candidate := range validDocKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid document kind %q", value)
}
