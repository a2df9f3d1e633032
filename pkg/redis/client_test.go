package redis

import (
	"strings"
	"testing"
)

func TestAvailabilityKeyShape(t *testing.T) {
	key := AvailabilityKey("rfq", "RFQ-1", "purchase_order")
	if key != "procure:availability:rfq:RFQ-1:purchase_order" {
		t.Fatalf("unexpected key %q", key)
	}
}

func TestAvailabilityKeysShareInvalidationPrefix(t *testing.T) {
	prefix := AvailabilityKeyPrefix("material_request", "MR-1")

	// Every per-target key for one source document must sit under the
	// prefix a ledger write invalidates.
	for _, target := range []string{"purchase_requisition", "rfq"} {
		key := AvailabilityKey("material_request", "MR-1", target)
		if !strings.HasPrefix(key, prefix+":") {
			t.Fatalf("key %q not under prefix %q", key, prefix)
		}
	}

	other := AvailabilityKey("material_request", "MR-2", "rfq")
	if strings.HasPrefix(other, prefix+":") {
		t.Fatalf("key %q for another source must not match prefix %q", other, prefix)
	}
}
