package documents

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nextcoretech/procurement-backend/internal/flows"
	"github.com/nextcoretech/procurement-backend/internal/qtyledger"
	"github.com/nextcoretech/procurement-backend/internal/rules"
	"github.com/nextcoretech/procurement-backend/pkg/db/models"
	"github.com/nextcoretech/procurement-backend/pkg/enums"
	pkgerrors "github.com/nextcoretech/procurement-backend/pkg/errors"
)

// memStore backs both the document and ledger repositories so service tests
// exercise the real validation and accounting logic end to end.
type memStore struct {
	docs         map[string]*models.Document
	rfqSuppliers map[uuid.UUID][]string
	entries      map[qtyledger.Key]map[string]decimal.Decimal
	applications map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		docs:         map[string]*models.Document{},
		rfqSuppliers: map[uuid.UUID][]string{},
		entries:      map[qtyledger.Key]map[string]decimal.Decimal{},
		applications: map[string]bool{},
	}
}

func storeKey(kind enums.DocKind, docNo string) string {
	return string(kind) + "/" + docNo
}

type docRepo struct{ store *memStore }

func (r docRepo) WithTx(*gorm.DB) Repository { return r }

func (r docRepo) Create(_ context.Context, doc *models.Document) error {
	r.store.docs[storeKey(doc.Kind, doc.DocNo)] = doc
	return nil
}

func (r docRepo) Get(_ context.Context, kind enums.DocKind, docNo string) (*models.Document, error) {
	return r.store.docs[storeKey(kind, docNo)], nil
}

func (r docRepo) GetForUpdate(ctx context.Context, kind enums.DocKind, docNo string) (*models.Document, error) {
	return r.Get(ctx, kind, docNo)
}

func (r docRepo) UpdateStatus(_ context.Context, doc *models.Document, status enums.DocStatus) error {
	stored := r.store.docs[storeKey(doc.Kind, doc.DocNo)]
	if stored == nil {
		return gorm.ErrRecordNotFound
	}
	stored.Status = status
	doc.Status = status
	return nil
}

func (r docRepo) ListChildren(_ context.Context, kind enums.DocKind, docNo string) ([]models.Document, error) {
	var out []models.Document
	for _, doc := range r.store.docs {
		if doc.HasSource() && *doc.SourceKind == kind && *doc.SourceNo == docNo {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (r docRepo) ReplaceRFQSuppliers(_ context.Context, documentID uuid.UUID, suppliers []string) error {
	r.store.rfqSuppliers[documentID] = suppliers
	return nil
}

func (r docRepo) ListRFQSuppliers(_ context.Context, documentID uuid.UUID) ([]models.RFQSupplier, error) {
	var out []models.RFQSupplier
	for _, supplier := range r.store.rfqSuppliers[documentID] {
		out = append(out, models.RFQSupplier{DocumentID: documentID, Supplier: supplier})
	}
	return out, nil
}

type ledgerRepo struct{ store *memStore }

func (r ledgerRepo) WithTx(*gorm.DB) qtyledger.Repository { return r }

func (r ledgerRepo) GetDocument(_ context.Context, kind enums.DocKind, docNo string) (*models.Document, error) {
	return r.store.docs[storeKey(kind, docNo)], nil
}

func (r ledgerRepo) resolvesTo(doc *models.Document, key qtyledger.Key) bool {
	if doc.Kind != key.TargetKind || !doc.HasSource() {
		return false
	}
	if key.TargetKind == enums.DocKindPurchaseOrder && key.SourceKind == enums.DocKindRFQ {
		if *doc.SourceKind != enums.DocKindSupplierQuotation {
			return false
		}
		quotation := r.store.docs[storeKey(enums.DocKindSupplierQuotation, *doc.SourceNo)]
		return quotation != nil && quotation.HasSource() &&
			*quotation.SourceKind == key.SourceKind && *quotation.SourceNo == key.SourceNo
	}
	return *doc.SourceKind == key.SourceKind && *doc.SourceNo == key.SourceNo
}

func (r ledgerRepo) consumers(key qtyledger.Key, submittedOnly bool) []models.Document {
	var out []models.Document
	for _, doc := range r.store.docs {
		if doc.Status == enums.DocStatusCancelled {
			continue
		}
		if submittedOnly && doc.Status != enums.DocStatusSubmitted {
			continue
		}
		if r.resolvesTo(doc, key) {
			out = append(out, *doc)
		}
	}
	return out
}

func (r ledgerRepo) ListConsumers(_ context.Context, key qtyledger.Key) ([]models.Document, error) {
	submittedOnly := key.TargetKind == enums.DocKindPurchaseOrder && key.SourceKind == enums.DocKindRFQ
	return r.consumers(key, submittedOnly), nil
}

func (r ledgerRepo) ListSubmittedConsumers(_ context.Context, key qtyledger.Key) ([]models.Document, error) {
	return r.consumers(key, true), nil
}

func (r ledgerRepo) ListEntries(_ context.Context, key qtyledger.Key) ([]models.LedgerEntry, error) {
	var out []models.LedgerEntry
	for itemCode, qty := range r.store.entries[key] {
		out = append(out, models.LedgerEntry{
			SourceKind: key.SourceKind, SourceNo: key.SourceNo,
			TargetKind: key.TargetKind, ItemCode: itemCode, Consumed: qty,
		})
	}
	return out, nil
}

func (r ledgerRepo) AddConsumed(_ context.Context, key qtyledger.Key, itemCode string, qty decimal.Decimal) error {
	if r.store.entries[key] == nil {
		r.store.entries[key] = map[string]decimal.Decimal{}
	}
	r.store.entries[key][itemCode] = r.store.entries[key][itemCode].Add(qty)
	return nil
}

func (r ledgerRepo) SubtractConsumed(_ context.Context, key qtyledger.Key, itemCode string, qty decimal.Decimal) error {
	if r.store.entries[key] == nil {
		return nil
	}
	next := r.store.entries[key][itemCode].Sub(qty)
	if next.IsNegative() {
		next = decimal.Zero
	}
	r.store.entries[key][itemCode] = next
	return nil
}

func (r ledgerRepo) ReplaceEntries(_ context.Context, key qtyledger.Key, consumed map[string]decimal.Decimal) error {
	bucket := map[string]decimal.Decimal{}
	for itemCode, qty := range consumed {
		bucket[itemCode] = qty
	}
	r.store.entries[key] = bucket
	return nil
}

func (r ledgerRepo) HasApplication(_ context.Context, documentID uuid.UUID, direction string) (bool, error) {
	return r.store.applications[documentID.String()+"/"+direction], nil
}

func (r ledgerRepo) RecordApplication(_ context.Context, documentID uuid.UUID, direction string) error {
	r.store.applications[documentID.String()+"/"+direction] = true
	return nil
}

func (r ledgerRepo) LockSource(context.Context, enums.DocKind, string) error { return nil }

type fakeFlows struct{ flow *models.ProcurementFlow }

func (f fakeFlows) WithTx(*gorm.DB) flows.Service { return f }

func (f fakeFlows) ActiveFlow(context.Context) (*models.ProcurementFlow, error) {
	return f.flow, nil
}

func (f fakeFlows) ListFlows(context.Context) ([]models.ProcurementFlow, error) {
	return []models.ProcurementFlow{*f.flow}, nil
}

func (f fakeFlows) ReplaceActiveFlow(context.Context, flows.ReplaceFlowInput) (*models.ProcurementFlow, error) {
	return f.flow, nil
}

type fakeRulesRepo struct{ rules []models.SupplierRule }

func (f *fakeRulesRepo) WithTx(*gorm.DB) rules.Repository { return f }

func (f *fakeRulesRepo) Create(_ context.Context, rule *models.SupplierRule) error {
	rule.ID = int64(len(f.rules) + 1)
	rule.CreatedAt = time.Now()
	f.rules = append(f.rules, *rule)
	return nil
}

func (f *fakeRulesRepo) Update(context.Context, *models.SupplierRule) error { return nil }

func (f *fakeRulesRepo) GetByName(_ context.Context, name string) (*models.SupplierRule, error) {
	for i := range f.rules {
		if f.rules[i].RuleName == name {
			rule := f.rules[i]
			return &rule, nil
		}
	}
	return nil, nil
}

func (f *fakeRulesRepo) List(context.Context) ([]models.SupplierRule, error) {
	return f.rules, nil
}

func (f *fakeRulesRepo) ListActive(context.Context) ([]models.SupplierRule, error) {
	var out []models.SupplierRule
	for _, rule := range f.rules {
		if rule.Active {
			out = append(out, rule)
		}
	}
	return out, nil
}

type testEnv struct {
	svc       Service
	store     *memStore
	rulesRepo *fakeRulesRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newMemStore()

	ledgerSvc, err := qtyledger.NewService(ledgerRepo{store: store}, nil, nil)
	if err != nil {
		t.Fatalf("ledger service: %v", err)
	}
	rulesRepo := &fakeRulesRepo{}
	rulesSvc, err := rules.NewService(rulesRepo, nil)
	if err != nil {
		t.Fatalf("rules service: %v", err)
	}

	svc, err := NewService(Deps{
		Repo:   docRepo{store: store},
		Ledger: ledgerSvc,
		Flows:  fakeFlows{flow: flows.DefaultFlow()},
		Rules:  rulesSvc,
	})
	if err != nil {
		t.Fatalf("documents service: %v", err)
	}
	return &testEnv{svc: svc, store: store, rulesRepo: rulesRepo}
}

func dec(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return d
}

func ref(kind enums.DocKind, docNo string) (*enums.DocKind, *string) {
	k, n := kind, docNo
	return &k, &n
}

func (e *testEnv) mustCreate(t *testing.T, input CreateInput) *View {
	t.Helper()
	view, err := e.svc.Create(context.Background(), input)
	if err != nil {
		t.Fatalf("create %s %s: %v", input.Kind, input.DocNo, err)
	}
	return view
}

func (e *testEnv) mustSubmit(t *testing.T, kind enums.DocKind, docNo string) *View {
	t.Helper()
	view, err := e.svc.Submit(context.Background(), kind, docNo)
	if err != nil {
		t.Fatalf("submit %s %s: %v", kind, docNo, err)
	}
	return view
}

func (e *testEnv) seedChainToRFQ(t *testing.T, widgetQty string) {
	t.Helper()
	e.mustCreate(t, CreateInput{
		Kind: enums.DocKindMaterialRequest, DocNo: "MR-1",
		Items: []ItemInput{{ItemCode: "WIDGET", ItemName: "Widget", Qty: dec(widgetQty), Rate: dec("10")}},
	})
	e.mustSubmit(t, enums.DocKindMaterialRequest, "MR-1")

	prKind, prNo := ref(enums.DocKindMaterialRequest, "MR-1")
	e.mustCreate(t, CreateInput{Kind: enums.DocKindPurchaseRequisition, DocNo: "PR-1", SourceKind: prKind, SourceNo: prNo})
	e.mustSubmit(t, enums.DocKindPurchaseRequisition, "PR-1")

	rfqKind, rfqNo := ref(enums.DocKindPurchaseRequisition, "PR-1")
	e.mustCreate(t, CreateInput{
		Kind: enums.DocKindRFQ, DocNo: "RFQ-1", SourceKind: rfqKind, SourceNo: rfqNo,
		Suppliers: []string{"acme", "globex"},
	})
	e.mustSubmit(t, enums.DocKindRFQ, "RFQ-1")
}

func (e *testEnv) seedQuotation(t *testing.T, docNo, supplier string, items []ItemInput) {
	t.Helper()
	sqKind, sqNo := ref(enums.DocKindRFQ, "RFQ-1")
	e.mustCreate(t, CreateInput{
		Kind: enums.DocKindSupplierQuotation, DocNo: docNo, Supplier: supplier,
		SourceKind: sqKind, SourceNo: sqNo, Items: items,
	})
	e.mustSubmit(t, enums.DocKindSupplierQuotation, docNo)
}

func TestCreateManualDocument(t *testing.T) {
	env := newTestEnv(t)

	view := env.mustCreate(t, CreateInput{
		Kind:  enums.DocKindMaterialRequest,
		Items: []ItemInput{{ItemCode: "WIDGET", Qty: dec("10")}},
	})
	if view.Status != enums.DocStatusDraft {
		t.Fatalf("new documents start as drafts, got %s", view.Status)
	}
	if view.DocNo == "" {
		t.Fatal("doc_no should be generated when omitted")
	}
	if view.Items[0].ItemName != "WIDGET" || view.Items[0].UOM != "unit" {
		t.Fatalf("defaults not applied: %+v", view.Items[0])
	}
}

func TestCreateManualAllowedEvenWhenStepExpectsSource(t *testing.T) {
	env := newTestEnv(t)

	// purchase_order is deep in the flow; sourceless creation stays legal.
	view := env.mustCreate(t, CreateInput{
		Kind:     enums.DocKindPurchaseOrder,
		Supplier: "acme",
		Items:    []ItemInput{{ItemCode: "WIDGET", Qty: dec("5")}},
	})
	if view.HasSource() {
		t.Fatal("manual creation must leave source empty")
	}
}

func TestCreatePartialSourceRejected(t *testing.T) {
	env := newTestEnv(t)

	kind := enums.DocKindMaterialRequest
	_, err := env.svc.Create(context.Background(), CreateInput{
		Kind:       enums.DocKindPurchaseRequisition,
		SourceKind: &kind,
		Items:      []ItemInput{{ItemCode: "WIDGET", Qty: dec("5")}},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInvalidSourceRef) {
		t.Fatalf("want INVALID_SOURCE_REFERENCE, got %v", err)
	}
}

func TestCreateOutOfSequenceSourceRejected(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreate(t, CreateInput{
		Kind: enums.DocKindMaterialRequest, DocNo: "MR-1",
		Items: []ItemInput{{ItemCode: "WIDGET", Qty: dec("10")}},
	})

	srcKind, srcNo := ref(enums.DocKindMaterialRequest, "MR-1")
	_, err := env.svc.Create(context.Background(), CreateInput{
		Kind: enums.DocKindPurchaseOrder, SourceKind: srcKind, SourceNo: srcNo,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInvalidSourceRef) {
		t.Fatalf("purchase order cannot source a material request: %v", err)
	}
}

func TestCreateFromMissingSourceRejected(t *testing.T) {
	env := newTestEnv(t)

	srcKind, srcNo := ref(enums.DocKindMaterialRequest, "MR-GONE")
	_, err := env.svc.Create(context.Background(), CreateInput{
		Kind: enums.DocKindPurchaseRequisition, SourceKind: srcKind, SourceNo: srcNo,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInvalidSourceRef) {
		t.Fatalf("want INVALID_SOURCE_REFERENCE, got %v", err)
	}
}

func TestCreateCopiesSourceItems(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreate(t, CreateInput{
		Kind: enums.DocKindMaterialRequest, DocNo: "MR-1",
		Items: []ItemInput{
			{ItemCode: "WIDGET", ItemName: "Widget", Qty: dec("10"), UOM: "box", Rate: dec("4.5")},
			{ItemCode: "GADGET", ItemName: "Gadget", Qty: dec("3"), UOM: "unit", Rate: dec("12")},
		},
	})
	env.mustSubmit(t, enums.DocKindMaterialRequest, "MR-1")

	srcKind, srcNo := ref(enums.DocKindMaterialRequest, "MR-1")
	view := env.mustCreate(t, CreateInput{
		Kind: enums.DocKindPurchaseRequisition, DocNo: "PR-1", SourceKind: srcKind, SourceNo: srcNo,
	})
	if len(view.Items) != 2 {
		t.Fatalf("want both lines copied, got %d", len(view.Items))
	}
	first := view.Items[0]
	if first.ItemCode != "WIDGET" || first.ItemName != "Widget" || !first.Qty.Equal(dec("10")) ||
		first.UOM != "box" || !first.Rate.Equal(dec("4.5")) {
		t.Fatalf("line not copied verbatim: %+v", first)
	}
}

func TestCreateItemNotInSourceRejected(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreate(t, CreateInput{
		Kind: enums.DocKindMaterialRequest, DocNo: "MR-1",
		Items: []ItemInput{{ItemCode: "WIDGET", Qty: dec("10")}},
	})
	env.mustSubmit(t, enums.DocKindMaterialRequest, "MR-1")

	srcKind, srcNo := ref(enums.DocKindMaterialRequest, "MR-1")
	_, err := env.svc.Create(context.Background(), CreateInput{
		Kind: enums.DocKindPurchaseRequisition, SourceKind: srcKind, SourceNo: srcNo,
		Items: []ItemInput{{ItemCode: "SPROCKET", Qty: dec("1")}},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeItemNotInSource) {
		t.Fatalf("want ITEM_NOT_IN_SOURCE, got %v", err)
	}
}

func TestQuotationSupplierContainment(t *testing.T) {
	env := newTestEnv(t)
	env.seedChainToRFQ(t, "100")

	sqKind, sqNo := ref(enums.DocKindRFQ, "RFQ-1")

	_, err := env.svc.Create(context.Background(), CreateInput{
		Kind: enums.DocKindSupplierQuotation, SourceKind: sqKind, SourceNo: sqNo,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("quotation without supplier must fail: %v", err)
	}

	_, err = env.svc.Create(context.Background(), CreateInput{
		Kind: enums.DocKindSupplierQuotation, Supplier: "initech",
		SourceKind: sqKind, SourceNo: sqNo,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("uninvited supplier must fail: %v", err)
	}

	view := env.mustCreate(t, CreateInput{
		Kind: enums.DocKindSupplierQuotation, DocNo: "SQ-1", Supplier: "acme",
		SourceKind: sqKind, SourceNo: sqNo,
	})
	if view.Supplier == nil || *view.Supplier != "acme" {
		t.Fatalf("supplier not kept: %+v", view.Supplier)
	}
}

func TestPurchaseOrderInheritsQuotationSupplier(t *testing.T) {
	env := newTestEnv(t)
	env.seedChainToRFQ(t, "100")
	env.seedQuotation(t, "SQ-1", "acme", nil)

	poKind, poNo := ref(enums.DocKindSupplierQuotation, "SQ-1")
	view := env.mustCreate(t, CreateInput{
		Kind: enums.DocKindPurchaseOrder, DocNo: "PO-1", SourceKind: poKind, SourceNo: poNo,
	})
	if view.Supplier == nil || *view.Supplier != "acme" {
		t.Fatalf("supplier must be inherited from the quotation: %+v", view.Supplier)
	}

	_, err := env.svc.Create(context.Background(), CreateInput{
		Kind: enums.DocKindPurchaseOrder, Supplier: "globex",
		SourceKind: poKind, SourceNo: poNo,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("mismatched supplier must fail: %v", err)
	}
}

func TestSubmitLifecycleAndLedger(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.mustCreate(t, CreateInput{
		Kind: enums.DocKindMaterialRequest, DocNo: "MR-1",
		Items: []ItemInput{{ItemCode: "WIDGET", Qty: dec("100")}},
	})
	env.mustSubmit(t, enums.DocKindMaterialRequest, "MR-1")

	srcKind, srcNo := ref(enums.DocKindMaterialRequest, "MR-1")
	env.mustCreate(t, CreateInput{
		Kind: enums.DocKindPurchaseRequisition, DocNo: "PR-1", SourceKind: srcKind, SourceNo: srcNo,
		Items: []ItemInput{{ItemCode: "WIDGET", Qty: dec("60")}},
	})
	env.mustSubmit(t, enums.DocKindPurchaseRequisition, "PR-1")

	key := qtyledger.Key{
		SourceKind: enums.DocKindMaterialRequest, SourceNo: "MR-1",
		TargetKind: enums.DocKindPurchaseRequisition,
	}
	availability, err := env.svc.AvailableQuantities(ctx, key)
	if err != nil {
		t.Fatalf("available quantities: %v", err)
	}
	widget := availability["WIDGET"]
	if !widget.Consumed.Equal(dec("60")) || !widget.Available.Equal(dec("40")) {
		t.Fatalf("unexpected availability %+v", widget)
	}

	if _, err := env.svc.Submit(ctx, enums.DocKindPurchaseRequisition, "PR-1"); !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("double submit must fail with STATE_CONFLICT: %v", err)
	}
}

func TestBasicControlScenario(t *testing.T) {
	env := newTestEnv(t)
	env.seedChainToRFQ(t, "100")
	env.seedQuotation(t, "SQ-1", "acme", nil)
	env.seedQuotation(t, "SQ-2", "globex", nil)

	po1Kind, po1No := ref(enums.DocKindSupplierQuotation, "SQ-1")
	env.mustCreate(t, CreateInput{
		Kind: enums.DocKindPurchaseOrder, DocNo: "PO-1", SourceKind: po1Kind, SourceNo: po1No,
		Items: []ItemInput{{ItemCode: "WIDGET", Qty: dec("60")}},
	})
	env.mustSubmit(t, enums.DocKindPurchaseOrder, "PO-1")

	po2Kind, po2No := ref(enums.DocKindSupplierQuotation, "SQ-2")
	_, err := env.svc.Create(context.Background(), CreateInput{
		Kind: enums.DocKindPurchaseOrder, DocNo: "PO-2", SourceKind: po2Kind, SourceNo: po2No,
		Items: []ItemInput{{ItemCode: "WIDGET", Qty: dec("50")}},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeOverAllocation) {
		t.Fatalf("50 against remaining 40 must be rejected: %v", err)
	}

	env.mustCreate(t, CreateInput{
		Kind: enums.DocKindPurchaseOrder, DocNo: "PO-3", SourceKind: po2Kind, SourceNo: po2No,
		Items: []ItemInput{{ItemCode: "WIDGET", Qty: dec("40")}},
	})
	env.mustSubmit(t, enums.DocKindPurchaseOrder, "PO-3")
}

func TestDraftSiblingBlocksOverAllocatingCreate(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreate(t, CreateInput{
		Kind: enums.DocKindMaterialRequest, DocNo: "MR-1",
		Items: []ItemInput{{ItemCode: "WIDGET", Qty: dec("100")}},
	})
	env.mustSubmit(t, enums.DocKindMaterialRequest, "MR-1")

	srcKind, srcNo := ref(enums.DocKindMaterialRequest, "MR-1")
	env.mustCreate(t, CreateInput{
		Kind: enums.DocKindPurchaseRequisition, DocNo: "PR-1", SourceKind: srcKind, SourceNo: srcNo,
		Items: []ItemInput{{ItemCode: "WIDGET", Qty: dec("60")}},
	})

	// PR-1 is still a draft, yet its 60 is already held.
	_, err := env.svc.Create(context.Background(), CreateInput{
		Kind: enums.DocKindPurchaseRequisition, DocNo: "PR-2", SourceKind: srcKind, SourceNo: srcNo,
		Items: []ItemInput{{ItemCode: "WIDGET", Qty: dec("50")}},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeOverAllocation) {
		t.Fatalf("50 against remaining 40 must be rejected at save: %v", err)
	}

	env.mustCreate(t, CreateInput{
		Kind: enums.DocKindPurchaseRequisition, DocNo: "PR-3", SourceKind: srcKind, SourceNo: srcNo,
		Items: []ItemInput{{ItemCode: "WIDGET", Qty: dec("40")}},
	})
	env.mustSubmit(t, enums.DocKindPurchaseRequisition, "PR-3")
	env.mustSubmit(t, enums.DocKindPurchaseRequisition, "PR-1")
}

func TestCancellationScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedChainToRFQ(t, "100")
	env.seedQuotation(t, "SQ-1", "acme", nil)

	poKind, poNo := ref(enums.DocKindSupplierQuotation, "SQ-1")
	env.mustCreate(t, CreateInput{
		Kind: enums.DocKindPurchaseOrder, DocNo: "PO-1", SourceKind: poKind, SourceNo: poNo,
		Items: []ItemInput{{ItemCode: "WIDGET", Qty: dec("80")}},
	})
	env.mustSubmit(t, enums.DocKindPurchaseOrder, "PO-1")

	if _, err := env.svc.Cancel(ctx, enums.DocKindPurchaseOrder, "PO-1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	env.mustCreate(t, CreateInput{
		Kind: enums.DocKindPurchaseOrder, DocNo: "PO-2", SourceKind: poKind, SourceNo: poNo,
		Items: []ItemInput{{ItemCode: "WIDGET", Qty: dec("100")}},
	})
	env.mustSubmit(t, enums.DocKindPurchaseOrder, "PO-2")
}

func TestCancelBlockedByDescendants(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.mustCreate(t, CreateInput{
		Kind: enums.DocKindMaterialRequest, DocNo: "MR-1",
		Items: []ItemInput{{ItemCode: "WIDGET", Qty: dec("100")}},
	})
	env.mustSubmit(t, enums.DocKindMaterialRequest, "MR-1")

	srcKind, srcNo := ref(enums.DocKindMaterialRequest, "MR-1")
	env.mustCreate(t, CreateInput{
		Kind: enums.DocKindPurchaseRequisition, DocNo: "PR-1", SourceKind: srcKind, SourceNo: srcNo,
	})

	_, err := env.svc.Cancel(ctx, enums.DocKindMaterialRequest, "MR-1")
	if !pkgerrors.HasCode(err, pkgerrors.CodeCancellationBlocked) {
		t.Fatalf("want CANCELLATION_BLOCKED, got %v", err)
	}
	details := pkgerrors.As(err).Details().(map[string]any)
	if len(details["descendants"].([]map[string]any)) != 1 {
		t.Fatalf("blocking descendant list missing: %v", details)
	}

	env.mustSubmit(t, enums.DocKindPurchaseRequisition, "PR-1")
	if _, err := env.svc.Cancel(ctx, enums.DocKindPurchaseRequisition, "PR-1"); err != nil {
		t.Fatalf("cancel child: %v", err)
	}
	if _, err := env.svc.Cancel(ctx, enums.DocKindMaterialRequest, "MR-1"); err != nil {
		t.Fatalf("cancel after children cancelled: %v", err)
	}
}

func TestRFQSubmitEnforcesSupplierRule(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.rulesRepo.rules = append(env.rulesRepo.rules, models.SupplierRule{
		ID: 1, RuleName: "mid", AmountFrom: dec("10000"), AmountTo: dec("50000"),
		MinSuppliers: 3, Priority: 20, Active: true,
	})

	env.mustCreate(t, CreateInput{
		Kind: enums.DocKindMaterialRequest, DocNo: "MR-1",
		Items: []ItemInput{{ItemCode: "WIDGET", Qty: dec("100"), Rate: dec("250")}},
	})
	env.mustSubmit(t, enums.DocKindMaterialRequest, "MR-1")
	prKind, prNo := ref(enums.DocKindMaterialRequest, "MR-1")
	env.mustCreate(t, CreateInput{Kind: enums.DocKindPurchaseRequisition, DocNo: "PR-1", SourceKind: prKind, SourceNo: prNo})
	env.mustSubmit(t, enums.DocKindPurchaseRequisition, "PR-1")

	rfqKind, rfqNo := ref(enums.DocKindPurchaseRequisition, "PR-1")
	env.mustCreate(t, CreateInput{
		Kind: enums.DocKindRFQ, DocNo: "RFQ-1", SourceKind: rfqKind, SourceNo: rfqNo,
		Suppliers: []string{"acme", "globex"},
	})

	// Total 25000 needs 3 suppliers, only 2 invited.
	_, err := env.svc.Submit(ctx, enums.DocKindRFQ, "RFQ-1")
	if !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientSupplier) {
		t.Fatalf("want INSUFFICIENT_SUPPLIERS, got %v", err)
	}

	env.mustCreate(t, CreateInput{
		Kind: enums.DocKindRFQ, DocNo: "RFQ-2", SourceKind: rfqKind, SourceNo: rfqNo,
		Suppliers: []string{"acme", "globex", "initech"},
	})
	env.mustSubmit(t, enums.DocKindRFQ, "RFQ-2")
}

func TestCreateFromSourceSubset(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreate(t, CreateInput{
		Kind: enums.DocKindMaterialRequest, DocNo: "MR-1",
		Items: []ItemInput{
			{ItemCode: "WIDGET", Qty: dec("100"), Rate: dec("10")},
			{ItemCode: "GADGET", Qty: dec("50"), Rate: dec("20")},
		},
	})
	env.mustSubmit(t, enums.DocKindMaterialRequest, "MR-1")

	view, err := env.svc.CreateFromSource(context.Background(), FromSourceInput{
		SourceKind: enums.DocKindMaterialRequest,
		SourceNo:   "MR-1",
		TargetKind: enums.DocKindPurchaseRequisition,
		ItemCodes:  []string{"GADGET"},
	})
	if err != nil {
		t.Fatalf("create from source: %v", err)
	}
	if len(view.Items) != 1 || view.Items[0].ItemCode != "GADGET" {
		t.Fatalf("subset copy failed: %+v", view.Items)
	}
	if !view.Items[0].Qty.Equal(dec("50")) || !view.Items[0].Rate.Equal(dec("20")) {
		t.Fatalf("line values not copied: %+v", view.Items[0])
	}
}

func TestDuplicateDocNoRejected(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreate(t, CreateInput{
		Kind: enums.DocKindMaterialRequest, DocNo: "MR-1",
		Items: []ItemInput{{ItemCode: "WIDGET", Qty: dec("10")}},
	})

	_, err := env.svc.Create(context.Background(), CreateInput{
		Kind: enums.DocKindMaterialRequest, DocNo: "MR-1",
		Items: []ItemInput{{ItemCode: "WIDGET", Qty: dec("10")}},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("want CONFLICT, got %v", err)
	}
}
