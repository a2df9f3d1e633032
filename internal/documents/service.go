package documents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nextcoretech/procurement-backend/internal/flows"
	"github.com/nextcoretech/procurement-backend/internal/qtyledger"
	"github.com/nextcoretech/procurement-backend/internal/rules"
	"github.com/nextcoretech/procurement-backend/pkg/config"
	"github.com/nextcoretech/procurement-backend/pkg/db"
	"github.com/nextcoretech/procurement-backend/pkg/db/models"
	"github.com/nextcoretech/procurement-backend/pkg/enums"
	pkgerrors "github.com/nextcoretech/procurement-backend/pkg/errors"
	"github.com/nextcoretech/procurement-backend/pkg/logger"
	"github.com/nextcoretech/procurement-backend/pkg/metrics"
	"github.com/nextcoretech/procurement-backend/pkg/redis"
)

// Service drives the document lifecycle: draft creation with step-order
// validation, transactional submit/cancel with ledger accounting, and the
// availability view.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*View, error)
	Get(ctx context.Context, kind enums.DocKind, docNo string) (*View, error)
	Submit(ctx context.Context, kind enums.DocKind, docNo string) (*View, error)
	Cancel(ctx context.Context, kind enums.DocKind, docNo string) (*View, error)
	CreateFromSource(ctx context.Context, input FromSourceInput) (*View, error)
	AvailableQuantities(ctx context.Context, key qtyledger.Key) (map[string]qtyledger.Availability, error)
	SuppliersOf(ctx context.Context, doc *models.Document) ([]string, error)
}

type service struct {
	client   *db.Client
	repo     Repository
	ledger   qtyledger.Service
	flows    flows.Service
	rules    rules.Service
	cache    *redis.Client
	cacheCfg config.CacheConfig
	metrics  *metrics.EngineMetrics
	logg     *logger.Logger
}

// Deps bundles the collaborators the document service needs. Cache and
// client may be nil (tests, tooling); everything else is required.
type Deps struct {
	Client   *db.Client
	Repo     Repository
	Ledger   qtyledger.Service
	Flows    flows.Service
	Rules    rules.Service
	Cache    *redis.Client
	CacheCfg config.CacheConfig
	Metrics  *metrics.EngineMetrics
	Logger   *logger.Logger
}

// NewService wires the document service.
func NewService(deps Deps) (Service, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("documents repository required")
	}
	if deps.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if deps.Flows == nil {
		return nil, fmt.Errorf("flows service required")
	}
	if deps.Rules == nil {
		return nil, fmt.Errorf("rules service required")
	}
	return &service{
		client:   deps.Client,
		repo:     deps.Repo,
		ledger:   deps.Ledger,
		flows:    deps.Flows,
		rules:    deps.Rules,
		cache:    deps.Cache,
		cacheCfg: deps.CacheCfg,
		metrics:  deps.Metrics,
		logg:     deps.Logger,
	}, nil
}

type txDeps struct {
	repo   Repository
	ledger qtyledger.Service
	flows  flows.Service
	rules  rules.Service
}

func (s *service) inTx(ctx context.Context, fn func(deps txDeps) error) error {
	if s.client == nil {
		return fn(txDeps{repo: s.repo, ledger: s.ledger, flows: s.flows, rules: s.rules})
	}
	return s.client.WithTx(ctx, func(tx *gorm.DB) error {
		return fn(txDeps{
			repo:   s.repo.WithTx(tx),
			ledger: s.ledger.WithTx(tx),
			flows:  s.flows.WithTx(tx),
			rules:  s.rules.WithTx(tx),
		})
	})
}

func (s *service) Create(ctx context.Context, input CreateInput) (*View, error) {
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid document kind %q", input.Kind))
	}
	if (input.SourceKind != nil) != (input.SourceNo != nil) {
		err := pkgerrors.New(pkgerrors.CodeInvalidSourceRef,
			"source kind and source no must both be set or both be empty")
		s.reject(err)
		return nil, err
	}
	if input.SourceKind != nil && !input.SourceKind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid source kind %q", *input.SourceKind))
	}
	if len(input.Suppliers) > 0 && input.Kind != enums.DocKindRFQ {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invited suppliers are only valid on an RFQ")
	}
	suppliers, err := normalizeSuppliers(input.Suppliers)
	if err != nil {
		return nil, err
	}

	docNo := strings.TrimSpace(input.DocNo)
	if docNo == "" {
		docNo = generateDocNo(input.Kind)
	}
	currency := input.Currency
	if currency == "" {
		currency = "USD"
	}

	doc := &models.Document{
		ID:         uuid.New(),
		Kind:       input.Kind,
		DocNo:      docNo,
		Status:     enums.DocStatusDraft,
		Currency:   currency,
		SourceKind: input.SourceKind,
		SourceNo:   input.SourceNo,
	}
	if input.Supplier != "" {
		supplier := input.Supplier
		doc.Supplier = &supplier
	}

	err = s.inTx(ctx, func(deps txDeps) error {
		existing, err := deps.repo.Get(ctx, doc.Kind, doc.DocNo)
		if err != nil {
			return err
		}
		if existing != nil {
			return pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("%s %s already exists", doc.Kind, doc.DocNo))
		}

		flow, err := deps.flows.ActiveFlow(ctx)
		if err != nil {
			return err
		}
		source, err := s.validateSourceState(ctx, deps.repo, flow, doc)
		if err != nil {
			return err
		}

		items, err := buildItems(input.Items, doc, source)
		if err != nil {
			return err
		}
		doc.Items = items

		if err := s.validateSupplierContainment(ctx, deps.repo, doc, source); err != nil {
			return err
		}

		if err := deps.repo.Create(ctx, doc); err != nil {
			// Competing create with the same number loses the unique index race.
			if db.IsUniqueViolation(err, "idx_documents_kind_no") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err,
					fmt.Sprintf("%s %s already exists", doc.Kind, doc.DocNo))
			}
			return err
		}
		if doc.Kind == enums.DocKindRFQ && len(suppliers) > 0 {
			if err := deps.repo.ReplaceRFQSuppliers(ctx, doc.ID, suppliers); err != nil {
				return err
			}
		}

		// Save-time quantity check, re-run again at submit.
		return deps.ledger.Validate(ctx, doc)
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithDocRef(ctx, string(doc.Kind), doc.DocNo), "document draft created")
	}
	return &View{Document: *doc, Suppliers: suppliers}, nil
}

func (s *service) Get(ctx context.Context, kind enums.DocKind, docNo string) (*View, error) {
	doc, err := s.repo.Get(ctx, kind, docNo)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("%s %s not found", kind, docNo))
	}
	suppliers, err := s.SuppliersOf(ctx, doc)
	if err != nil {
		return nil, err
	}
	return &View{Document: *doc, Suppliers: suppliers}, nil
}

func (s *service) SuppliersOf(ctx context.Context, doc *models.Document) ([]string, error) {
	if doc.Kind != enums.DocKindRFQ {
		return nil, nil
	}
	rows, err := s.repo.ListRFQSuppliers(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	suppliers := make([]string, 0, len(rows))
	for _, row := range rows {
		suppliers = append(suppliers, row.Supplier)
	}
	return suppliers, nil
}

func (s *service) Submit(ctx context.Context, kind enums.DocKind, docNo string) (*View, error) {
	var submitted *models.Document
	var key *qtyledger.Key

	err := s.inTx(ctx, func(deps txDeps) error {
		doc, err := deps.repo.GetForUpdate(ctx, kind, docNo)
		if err != nil {
			return err
		}
		if doc == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("%s %s not found", kind, docNo))
		}
		if !doc.Status.CanTransitionTo(enums.DocStatusSubmitted) {
			err := pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("%s %s is %s and cannot be submitted", kind, docNo, doc.Status))
			s.reject(err)
			return err
		}

		flow, err := deps.flows.ActiveFlow(ctx)
		if err != nil {
			return err
		}
		if _, err := s.validateSourceState(ctx, deps.repo, flow, doc); err != nil {
			return err
		}

		if doc.Kind == enums.DocKindRFQ {
			invited, err := deps.repo.ListRFQSuppliers(ctx, doc.ID)
			if err != nil {
				return err
			}
			if err := deps.rules.ValidateRFQSuppliers(ctx, doc, len(invited)); err != nil {
				return err
			}
		}

		key, err = deps.ledger.ResolveKey(ctx, doc)
		if err != nil {
			return err
		}
		if key != nil {
			if err := deps.ledger.LockSource(ctx, *key); err != nil {
				return err
			}
			if err := deps.ledger.Validate(ctx, doc); err != nil {
				return err
			}
		}

		if err := deps.repo.UpdateStatus(ctx, doc, enums.DocStatusSubmitted); err != nil {
			return err
		}
		if err := deps.ledger.ApplySubmit(ctx, doc); err != nil {
			return err
		}
		submitted = doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateAvailability(ctx, key)
	if s.logg != nil {
		s.logg.Info(s.logg.WithDocRef(ctx, string(kind), docNo), "document submitted")
	}
	suppliers, err := s.SuppliersOf(ctx, submitted)
	if err != nil {
		return nil, err
	}
	return &View{Document: *submitted, Suppliers: suppliers}, nil
}

func (s *service) Cancel(ctx context.Context, kind enums.DocKind, docNo string) (*View, error) {
	var cancelled *models.Document
	var key *qtyledger.Key

	err := s.inTx(ctx, func(deps txDeps) error {
		doc, err := deps.repo.GetForUpdate(ctx, kind, docNo)
		if err != nil {
			return err
		}
		if doc == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("%s %s not found", kind, docNo))
		}
		if !doc.Status.CanTransitionTo(enums.DocStatusCancelled) {
			err := pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("%s %s is %s and cannot be cancelled", kind, docNo, doc.Status))
			s.reject(err)
			return err
		}

		children, err := deps.repo.ListChildren(ctx, doc.Kind, doc.DocNo)
		if err != nil {
			return err
		}
		var blockers []map[string]any
		for _, child := range children {
			if child.Status != enums.DocStatusCancelled {
				blockers = append(blockers, map[string]any{
					"kind":   child.Kind,
					"doc_no": child.DocNo,
					"status": child.Status,
				})
			}
		}
		if len(blockers) > 0 {
			err := pkgerrors.New(pkgerrors.CodeCancellationBlocked,
				fmt.Sprintf("%s %s has %d non-cancelled descendants", kind, docNo, len(blockers))).
				WithDetails(map[string]any{"descendants": blockers})
			s.reject(err)
			return err
		}

		key, err = deps.ledger.ResolveKey(ctx, doc)
		if err != nil {
			return err
		}
		if key != nil {
			if err := deps.ledger.LockSource(ctx, *key); err != nil {
				return err
			}
		}

		if err := deps.repo.UpdateStatus(ctx, doc, enums.DocStatusCancelled); err != nil {
			return err
		}
		if err := deps.ledger.ApplyCancel(ctx, doc); err != nil {
			return err
		}
		cancelled = doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateAvailability(ctx, key)
	if s.logg != nil {
		s.logg.Info(s.logg.WithDocRef(ctx, string(kind), docNo), "document cancelled")
	}
	return &View{Document: *cancelled}, nil
}

// CreateFromSource drafts the next-step document with the source's item lines
// copied verbatim, optionally restricted to a subset of item codes.
func (s *service) CreateFromSource(ctx context.Context, input FromSourceInput) (*View, error) {
	if !input.SourceKind.IsValid() || !input.TargetKind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "source_kind and target_kind must be valid document kinds")
	}

	source, err := s.repo.Get(ctx, input.SourceKind, input.SourceNo)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound,
			fmt.Sprintf("%s %s not found", input.SourceKind, input.SourceNo))
	}

	var items []ItemInput
	for _, code := range input.ItemCodes {
		item, found := sourceLine(source, code)
		if !found {
			err := pkgerrors.New(pkgerrors.CodeItemNotInSource,
				fmt.Sprintf("item %s is not present on %s %s", code, source.Kind, source.DocNo)).
				WithDetails(map[string]any{"item_code": code, "source_kind": source.Kind, "source_no": source.DocNo})
			s.reject(err)
			return nil, err
		}
		items = append(items, ItemInput{
			ItemCode: item.ItemCode,
			ItemName: item.ItemName,
			Qty:      item.Qty,
			UOM:      item.UOM,
			Rate:     item.Rate,
		})
	}

	sourceKind := input.SourceKind
	sourceNo := input.SourceNo
	return s.Create(ctx, CreateInput{
		Kind:       input.TargetKind,
		DocNo:      input.DocNo,
		Supplier:   input.Supplier,
		Currency:   source.Currency,
		SourceKind: &sourceKind,
		SourceNo:   &sourceNo,
		Items:      items,
	})
}

func (s *service) AvailableQuantities(ctx context.Context, key qtyledger.Key) (map[string]qtyledger.Availability, error) {
	cacheKey := redis.AvailabilityKey(string(key.SourceKind), key.SourceNo, string(key.TargetKind))
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cacheKey); err == nil {
			var cached map[string]qtyledger.Availability
			if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
				return cached, nil
			}
		}
	}

	availability, err := s.ledger.Available(ctx, key)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(availability); err == nil {
			if err := s.cache.Set(ctx, cacheKey, raw, s.cacheCfg.AvailabilityTTL); err != nil && s.logg != nil {
				s.logg.Warn(ctx, fmt.Sprintf("availability cache write failed: %v", err))
			}
		}
	}
	return availability, nil
}

// invalidateAvailability drops every cached availability view of the source
// document, not just the bucket that moved; the per-target keys share the
// source prefix.
func (s *service) invalidateAvailability(ctx context.Context, key *qtyledger.Key) {
	if s.cache == nil || key == nil {
		return
	}
	prefix := redis.AvailabilityKeyPrefix(string(key.SourceKind), key.SourceNo)
	if err := s.cache.DelByPrefix(ctx, prefix); err != nil && s.logg != nil {
		s.logg.Warn(ctx, fmt.Sprintf("availability cache invalidation failed: %v", err))
	}
}

// validateSourceState applies the step-order rules against the active flow.
// Manual creation without a source is always allowed; a partial reference or
// a source that is missing, cancelled, or out of sequence never is.
func (s *service) validateSourceState(ctx context.Context, repo Repository, flow *models.ProcurementFlow, doc *models.Document) (*models.Document, error) {
	if doc.PartialSource() {
		err := pkgerrors.New(pkgerrors.CodeInvalidSourceRef,
			"source kind and source no must both be set or both be empty")
		s.reject(err)
		return nil, err
	}
	if !doc.HasSource() {
		return nil, nil
	}

	source, err := repo.Get(ctx, *doc.SourceKind, *doc.SourceNo)
	if err != nil {
		return nil, err
	}
	if source == nil {
		err := pkgerrors.New(pkgerrors.CodeInvalidSourceRef,
			fmt.Sprintf("source %s %s does not exist", *doc.SourceKind, *doc.SourceNo)).
			WithDetails(map[string]any{"source_kind": *doc.SourceKind, "source_no": *doc.SourceNo})
		s.reject(err)
		return nil, err
	}
	if source.Status == enums.DocStatusCancelled {
		err := pkgerrors.New(pkgerrors.CodeInvalidSourceRef,
			fmt.Sprintf("source %s %s is cancelled", source.Kind, source.DocNo)).
			WithDetails(map[string]any{"source_kind": source.Kind, "source_no": source.DocNo})
		s.reject(err)
		return nil, err
	}

	step := flow.StepFor(doc.Kind)
	if step == nil || !step.RequiresSource {
		return source, nil
	}
	previous := flow.PreviousStep(doc.Kind)
	if previous == nil || previous.Kind != source.Kind {
		expected := "none"
		if previous != nil {
			expected = string(previous.Kind)
		}
		err := pkgerrors.New(pkgerrors.CodeInvalidSourceRef,
			fmt.Sprintf("%s cannot be sourced from %s, the preceding step is %s", doc.Kind, source.Kind, expected)).
			WithDetails(map[string]any{
				"kind":          doc.Kind,
				"source_kind":   source.Kind,
				"expected_kind": expected,
			})
		s.reject(err)
		return nil, err
	}
	return source, nil
}

// validateSupplierContainment enforces the supplier rules along the RFQ
// branch: quotations must come from invited suppliers, and a purchase order
// inherits its quotation's supplier.
func (s *service) validateSupplierContainment(ctx context.Context, repo Repository, doc *models.Document, source *models.Document) error {
	if source == nil {
		return nil
	}

	switch {
	case doc.Kind == enums.DocKindSupplierQuotation && source.Kind == enums.DocKindRFQ:
		if doc.Supplier == nil || *doc.Supplier == "" {
			err := pkgerrors.New(pkgerrors.CodeValidation, "a supplier quotation must name its supplier")
			s.reject(err)
			return err
		}
		invited, err := repo.ListRFQSuppliers(ctx, source.ID)
		if err != nil {
			return err
		}
		if len(invited) == 0 {
			return nil
		}
		for _, row := range invited {
			if row.Supplier == *doc.Supplier {
				return nil
			}
		}
		err = pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("supplier %s was not invited on %s %s", *doc.Supplier, source.Kind, source.DocNo)).
			WithDetails(map[string]any{"supplier": *doc.Supplier, "rfq_no": source.DocNo})
		s.reject(err)
		return err

	case doc.Kind == enums.DocKindPurchaseOrder && source.Kind == enums.DocKindSupplierQuotation:
		if source.Supplier == nil || *source.Supplier == "" {
			return nil
		}
		if doc.Supplier == nil || *doc.Supplier == "" {
			supplier := *source.Supplier
			doc.Supplier = &supplier
			return nil
		}
		if *doc.Supplier != *source.Supplier {
			err := pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("purchase order supplier %s does not match quotation supplier %s", *doc.Supplier, *source.Supplier)).
				WithDetails(map[string]any{"supplier": *doc.Supplier, "quotation_supplier": *source.Supplier})
			s.reject(err)
			return err
		}
	}
	return nil
}

// buildItems produces the document's lines. Sourced documents copy lines from
// the source (all of them when none are given); every named code must exist
// there. Sourceless documents supply their own complete lines.
func buildItems(inputs []ItemInput, doc *models.Document, source *models.Document) ([]models.DocumentItem, error) {
	if source != nil && len(inputs) == 0 {
		items := make([]models.DocumentItem, 0, len(source.Items))
		for i, line := range source.Items {
			items = append(items, models.DocumentItem{
				DocumentID: doc.ID,
				ItemCode:   line.ItemCode,
				ItemName:   line.ItemName,
				Qty:        line.Qty,
				UOM:        line.UOM,
				Rate:       line.Rate,
				Position:   i,
			})
		}
		return items, nil
	}

	if len(inputs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}

	items := make([]models.DocumentItem, 0, len(inputs))
	seen := map[string]bool{}
	for i, input := range inputs {
		if input.ItemCode == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d: item_code is required", i))
		}
		if seen[input.ItemCode] {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("item %s appears more than once", input.ItemCode))
		}
		seen[input.ItemCode] = true
		if !input.Qty.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("item %s: qty must be positive", input.ItemCode))
		}

		item := models.DocumentItem{
			DocumentID: doc.ID,
			ItemCode:   input.ItemCode,
			ItemName:   input.ItemName,
			Qty:        input.Qty,
			UOM:        input.UOM,
			Rate:       input.Rate,
			Position:   i,
		}

		if source != nil {
			line, found := sourceLine(source, input.ItemCode)
			if !found {
				return nil, pkgerrors.New(pkgerrors.CodeItemNotInSource,
					fmt.Sprintf("item %s is not present on %s %s", input.ItemCode, source.Kind, source.DocNo)).
					WithDetails(map[string]any{
						"item_code":   input.ItemCode,
						"source_kind": source.Kind,
						"source_no":   source.DocNo,
					})
			}
			if item.ItemName == "" {
				item.ItemName = line.ItemName
			}
			if item.UOM == "" {
				item.UOM = line.UOM
			}
			if item.Rate.IsZero() {
				item.Rate = line.Rate
			}
		}

		if item.ItemName == "" {
			item.ItemName = item.ItemCode
		}
		if item.UOM == "" {
			item.UOM = "unit"
		}
		items = append(items, item)
	}
	return items, nil
}

func sourceLine(source *models.Document, itemCode string) (models.DocumentItem, bool) {
	for _, line := range source.Items {
		if line.ItemCode == itemCode {
			return line, true
		}
	}
	return models.DocumentItem{}, false
}

func normalizeSuppliers(suppliers []string) ([]string, error) {
	if len(suppliers) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(suppliers))
	seen := map[string]bool{}
	for _, supplier := range suppliers {
		trimmed := strings.TrimSpace(supplier)
		if trimmed == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier names cannot be empty")
		}
		if seen[trimmed] {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("supplier %s listed more than once", trimmed))
		}
		seen[trimmed] = true
		out = append(out, trimmed)
	}
	return out, nil
}

func generateDocNo(kind enums.DocKind) string {
	prefix, ok := docNoPrefixes[kind]
	if !ok {
		prefix = "DOC"
	}
	return fmt.Sprintf("%s-%s", prefix, strings.ToUpper(uuid.NewString()[:8]))
}

func (s *service) reject(err error) {
	if typed := pkgerrors.As(err); typed != nil {
		s.metrics.IncRejection(string(typed.Code()))
	}
}
