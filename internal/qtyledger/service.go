package qtyledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/nextcoretech/procurement-backend/pkg/db/models"
	"github.com/nextcoretech/procurement-backend/pkg/enums"
	pkgerrors "github.com/nextcoretech/procurement-backend/pkg/errors"
	"github.com/nextcoretech/procurement-backend/pkg/logger"
	"github.com/nextcoretech/procurement-backend/pkg/metrics"
)

// Key addresses one accumulation bucket: quantities of the source document
// consumed by documents of the target kind.
type Key struct {
	SourceKind enums.DocKind `json:"source_kind"`
	SourceNo   string        `json:"source_no"`
	TargetKind enums.DocKind `json:"target_kind"`
}

// Availability is the per-item breakdown served to callers. Available may go
// negative; that is the error signal, not a clamped zero.
type Availability struct {
	Requested decimal.Decimal `json:"requested"`
	Consumed  decimal.Decimal `json:"consumed"`
	Available decimal.Decimal `json:"available"`
}

// ConsumerRef identifies one document contributing consumption.
type ConsumerRef struct {
	Kind  enums.DocKind   `json:"kind"`
	DocNo string          `json:"doc_no"`
	Qty   decimal.Decimal `json:"qty"`
}

// Service maintains consumed-quantity accounting for document chains.
type Service interface {
	WithTx(tx *gorm.DB) Service

	// ResolveKey maps a document to the ledger bucket it consumes from, or
	// nil when the document is exempt from consumption accounting.
	ResolveKey(ctx context.Context, doc *models.Document) (*Key, error)
	Consumed(ctx context.Context, key Key) (map[string]decimal.Decimal, error)
	Available(ctx context.Context, key Key) (map[string]Availability, error)
	Validate(ctx context.Context, candidate *models.Document) error
	ApplySubmit(ctx context.Context, doc *models.Document) error
	ApplyCancel(ctx context.Context, doc *models.Document) error
	Recompute(ctx context.Context, key Key) (map[string]decimal.Decimal, error)
	Reconcile(ctx context.Context, key Key) (map[string]decimal.Decimal, error)
	LockSource(ctx context.Context, key Key) error
}

type service struct {
	repo    Repository
	metrics *metrics.EngineMetrics
	logg    *logger.Logger
}

// NewService wires the ledger service with its repository.
func NewService(repo Repository, engineMetrics *metrics.EngineMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo, metrics: engineMetrics, logg: logg}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	return &service{repo: s.repo.WithTx(tx), metrics: s.metrics, logg: s.logg}
}

// ResolveKey implements the consumption attribution rules. Requests for
// Quotation and the quotations beneath them represent competing demand and
// are exempt; a Purchase Order charges the RFQ ancestor two hops up so POs
// from different quotations share one bucket.
func (s *service) ResolveKey(ctx context.Context, doc *models.Document) (*Key, error) {
	if doc == nil {
		return nil, fmt.Errorf("document required")
	}
	if doc.PartialSource() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidSourceRef,
			"source kind and source no must both be set or both be empty")
	}
	if !doc.HasSource() {
		return nil, nil
	}

	switch {
	case doc.Kind == enums.DocKindRFQ:
		return nil, nil
	case doc.Kind == enums.DocKindSupplierQuotation && *doc.SourceKind == enums.DocKindRFQ:
		return nil, nil
	case doc.Kind == enums.DocKindPurchaseOrder && *doc.SourceKind == enums.DocKindSupplierQuotation:
		quotation, err := s.repo.GetDocument(ctx, *doc.SourceKind, *doc.SourceNo)
		if err != nil {
			return nil, err
		}
		if quotation == nil {
			return nil, pkgerrors.New(pkgerrors.CodeBrokenChain,
				fmt.Sprintf("supplier quotation %s referenced by %s does not exist", *doc.SourceNo, doc.DocNo)).
				WithDetails(map[string]any{
					"missing_kind": enums.DocKindSupplierQuotation,
					"missing_no":   *doc.SourceNo,
				})
		}
		if !quotation.HasSource() {
			return nil, nil
		}
		return &Key{SourceKind: *quotation.SourceKind, SourceNo: *quotation.SourceNo, TargetKind: doc.Kind}, nil
	default:
		return &Key{SourceKind: *doc.SourceKind, SourceNo: *doc.SourceNo, TargetKind: doc.Kind}, nil
	}
}

// Consumed reads the persisted accumulation for the key.
func (s *service) Consumed(ctx context.Context, key Key) (map[string]decimal.Decimal, error) {
	entries, err := s.repo.ListEntries(ctx, key)
	if err != nil {
		return nil, err
	}
	consumed := make(map[string]decimal.Decimal, len(entries))
	for _, entry := range entries {
		consumed[entry.ItemCode] = consumed[entry.ItemCode].Add(entry.Consumed)
	}
	return consumed, nil
}

// Available returns requested − consumed per item of the source document.
func (s *service) Available(ctx context.Context, key Key) (map[string]Availability, error) {
	source, err := s.repo.GetDocument(ctx, key.SourceKind, key.SourceNo)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound,
			fmt.Sprintf("%s %s not found", key.SourceKind, key.SourceNo))
	}

	consumed, err := s.Consumed(ctx, key)
	if err != nil {
		return nil, err
	}

	result := make(map[string]Availability, len(source.Items))
	for _, item := range source.Items {
		used := consumed[item.ItemCode]
		result[item.ItemCode] = Availability{
			Requested: item.Qty,
			Consumed:  used,
			Available: item.Qty.Sub(used),
		}
	}
	return result, nil
}

// Validate rejects over-allocation before commit. Draft siblings on the
// generic chain already hold quantity here; the RFQ→purchase-order bucket
// counts submitted orders only. The consumed sum excludes the candidate's own
// rows so re-validating an amended document does not double count itself.
func (s *service) Validate(ctx context.Context, candidate *models.Document) error {
	key, err := s.ResolveKey(ctx, candidate)
	if err != nil {
		s.reject(err)
		return err
	}
	if key == nil {
		return nil
	}

	source, err := s.repo.GetDocument(ctx, key.SourceKind, key.SourceNo)
	if err != nil {
		return err
	}
	if source == nil {
		err := pkgerrors.New(pkgerrors.CodeBrokenChain,
			fmt.Sprintf("%s %s referenced by %s does not exist", key.SourceKind, key.SourceNo, candidate.DocNo)).
			WithDetails(map[string]any{"missing_kind": key.SourceKind, "missing_no": key.SourceNo})
		s.reject(err)
		return err
	}

	consumers, err := s.repo.ListConsumers(ctx, *key)
	if err != nil {
		return err
	}

	var failures error
	for _, item := range candidate.Items {
		requested, ok := source.ItemQty(item.ItemCode)
		if !ok {
			failures = multierr.Append(failures, pkgerrors.New(pkgerrors.CodeItemNotInSource,
				fmt.Sprintf("item %s is not present on %s %s", item.ItemCode, key.SourceKind, key.SourceNo)).
				WithDetails(map[string]any{
					"item_code":   item.ItemCode,
					"source_kind": key.SourceKind,
					"source_no":   key.SourceNo,
				}))
			continue
		}

		consumed := decimal.Zero
		contributors := make([]ConsumerRef, 0, len(consumers))
		for _, consumer := range consumers {
			if consumer.ID == candidate.ID {
				continue
			}
			qty, ok := consumer.ItemQty(item.ItemCode)
			if !ok {
				continue
			}
			consumed = consumed.Add(qty)
			contributors = append(contributors, ConsumerRef{Kind: consumer.Kind, DocNo: consumer.DocNo, Qty: qty})
		}

		if item.Qty.Add(consumed).GreaterThan(requested) {
			available := requested.Sub(consumed)
			failures = multierr.Append(failures, pkgerrors.New(pkgerrors.CodeOverAllocation,
				fmt.Sprintf("item %s: attempted %s exceeds available %s (requested %s, consumed %s)",
					item.ItemCode, item.Qty, available, requested, consumed)).
				WithDetails(map[string]any{
					"item_code":   item.ItemCode,
					"requested":   requested,
					"consumed":    consumed,
					"consumed_by": contributors,
					"attempted":   item.Qty,
					"available":   available,
				}))
		}
	}

	if failures != nil {
		s.reject(failures)
	}
	return failures
}

// ApplySubmit accumulates the document's quantities into its ledger bucket.
// The processed-flag row makes a duplicate invocation a no-op.
func (s *service) ApplySubmit(ctx context.Context, doc *models.Document) error {
	key, err := s.ResolveKey(ctx, doc)
	if err != nil {
		return err
	}
	if key == nil {
		return nil
	}

	applied, err := s.repo.HasApplication(ctx, doc.ID, models.LedgerDirectionSubmit)
	if err != nil {
		return err
	}
	if applied {
		if s.logg != nil {
			s.logg.Warn(ctx, fmt.Sprintf("submit delta for %s %s already applied, skipping", doc.Kind, doc.DocNo))
		}
		return nil
	}
	if err := s.repo.RecordApplication(ctx, doc.ID, models.LedgerDirectionSubmit); err != nil {
		return err
	}

	for _, item := range doc.Items {
		if err := s.repo.AddConsumed(ctx, *key, item.ItemCode, item.Qty); err != nil {
			return err
		}
	}
	s.metrics.IncApply(models.LedgerDirectionSubmit)
	return nil
}

// ApplyCancel reverses a previously applied submit delta, flooring at zero.
func (s *service) ApplyCancel(ctx context.Context, doc *models.Document) error {
	key, err := s.ResolveKey(ctx, doc)
	if err != nil {
		return err
	}
	if key == nil {
		return nil
	}

	submitted, err := s.repo.HasApplication(ctx, doc.ID, models.LedgerDirectionSubmit)
	if err != nil {
		return err
	}
	if !submitted {
		return nil
	}

	applied, err := s.repo.HasApplication(ctx, doc.ID, models.LedgerDirectionCancel)
	if err != nil {
		return err
	}
	if applied {
		if s.logg != nil {
			s.logg.Warn(ctx, fmt.Sprintf("cancel delta for %s %s already applied, skipping", doc.Kind, doc.DocNo))
		}
		return nil
	}
	if err := s.repo.RecordApplication(ctx, doc.ID, models.LedgerDirectionCancel); err != nil {
		return err
	}

	for _, item := range doc.Items {
		if err := s.repo.SubtractConsumed(ctx, *key, item.ItemCode, item.Qty); err != nil {
			return err
		}
	}
	s.metrics.IncApply(models.LedgerDirectionCancel)
	return nil
}

// Recompute sums submitted consumers from scratch. The persisted ledger
// accumulates submit and cancel deltas only, so that is the set it must
// always agree with.
func (s *service) Recompute(ctx context.Context, key Key) (map[string]decimal.Decimal, error) {
	consumers, err := s.repo.ListSubmittedConsumers(ctx, key)
	if err != nil {
		return nil, err
	}
	consumed := make(map[string]decimal.Decimal)
	for _, consumer := range consumers {
		for _, item := range consumer.Items {
			consumed[item.ItemCode] = consumed[item.ItemCode].Add(item.Qty)
		}
	}
	return consumed, nil
}

// Reconcile overwrites the persisted entries with the recomputed truth and
// returns it. Audit/repair path; normal operation never needs it.
func (s *service) Reconcile(ctx context.Context, key Key) (map[string]decimal.Decimal, error) {
	consumed, err := s.Recompute(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := s.repo.ReplaceEntries(ctx, key, consumed); err != nil {
		return nil, err
	}
	return consumed, nil
}

func (s *service) LockSource(ctx context.Context, key Key) error {
	return s.repo.LockSource(ctx, key.SourceKind, key.SourceNo)
}

func (s *service) reject(err error) {
	if typed := pkgerrors.As(err); typed != nil {
		s.metrics.IncRejection(string(typed.Code()))
		return
	}
	s.metrics.IncRejection(string(pkgerrors.CodeInternal))
}
