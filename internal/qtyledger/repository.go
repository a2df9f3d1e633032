package qtyledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nextcoretech/procurement-backend/pkg/db/models"
	"github.com/nextcoretech/procurement-backend/pkg/enums"
)

// Repository defines the persistence operations the ledger needs: entry
// accumulation, processed-flag rows, and the document reads that back
// validation and recomputation.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	GetDocument(ctx context.Context, kind enums.DocKind, docNo string) (*models.Document, error)
	// ListConsumers returns the documents whose ledger key resolves to key,
	// as validation counts them: drafts hold quantity on the generic chain
	// from the moment they are saved, while the RFQ→purchase-order bucket
	// moves on submit and cancel alone, so only submitted orders count
	// there. Cancelled documents never contribute.
	ListConsumers(ctx context.Context, key Key) ([]models.Document, error)
	// ListSubmittedConsumers returns only submitted documents for key, the
	// set the persisted entries must always agree with.
	ListSubmittedConsumers(ctx context.Context, key Key) ([]models.Document, error)

	ListEntries(ctx context.Context, key Key) ([]models.LedgerEntry, error)
	AddConsumed(ctx context.Context, key Key, itemCode string, qty decimal.Decimal) error
	SubtractConsumed(ctx context.Context, key Key, itemCode string, qty decimal.Decimal) error
	ReplaceEntries(ctx context.Context, key Key, consumed map[string]decimal.Decimal) error

	HasApplication(ctx context.Context, documentID uuid.UUID, direction string) (bool, error)
	RecordApplication(ctx context.Context, documentID uuid.UUID, direction string) error

	// LockSource takes a row lock on the source document so competing
	// submitters against the same source serialize.
	LockSource(ctx context.Context, kind enums.DocKind, docNo string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository builds a ledger repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	return &gormRepository{db: tx}
}

func (r *gormRepository) GetDocument(ctx context.Context, kind enums.DocKind, docNo string) (*models.Document, error) {
	var doc models.Document
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("kind = ? AND doc_no = ?", kind, docNo).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *gormRepository) ListConsumers(ctx context.Context, key Key) ([]models.Document, error) {
	submittedOnly := key.TargetKind == enums.DocKindPurchaseOrder && key.SourceKind == enums.DocKindRFQ
	return r.listConsumers(ctx, key, submittedOnly)
}

func (r *gormRepository) ListSubmittedConsumers(ctx context.Context, key Key) ([]models.Document, error) {
	return r.listConsumers(ctx, key, true)
}

func (r *gormRepository) listConsumers(ctx context.Context, key Key, submittedOnly bool) ([]models.Document, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("kind = ?", key.TargetKind)
	if submittedOnly {
		query = query.Where("status = ?", enums.DocStatusSubmitted)
	} else {
		query = query.Where("status <> ?", enums.DocStatusCancelled)
	}

	// Purchase Orders charge the RFQ ancestor, so the consumer set spans
	// every quotation under that RFQ, not one direct child list.
	if key.TargetKind == enums.DocKindPurchaseOrder && key.SourceKind == enums.DocKindRFQ {
		quotations := r.db.Model(&models.Document{}).
			Select("doc_no").
			Where("kind = ? AND source_kind = ? AND source_no = ?",
				enums.DocKindSupplierQuotation, key.SourceKind, key.SourceNo)
		query = query.Where("source_kind = ? AND source_no IN (?)", enums.DocKindSupplierQuotation, quotations)
	} else {
		query = query.Where("source_kind = ? AND source_no = ?", key.SourceKind, key.SourceNo)
	}

	var docs []models.Document
	if err := query.Order("created_at ASC").Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *gormRepository) ListEntries(ctx context.Context, key Key) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("source_kind = ? AND source_no = ? AND target_kind = ?",
			key.SourceKind, key.SourceNo, key.TargetKind).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *gormRepository) AddConsumed(ctx context.Context, key Key, itemCode string, qty decimal.Decimal) error {
	entry := models.LedgerEntry{
		SourceKind: key.SourceKind,
		SourceNo:   key.SourceNo,
		TargetKind: key.TargetKind,
		ItemCode:   itemCode,
		Consumed:   qty,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "source_kind"}, {Name: "source_no"},
				{Name: "target_kind"}, {Name: "item_code"},
			},
			DoUpdates: clause.Assignments(map[string]any{
				"consumed": gorm.Expr("ledger_entries.consumed + EXCLUDED.consumed"),
			}),
		}).
		Create(&entry).Error
}

func (r *gormRepository) SubtractConsumed(ctx context.Context, key Key, itemCode string, qty decimal.Decimal) error {
	// Never below zero; a cancel delta against a missing row is a no-op.
	return r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("source_kind = ? AND source_no = ? AND target_kind = ? AND item_code = ?",
			key.SourceKind, key.SourceNo, key.TargetKind, itemCode).
		Update("consumed", gorm.Expr("GREATEST(consumed - ?, 0)", qty)).Error
}

func (r *gormRepository) ReplaceEntries(ctx context.Context, key Key, consumed map[string]decimal.Decimal) error {
	err := r.db.WithContext(ctx).
		Where("source_kind = ? AND source_no = ? AND target_kind = ?",
			key.SourceKind, key.SourceNo, key.TargetKind).
		Delete(&models.LedgerEntry{}).Error
	if err != nil {
		return err
	}
	for itemCode, qty := range consumed {
		if err := r.AddConsumed(ctx, key, itemCode, qty); err != nil {
			return err
		}
	}
	return nil
}

func (r *gormRepository) HasApplication(ctx context.Context, documentID uuid.UUID, direction string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.LedgerApplication{}).
		Where("document_id = ? AND direction = ?", documentID, direction).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *gormRepository) RecordApplication(ctx context.Context, documentID uuid.UUID, direction string) error {
	application := models.LedgerApplication{
		DocumentID: documentID,
		Direction:  direction,
	}
	return r.db.WithContext(ctx).Create(&application).Error
}

func (r *gormRepository) LockSource(ctx context.Context, kind enums.DocKind, docNo string) error {
	var doc models.Document
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("kind = ? AND doc_no = ?", kind, docNo).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
