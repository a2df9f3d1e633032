package documents

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nextcoretech/procurement-backend/pkg/db/models"
	"github.com/nextcoretech/procurement-backend/pkg/enums"
)

// Repository exposes document persistence for the workflow service.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, doc *models.Document) error
	Get(ctx context.Context, kind enums.DocKind, docNo string) (*models.Document, error)
	// GetForUpdate loads the document under a row lock for status changes.
	GetForUpdate(ctx context.Context, kind enums.DocKind, docNo string) (*models.Document, error)
	UpdateStatus(ctx context.Context, doc *models.Document, status enums.DocStatus) error
	ListChildren(ctx context.Context, kind enums.DocKind, docNo string) ([]models.Document, error)

	ReplaceRFQSuppliers(ctx context.Context, documentID uuid.UUID, suppliers []string) error
	ListRFQSuppliers(ctx context.Context, documentID uuid.UUID) ([]models.RFQSupplier, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository builds a document repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	return &gormRepository{db: tx}
}

func (r *gormRepository) Create(ctx context.Context, doc *models.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *gormRepository) Get(ctx context.Context, kind enums.DocKind, docNo string) (*models.Document, error) {
	return r.get(ctx, kind, docNo, false)
}

func (r *gormRepository) GetForUpdate(ctx context.Context, kind enums.DocKind, docNo string) (*models.Document, error) {
	return r.get(ctx, kind, docNo, true)
}

func (r *gormRepository) get(ctx context.Context, kind enums.DocKind, docNo string, forUpdate bool) (*models.Document, error) {
	query := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, created_at ASC") })
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var doc models.Document
	err := query.Where("kind = ? AND doc_no = ?", kind, docNo).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *gormRepository) UpdateStatus(ctx context.Context, doc *models.Document, status enums.DocStatus) error {
	err := r.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("id = ?", doc.ID).
		Update("status", status).Error
	if err != nil {
		return err
	}
	doc.Status = status
	return nil
}

func (r *gormRepository) ListChildren(ctx context.Context, kind enums.DocKind, docNo string) ([]models.Document, error) {
	var docs []models.Document
	err := r.db.WithContext(ctx).
		Where("source_kind = ? AND source_no = ?", kind, docNo).
		Order("created_at ASC").
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *gormRepository) ReplaceRFQSuppliers(ctx context.Context, documentID uuid.UUID, suppliers []string) error {
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Delete(&models.RFQSupplier{}).Error
	if err != nil {
		return err
	}
	if len(suppliers) == 0 {
		return nil
	}
	rows := make([]models.RFQSupplier, 0, len(suppliers))
	for _, supplier := range suppliers {
		rows = append(rows, models.RFQSupplier{DocumentID: documentID, Supplier: supplier})
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *gormRepository) ListRFQSuppliers(ctx context.Context, documentID uuid.UUID) ([]models.RFQSupplier, error) {
	var rows []models.RFQSupplier
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("supplier ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
