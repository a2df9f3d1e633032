package comparison

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/nextcoretech/procurement-backend/pkg/db/models"
	"github.com/nextcoretech/procurement-backend/pkg/enums"
)

// Repository loads the documents the comparison engine ranks.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	GetRFQ(ctx context.Context, docNo string) (*models.Document, error)
	// ListQuotations returns the submitted quotations sourced from the RFQ,
	// oldest first.
	ListQuotations(ctx context.Context, rfqNo string) ([]models.Document, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository builds a comparison repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	return &gormRepository{db: tx}
}

func (r *gormRepository) GetRFQ(ctx context.Context, docNo string) (*models.Document, error) {
	var doc models.Document
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, created_at ASC") }).
		Where("kind = ? AND doc_no = ?", enums.DocKindRFQ, docNo).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *gormRepository) ListQuotations(ctx context.Context, rfqNo string) ([]models.Document, error) {
	var docs []models.Document
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, created_at ASC") }).
		Where("kind = ? AND status = ? AND source_kind = ? AND source_no = ?",
			enums.DocKindSupplierQuotation, enums.DocStatusSubmitted, enums.DocKindRFQ, rfqNo).
		Order("created_at ASC").
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}
