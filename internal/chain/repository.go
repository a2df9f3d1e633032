package chain

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/nextcoretech/procurement-backend/pkg/db/models"
	"github.com/nextcoretech/procurement-backend/pkg/enums"
)

// Repository exposes the two reads a chain walk needs: one document by
// reference and all documents pointing at a reference.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetDocument(ctx context.Context, kind enums.DocKind, docNo string) (*models.Document, error)
	ListChildren(ctx context.Context, kind enums.DocKind, docNo string) ([]models.Document, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository builds a chain repository tied to the provided GORM DB.
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

func (r *gormRepository) ListChildren(ctx context.Context, kind enums.DocKind, docNo string) ([]models.Document, error) {
	var docs []models.Document
	err := r.db.WithContext(ctx).
		Where("source_kind = ? AND source_no = ?", kind, docNo).
		Order("kind ASC, created_at ASC").
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}
