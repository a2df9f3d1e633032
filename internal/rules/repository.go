package rules

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/nextcoretech/procurement-backend/pkg/db/models"
)

// Repository exposes supplier rule persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, rule *models.SupplierRule) error
	Update(ctx context.Context, rule *models.SupplierRule) error
	GetByName(ctx context.Context, ruleName string) (*models.SupplierRule, error)
	List(ctx context.Context) ([]models.SupplierRule, error)
	ListActive(ctx context.Context) ([]models.SupplierRule, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository builds a rule repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	return &gormRepository{db: tx}
}

func (r *gormRepository) Create(ctx context.Context, rule *models.SupplierRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

func (r *gormRepository) Update(ctx context.Context, rule *models.SupplierRule) error {
	return r.db.WithContext(ctx).Save(rule).Error
}

func (r *gormRepository) GetByName(ctx context.Context, ruleName string) (*models.SupplierRule, error) {
	var rule models.SupplierRule
	err := r.db.WithContext(ctx).Where("rule_name = ?", ruleName).First(&rule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *gormRepository) List(ctx context.Context) ([]models.SupplierRule, error) {
	var rules []models.SupplierRule
	err := r.db.WithContext(ctx).
		Order("priority ASC, created_at ASC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *gormRepository) ListActive(ctx context.Context) ([]models.SupplierRule, error) {
	var rules []models.SupplierRule
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("priority ASC, created_at ASC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}
