package flows

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/nextcoretech/procurement-backend/pkg/db/models"
)

// Repository exposes procurement flow persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetActive(ctx context.Context) (*models.ProcurementFlow, error)
	GetByName(ctx context.Context, flowName string) (*models.ProcurementFlow, error)
	List(ctx context.Context) ([]models.ProcurementFlow, error)
	Create(ctx context.Context, flow *models.ProcurementFlow) error
	DeactivateAll(ctx context.Context) error
	ReplaceSteps(ctx context.Context, flow *models.ProcurementFlow, steps []models.FlowStep) error
	SetActive(ctx context.Context, flowID int64, active bool) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository builds a flow repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	return &gormRepository{db: tx}
}

func (r *gormRepository) GetActive(ctx context.Context) (*models.ProcurementFlow, error) {
	var flow models.ProcurementFlow
	err := r.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("step_no ASC") }).
		Where("active = ?", true).
		First(&flow).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &flow, nil
}

func (r *gormRepository) GetByName(ctx context.Context, flowName string) (*models.ProcurementFlow, error) {
	var flow models.ProcurementFlow
	err := r.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("step_no ASC") }).
		Where("flow_name = ?", flowName).
		First(&flow).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &flow, nil
}

func (r *gormRepository) List(ctx context.Context) ([]models.ProcurementFlow, error) {
	var flows []models.ProcurementFlow
	err := r.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("step_no ASC") }).
		Order("flow_name ASC").
		Find(&flows).Error
	if err != nil {
		return nil, err
	}
	return flows, nil
}

func (r *gormRepository) Create(ctx context.Context, flow *models.ProcurementFlow) error {
	return r.db.WithContext(ctx).Create(flow).Error
}

func (r *gormRepository) DeactivateAll(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Model(&models.ProcurementFlow{}).
		Where("active = ?", true).
		Update("active", false).Error
}

func (r *gormRepository) ReplaceSteps(ctx context.Context, flow *models.ProcurementFlow, steps []models.FlowStep) error {
	err := r.db.WithContext(ctx).
		Where("flow_id = ?", flow.ID).
		Delete(&models.FlowStep{}).Error
	if err != nil {
		return err
	}
	for i := range steps {
		steps[i].FlowID = flow.ID
	}
	if len(steps) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&steps).Error
}

func (r *gormRepository) SetActive(ctx context.Context, flowID int64, active bool) error {
	return r.db.WithContext(ctx).
		Model(&models.ProcurementFlow{}).
		Where("id = ?", flowID).
		Update("active", active).Error
}
