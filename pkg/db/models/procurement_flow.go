package models

import (
	"time"

	"github.com/nextcoretech/procurement-backend/pkg/enums"
)

// ProcurementFlow is one configured step sequence. At most one flow is active
// at a time; the active flow drives step-order validation.
type ProcurementFlow struct {
	ID        int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	FlowName  string     `gorm:"column:flow_name;not null;uniqueIndex" json:"flow_name"`
	Active    bool       `gorm:"column:active;not null;default:false" json:"active"`
	Steps     []FlowStep `gorm:"foreignKey:FlowID;references:ID" json:"steps"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// FlowStep is one ordered stage in a procurement flow.
type FlowStep struct {
	ID             int64         `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	FlowID         int64         `gorm:"column:flow_id;not null;index" json:"flow_id"`
	StepNo         int           `gorm:"column:step_no;not null" json:"step_no"`
	Kind           enums.DocKind `gorm:"column:kind;type:doc_kind;not null" json:"kind"`
	RequiresSource bool          `gorm:"column:requires_source;not null;default:false" json:"requires_source"`
}

// StepFor returns the configured step for the given kind, or nil when the
// kind is not part of the flow.
func (f *ProcurementFlow) StepFor(kind enums.DocKind) *FlowStep {
	for i := range f.Steps {
		if f.Steps[i].Kind == kind {
			return &f.Steps[i]
		}
	}
	return nil
}

// PreviousStep returns the step immediately preceding the given kind.
func (f *ProcurementFlow) PreviousStep(kind enums.DocKind) *FlowStep {
	for i := range f.Steps {
		if f.Steps[i].Kind == kind && i > 0 {
			return &f.Steps[i-1]
		}
	}
	return nil
}

// NextStep returns the step immediately following the given kind.
func (f *ProcurementFlow) NextStep(kind enums.DocKind) *FlowStep {
	for i := range f.Steps {
		if f.Steps[i].Kind == kind && i < len(f.Steps)-1 {
			return &f.Steps[i+1]
		}
	}
	return nil
}
