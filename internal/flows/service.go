package flows

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/nextcoretech/procurement-backend/pkg/db"
	"github.com/nextcoretech/procurement-backend/pkg/db/models"
	"github.com/nextcoretech/procurement-backend/pkg/enums"
	pkgerrors "github.com/nextcoretech/procurement-backend/pkg/errors"
)

// StepInput is one step of a flow being configured.
type StepInput struct {
	StepNo         int    `json:"step_no"`
	Kind           string `json:"kind"`
	RequiresSource bool   `json:"requires_source"`
}

// ReplaceFlowInput replaces the active flow configuration.
type ReplaceFlowInput struct {
	FlowName string      `json:"flow_name"`
	Steps    []StepInput `json:"steps"`
}

// Service manages the configured step sequences. The active flow is loaded
// per validation call and passed down explicitly; nothing reads it ambiently.
type Service interface {
	WithTx(tx *gorm.DB) Service

	// ActiveFlow returns the configured active flow, falling back to the
	// canonical seven-step sequence when none has been saved.
	ActiveFlow(ctx context.Context) (*models.ProcurementFlow, error)
	ListFlows(ctx context.Context) ([]models.ProcurementFlow, error)
	ReplaceActiveFlow(ctx context.Context, input ReplaceFlowInput) (*models.ProcurementFlow, error)
}

type service struct {
	repo   Repository
	client *db.Client
}

// NewService wires the flow service. The client may be nil when every call
// already runs inside a transaction.
func NewService(repo Repository, client *db.Client) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("flows repository required")
	}
	return &service{repo: repo, client: client}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	return &service{repo: s.repo.WithTx(tx)}
}

// DefaultFlow is the canonical full procurement sequence used until an
// operator configures one. Every step after the first expects a source but
// still allows manual creation.
func DefaultFlow() *models.ProcurementFlow {
	flow := &models.ProcurementFlow{FlowName: "standard-procurement", Active: true}
	for i, kind := range enums.AllDocKinds() {
		flow.Steps = append(flow.Steps, models.FlowStep{
			StepNo:         i + 1,
			Kind:           kind,
			RequiresSource: i > 0,
		})
	}
	return flow
}

func (s *service) ActiveFlow(ctx context.Context) (*models.ProcurementFlow, error) {
	flow, err := s.repo.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	if flow == nil {
		return DefaultFlow(), nil
	}
	return flow, nil
}

func (s *service) ListFlows(ctx context.Context) ([]models.ProcurementFlow, error) {
	return s.repo.List(ctx)
}

func (s *service) ReplaceActiveFlow(ctx context.Context, input ReplaceFlowInput) (*models.ProcurementFlow, error) {
	steps, err := validateSteps(input)
	if err != nil {
		return nil, err
	}

	if s.client == nil {
		return s.replace(ctx, s.repo, input.FlowName, steps)
	}

	var saved *models.ProcurementFlow
	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		saved, txErr = s.replace(ctx, s.repo.WithTx(tx), input.FlowName, steps)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (s *service) replace(ctx context.Context, repo Repository, flowName string, steps []models.FlowStep) (*models.ProcurementFlow, error) {
	if err := repo.DeactivateAll(ctx); err != nil {
		return nil, err
	}

	flow, err := repo.GetByName(ctx, flowName)
	if err != nil {
		return nil, err
	}
	if flow == nil {
		flow = &models.ProcurementFlow{FlowName: flowName, Active: true}
		if err := repo.Create(ctx, flow); err != nil {
			return nil, err
		}
	} else if err := repo.SetActive(ctx, flow.ID, true); err != nil {
		return nil, err
	}

	if err := repo.ReplaceSteps(ctx, flow, steps); err != nil {
		return nil, err
	}

	flow.Active = true
	flow.Steps = steps
	return flow, nil
}

func validateSteps(input ReplaceFlowInput) ([]models.FlowStep, error) {
	if input.FlowName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "flow_name is required")
	}
	if len(input.Steps) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one step is required")
	}

	steps := make([]models.FlowStep, 0, len(input.Steps))
	seenKinds := map[enums.DocKind]bool{}
	lastStepNo := 0
	for i, step := range input.Steps {
		kind, err := enums.ParseDocKind(step.Kind)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("step %d", step.StepNo))
		}
		if seenKinds[kind] {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("kind %s appears more than once", kind))
		}
		seenKinds[kind] = true

		if step.StepNo <= lastStepNo {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("step numbers must be strictly increasing, got %d after %d", step.StepNo, lastStepNo))
		}
		lastStepNo = step.StepNo

		if i == 0 && step.RequiresSource {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				"the first step cannot require a source")
		}

		steps = append(steps, models.FlowStep{
			StepNo:         step.StepNo,
			Kind:           kind,
			RequiresSource: step.RequiresSource,
		})
	}
	return steps, nil
}
