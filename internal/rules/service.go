package rules

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nextcoretech/procurement-backend/pkg/db/models"
	pkgerrors "github.com/nextcoretech/procurement-backend/pkg/errors"
	"github.com/nextcoretech/procurement-backend/pkg/metrics"
)

// CreateRuleInput captures one amount-range rule to be saved.
type CreateRuleInput struct {
	RuleName     string          `json:"rule_name"`
	AmountFrom   decimal.Decimal `json:"amount_from"`
	AmountTo     decimal.Decimal `json:"amount_to"`
	MinSuppliers int             `json:"min_suppliers"`
	Priority     int             `json:"priority"`
	Active       bool            `json:"active"`
}

// Service resolves minimum-supplier rules over non-overlapping amount ranges.
type Service interface {
	WithTx(tx *gorm.DB) Service

	CreateRule(ctx context.Context, input CreateRuleInput) (*models.SupplierRule, error)
	ListRules(ctx context.Context) ([]models.SupplierRule, error)
	// Resolve returns the applicable active rule for the amount, or nil when
	// no range covers it. Lowest priority value wins; earliest created breaks
	// ties (defensive path, overlap is rejected at save).
	Resolve(ctx context.Context, totalAmount decimal.Decimal) (*models.SupplierRule, error)
	// ValidateRFQSuppliers checks the invited supplier count against the
	// rule matched by the RFQ's grand total. Zero-amount RFQs skip the check.
	ValidateRFQSuppliers(ctx context.Context, rfq *models.Document, supplierCount int) error
}

type service struct {
	repo    Repository
	metrics *metrics.EngineMetrics
}

// NewService wires the rule service with its repository.
func NewService(repo Repository, engineMetrics *metrics.EngineMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("rules repository required")
	}
	return &service{repo: repo, metrics: engineMetrics}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	return &service{repo: s.repo.WithTx(tx), metrics: s.metrics}
}

func (s *service) CreateRule(ctx context.Context, input CreateRuleInput) (*models.SupplierRule, error) {
	if input.RuleName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rule_name is required")
	}
	if !input.AmountFrom.LessThan(input.AmountTo) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("amount_from %s must be below amount_to %s", input.AmountFrom, input.AmountTo))
	}
	if input.MinSuppliers < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "min_suppliers must be at least 1")
	}
	if input.Priority == 0 {
		input.Priority = 100
	}

	existing, err := s.repo.GetByName(ctx, input.RuleName)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("rule %s already exists", input.RuleName))
	}

	rule := &models.SupplierRule{
		RuleName:     input.RuleName,
		AmountFrom:   input.AmountFrom,
		AmountTo:     input.AmountTo,
		MinSuppliers: input.MinSuppliers,
		Priority:     input.Priority,
		Active:       input.Active,
	}

	if rule.Active {
		active, err := s.repo.ListActive(ctx)
		if err != nil {
			return nil, err
		}
		if err := CheckOverlap(*rule, active); err != nil {
			s.reject(err)
			return nil, err
		}
	}

	if err := s.repo.Create(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// CheckOverlap applies the half-open interval overlap test against every
// active rule and fails with the full conflicting list.
func CheckOverlap(candidate models.SupplierRule, active []models.SupplierRule) error {
	var conflicts []string
	for _, other := range active {
		if other.RuleName == candidate.RuleName {
			continue
		}
		if candidate.Overlaps(other) {
			conflicts = append(conflicts, other.RuleName)
		}
	}
	if len(conflicts) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeOverlappingRuleRange,
		fmt.Sprintf("range [%s, %s) overlaps active rules: %v",
			candidate.AmountFrom, candidate.AmountTo, conflicts)).
		WithDetails(map[string]any{
			"amount_from":       candidate.AmountFrom,
			"amount_to":         candidate.AmountTo,
			"conflicting_rules": conflicts,
		})
}

func (s *service) ListRules(ctx context.Context) ([]models.SupplierRule, error) {
	return s.repo.List(ctx)
}

func (s *service) Resolve(ctx context.Context, totalAmount decimal.Decimal) (*models.SupplierRule, error) {
	active, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	var matches []models.SupplierRule
	for _, rule := range active {
		if rule.Covers(totalAmount) {
			matches = append(matches, rule)
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Priority != matches[j].Priority {
			return matches[i].Priority < matches[j].Priority
		}
		return matches[i].CreatedAt.Before(matches[j].CreatedAt)
	})
	return &matches[0], nil
}

func (s *service) ValidateRFQSuppliers(ctx context.Context, rfq *models.Document, supplierCount int) error {
	if rfq == nil {
		return fmt.Errorf("rfq document required")
	}

	total := rfq.GrandTotal()
	if total.IsZero() {
		return nil
	}

	rule, err := s.Resolve(ctx, total)
	if err != nil {
		return err
	}
	if rule == nil || supplierCount >= rule.MinSuppliers {
		return nil
	}

	err = pkgerrors.New(pkgerrors.CodeInsufficientSupplier,
		fmt.Sprintf("RFQ %s totals %s which requires at least %d suppliers under rule %s, got %d",
			rfq.DocNo, total, rule.MinSuppliers, rule.RuleName, supplierCount)).
		WithDetails(map[string]any{
			"total_amount":       total,
			"matched_rule":       rule.RuleName,
			"required_suppliers": rule.MinSuppliers,
			"actual_suppliers":   supplierCount,
		})
	s.reject(err)
	return err
}

func (s *service) reject(err error) {
	if typed := pkgerrors.As(err); typed != nil {
		s.metrics.IncRejection(string(typed.Code()))
	}
}
