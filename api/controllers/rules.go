package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/nextcoretech/procurement-backend/api/responses"
	"github.com/nextcoretech/procurement-backend/api/validators"
	"github.com/nextcoretech/procurement-backend/internal/rules"
	"github.com/nextcoretech/procurement-backend/pkg/logger"
)

type createRuleRequest struct {
	RuleName     string          `json:"rule_name" validate:"required"`
	AmountFrom   decimal.Decimal `json:"amount_from"`
	AmountTo     decimal.Decimal `json:"amount_to"`
	MinSuppliers int             `json:"min_suppliers" validate:"required,min=1"`
	Priority     int             `json:"priority" validate:"omitempty,min=1"`
	Active       *bool           `json:"active"`
}

// RuleCreate saves a minimum-supplier rule; overlapping active ranges are
// rejected here, not at resolution time.
func RuleCreate(svc rules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createRuleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		active := true
		if payload.Active != nil {
			active = *payload.Active
		}
		rule, err := svc.CreateRule(r.Context(), rules.CreateRuleInput{
			RuleName:     payload.RuleName,
			AmountFrom:   payload.AmountFrom,
			AmountTo:     payload.AmountTo,
			MinSuppliers: payload.MinSuppliers,
			Priority:     payload.Priority,
			Active:       active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, rule)
	}
}

func RuleList(svc rules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListRules(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// RuleApplicable resolves the rule covering total_amount, or null when no
// active range covers it.
func RuleApplicable(svc rules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		amount, err := validators.ParseQueryDecimal(r, "total_amount")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rule, err := svc.Resolve(r.Context(), amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"total_amount": amount,
			"rule":         rule,
		})
	}
}
