package controllers

import (
	"net/http"

	"github.com/nextcoretech/procurement-backend/api/responses"
	"github.com/nextcoretech/procurement-backend/api/validators"
	"github.com/nextcoretech/procurement-backend/internal/flows"
	"github.com/nextcoretech/procurement-backend/pkg/logger"
)

func FlowActive(svc flows.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flow, err := svc.ActiveFlow(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, flow)
	}
}

type replaceFlowRequest struct {
	FlowName string            `json:"flow_name" validate:"required"`
	Steps    []flowStepRequest `json:"steps" validate:"required,min=1,dive"`
}

type flowStepRequest struct {
	StepNo         int    `json:"step_no" validate:"required,min=1"`
	Kind           string `json:"kind" validate:"required"`
	RequiresSource bool   `json:"requires_source"`
}

// FlowReplaceActive swaps the active step configuration in one transaction.
func FlowReplaceActive(svc flows.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload replaceFlowRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := flows.ReplaceFlowInput{FlowName: payload.FlowName}
		for _, step := range payload.Steps {
			input.Steps = append(input.Steps, flows.StepInput{
				StepNo:         step.StepNo,
				Kind:           step.Kind,
				RequiresSource: step.RequiresSource,
			})
		}

		flow, err := svc.ReplaceActiveFlow(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, flow)
	}
}
