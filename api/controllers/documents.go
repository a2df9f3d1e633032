package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/nextcoretech/procurement-backend/api/responses"
	"github.com/nextcoretech/procurement-backend/api/validators"
	"github.com/nextcoretech/procurement-backend/internal/documents"
	"github.com/nextcoretech/procurement-backend/internal/qtyledger"
	"github.com/nextcoretech/procurement-backend/pkg/enums"
	pkgerrors "github.com/nextcoretech/procurement-backend/pkg/errors"
	"github.com/nextcoretech/procurement-backend/pkg/logger"
)

type createDocumentRequest struct {
	Kind       string              `json:"kind" validate:"required"`
	DocNo      string              `json:"doc_no"`
	Supplier   string              `json:"supplier"`
	Currency   string              `json:"currency"`
	SourceKind *string             `json:"source_kind"`
	SourceNo   *string             `json:"source_no"`
	Items      []documentItemInput `json:"items" validate:"omitempty,dive"`
	Suppliers  []string            `json:"suppliers"`
}

type documentItemInput struct {
	ItemCode string          `json:"item_code" validate:"required"`
	ItemName string          `json:"item_name"`
	Qty      decimal.Decimal `json:"qty"`
	UOM      string          `json:"uom"`
	Rate     decimal.Decimal `json:"rate"`
}

func (r createDocumentRequest) toCreateInput() (documents.CreateInput, error) {
	kind, err := validators.ParseDocKindParam(r.Kind)
	if err != nil {
		return documents.CreateInput{}, err
	}

	input := documents.CreateInput{
		Kind:      kind,
		DocNo:     r.DocNo,
		Supplier:  strings.TrimSpace(r.Supplier),
		Currency:  strings.TrimSpace(r.Currency),
		Suppliers: r.Suppliers,
		SourceNo:  r.SourceNo,
	}
	if r.SourceKind != nil {
		srcKind, err := validators.ParseDocKindParam(*r.SourceKind)
		if err != nil {
			return documents.CreateInput{}, err
		}
		input.SourceKind = &srcKind
	}
	for _, item := range r.Items {
		input.Items = append(input.Items, documents.ItemInput{
			ItemCode: item.ItemCode,
			ItemName: item.ItemName,
			Qty:      item.Qty,
			UOM:      item.UOM,
			Rate:     item.Rate,
		})
	}
	return input, nil
}

// DocumentCreate drafts a new document, with or without a source reference.
func DocumentCreate(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createDocumentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toCreateInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

func DocumentGet(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, docNo, err := docRefFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Get(r.Context(), kind, docNo)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func DocumentSubmit(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, docNo, err := docRefFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Submit(r.Context(), kind, docNo)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func DocumentCancel(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, docNo, err := docRefFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Cancel(r.Context(), kind, docNo)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

type fromSourceRequest struct {
	SourceKind string   `json:"source_kind" validate:"required"`
	SourceNo   string   `json:"source_no" validate:"required"`
	TargetKind string   `json:"target_kind" validate:"required"`
	DocNo      string   `json:"doc_no"`
	ItemCodes  []string `json:"item_codes"`
	Supplier   string   `json:"supplier"`
}

// DocumentFromSource drafts the next-step document from an existing one.
func DocumentFromSource(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload fromSourceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sourceKind, err := validators.ParseDocKindParam(payload.SourceKind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		targetKind, err := validators.ParseDocKindParam(payload.TargetKind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.CreateFromSource(r.Context(), documents.FromSourceInput{
			SourceKind: sourceKind,
			SourceNo:   payload.SourceNo,
			TargetKind: targetKind,
			DocNo:      payload.DocNo,
			ItemCodes:  payload.ItemCodes,
			Supplier:   strings.TrimSpace(payload.Supplier),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// DocumentAvailableQuantities reports requested/consumed/available per item
// for drafting target_kind documents against the given source.
func DocumentAvailableQuantities(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, docNo, err := docRefFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		targetKind, err := validators.ParseDocKindParam(r.URL.Query().Get("target_kind"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		availability, err := svc.AvailableQuantities(r.Context(), qtyledger.Key{
			SourceKind: kind,
			SourceNo:   docNo,
			TargetKind: targetKind,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"source_kind": kind,
			"source_no":   docNo,
			"target_kind": targetKind,
			"items":       availability,
		})
	}
}

func docRefFromPath(r *http.Request) (enums.DocKind, string, error) {
	kind, err := validators.ParseDocKindParam(chi.URLParam(r, "kind"))
	if err != nil {
		return "", "", err
	}
	docNo := strings.TrimSpace(chi.URLParam(r, "docNo"))
	if docNo == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "document number is required")
	}
	return kind, docNo, nil
}
