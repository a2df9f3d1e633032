package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nextcoretech/procurement-backend/api/responses"
	"github.com/nextcoretech/procurement-backend/api/validators"
	"github.com/nextcoretech/procurement-backend/internal/comparison"
	pkgerrors "github.com/nextcoretech/procurement-backend/pkg/errors"
	"github.com/nextcoretech/procurement-backend/pkg/logger"
)

// RFQComparison returns the comparison sheet over an RFQ's submitted
// quotations: total ranking, per-item ranking and both winners.
func RFQComparison(svc comparison.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rfqNo := strings.TrimSpace(chi.URLParam(r, "docNo"))
		if rfqNo == "" {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "rfq number is required"))
			return
		}

		result, err := svc.Compare(r.Context(), rfqNo)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type awardRequest struct {
	DocNo     string   `json:"doc_no"`
	ItemCodes []string `json:"item_codes"`
}

// QuotationAward turns a submitted quotation into a draft purchase order.
func QuotationAward(svc comparison.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quotationNo := strings.TrimSpace(chi.URLParam(r, "docNo"))
		if quotationNo == "" {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "quotation number is required"))
			return
		}

		var payload awardRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		po, err := svc.Award(r.Context(), comparison.AwardInput{
			QuotationNo: quotationNo,
			DocNo:       payload.DocNo,
			ItemCodes:   payload.ItemCodes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, po)
	}
}
