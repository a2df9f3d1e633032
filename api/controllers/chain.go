package controllers

import (
	"net/http"

	"github.com/nextcoretech/procurement-backend/api/responses"
	"github.com/nextcoretech/procurement-backend/internal/chain"
	"github.com/nextcoretech/procurement-backend/pkg/logger"
)

// DocumentChain returns the full chain view for a document: its ancestor path
// back to the root plus the root's descendant tree with the path highlighted.
func DocumentChain(svc chain.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, docNo, err := docRefFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		overview, err := svc.Overview(r.Context(), kind, docNo)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, overview)
	}
}
