package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rhizhq/rhiz/internal/outreach"
	"github.com/rhizhq/rhiz/internal/storage"
)

type DraftRequest struct {
	Purpose string `json:"purpose"`
}

func handleSuggestions(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cands, err := outreach.Candidates(deps.Store, deps.owner())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
			return
		}
		sugg := outreach.Suggest(cands, outreach.Options{
			QuietDays: parseIntParam(r, "quiet_days", deps.QuietDays, 3650),
			Limit:     parseIntParam(r, "limit", 10, 100),
		})
		if sugg == nil {
			sugg = []outreach.Suggestion{}
		}
		writeJSON(w, http.StatusOK, sugg)
	}
}

func handleDraft(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Drafter == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "drafting not available: no chat model configured")
			return
		}
		c, err := deps.Store.GetContact(chi.URLParam(r, "id"))
		if err != nil {
			storeError(w, "contact", err)
			return
		}

		var req DraftRequest
		if r.ContentLength != 0 && !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}

		in, err := deps.Store.GetTrustInsight(c.ID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusInternalServerError, "api_error", "loading insight: %v", err)
			return
		}
		if errors.Is(err, storage.ErrNotFound) {
			in = storage.TrustInsight{ContactID: c.ID, DaysSinceLast: -1}
		}

		d, err := deps.Drafter.Draft(r.Context(), c, in, req.Purpose)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "drafting failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}
