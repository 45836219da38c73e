package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rhizhq/rhiz/internal/scoring"
	"github.com/rhizhq/rhiz/internal/storage"
)

func handleGetTrust(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, err := deps.Store.GetTrustInsight(chi.URLParam(r, "id"))
		if err != nil {
			storeError(w, "trust insight", err)
			return
		}
		writeJSON(w, http.StatusOK, in)
	}
}

func handleRecompute(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, err := deps.Trust.Recompute(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			storeError(w, "contact", err)
			return
		}
		writeJSON(w, http.StatusOK, in)
	}
}

func handleRecomputeAll(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum, err := deps.Trust.RecomputeAll(r.Context(), deps.owner())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "recompute failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}

func handleListTrust(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var tier scoring.Tier
		if s := r.URL.Query().Get("tier"); s != "" {
			t, err := scoring.ParseTier(s)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
				return
			}
			tier = t
		}

		insights, err := deps.Store.ListTrustInsights(deps.owner(), tier)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list insights: %v", err)
			return
		}
		if insights == nil {
			insights = []storage.TrustInsight{}
		}
		writeJSON(w, http.StatusOK, insights)
	}
}
