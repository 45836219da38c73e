package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rhizhq/rhiz/internal/matching"
	"github.com/rhizhq/rhiz/internal/scoring"
	"github.com/rhizhq/rhiz/internal/storage"
)

const maxMatchK = 100

type GoalRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type MatchRequest struct {
	Text string `json:"text"`
	K    int    `json:"k"`
}

type SimilarityRequest struct {
	A []float64 `json:"a"`
	B []float64 `json:"b"`
}

func matchesOrEmpty(ms []matching.Match) []matching.Match {
	if ms == nil {
		return []matching.Match{}
	}
	return ms
}

func handleSimilar(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		k := parseIntParam(r, "k", deps.topK(), maxMatchK)
		ms, err := deps.Matcher.SimilarContacts(r.Context(), chi.URLParam(r, "id"), k)
		if err != nil {
			storeError(w, "contact vector", err)
			return
		}
		writeJSON(w, http.StatusOK, matchesOrEmpty(ms))
	}
}

func handleCreateGoal(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GoalRequest
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		g := storage.Goal{
			ID:          uuid.New().String(),
			OwnerID:     deps.owner(),
			Title:       req.Title,
			Description: req.Description,
		}
		if err := deps.Store.SaveGoal(g); err != nil {
			storeError(w, "goal", err)
			return
		}
		saved, err := deps.Store.GetGoal(g.ID)
		if err != nil {
			storeError(w, "goal", err)
			return
		}
		writeJSON(w, http.StatusCreated, saved)
	}
}

func handleListGoals(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		goals, err := deps.Store.ListGoals(deps.owner(), parseIntParam(r, "limit", 50, 500))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list goals: %v", err)
			return
		}
		if goals == nil {
			goals = []storage.Goal{}
		}
		writeJSON(w, http.StatusOK, goals)
	}
}

func handleGoalMatches(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, err := deps.Store.GetGoal(chi.URLParam(r, "id"))
		if err != nil {
			storeError(w, "goal", err)
			return
		}
		k := parseIntParam(r, "k", deps.topK(), maxMatchK)
		ms, err := deps.Matcher.MatchGoal(r.Context(), g.OwnerID, g.Text(), k)
		if err != nil {
			storeError(w, "matching goal", err)
			return
		}
		writeJSON(w, http.StatusOK, matchesOrEmpty(ms))
	}
}

func handleMatch(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MatchRequest
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "text is required")
			return
		}
		k := req.K
		if k <= 0 {
			k = deps.topK()
		}
		if k > maxMatchK {
			k = maxMatchK
		}
		ms, err := deps.Matcher.MatchGoal(r.Context(), deps.owner(), req.Text, k)
		if err != nil {
			storeError(w, "matching", err)
			return
		}
		writeJSON(w, http.StatusOK, matchesOrEmpty(ms))
	}
}

func handleSimilarity(w http.ResponseWriter, r *http.Request) {
	var req SimilarityRequest
	if !decodeBody(w, r, maxRequestBodySize, &req) {
		return
	}
	sim, err := scoring.CosineSimilarity(req.A, req.B)
	if errors.Is(err, scoring.ErrShapeMismatch) {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"similarity": sim})
}
