// Package api exposes Rhiz over HTTP and MCP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhizhq/rhiz/internal/matching"
	"github.com/rhizhq/rhiz/internal/outreach"
	"github.com/rhizhq/rhiz/internal/scoring"
	"github.com/rhizhq/rhiz/internal/storage"
	"github.com/rhizhq/rhiz/internal/trust"
)

const maxRequestBodySize = 1 << 20 // 1MB

// DefaultOwner is the owner ID used when none is configured.
const DefaultOwner = "local"

// ContactMatcher ranks contacts by embedding similarity.
type ContactMatcher interface {
	MatchGoal(ctx context.Context, ownerID, text string, k int) ([]matching.Match, error)
	SimilarContacts(ctx context.Context, contactID string, k int) ([]matching.Match, error)
}

// TrustService recomputes stored insights.
type TrustService interface {
	Recompute(ctx context.Context, contactID string) (storage.TrustInsight, error)
	RecomputeAll(ctx context.Context, ownerID string) (trust.Summary, error)
}

// MessageDrafter writes outreach messages.
type MessageDrafter interface {
	Draft(ctx context.Context, c storage.Contact, in storage.TrustInsight, purpose string) (outreach.Draft, error)
}

type AppDeps struct {
	Store   *storage.Store
	Matcher ContactMatcher
	Trust   TrustService
	Drafter MessageDrafter // optional; drafting returns 503 when nil
	Token   string
	OwnerID string
	TopK    int
	// QuietDays is the default silence threshold for outreach suggestions.
	QuietDays int
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
}

func (d AppDeps) owner() string {
	if d.OwnerID == "" {
		return DefaultOwner
	}
	return d.OwnerID
}

func (d AppDeps) topK() int {
	if d.TopK <= 0 {
		return 10
	}
	return d.TopK
}

// NewHandler returns the full HTTP surface. Everything except /health and
// /metrics requires the bearer token.
func NewHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/contacts", handleCreateContact(deps))
		r.Get("/contacts", handleListContacts(deps))
		r.Get("/contacts/{id}", handleGetContact(deps))
		r.Delete("/contacts/{id}", handleDeleteContact(deps))
		r.Post("/contacts/{id}/bio", handleUploadBio(deps))
		r.Post("/contacts/{id}/interactions", handleLogInteraction(deps))
		r.Get("/contacts/{id}/interactions", handleListInteractions(deps))

		r.Get("/contacts/{id}/trust", handleGetTrust(deps))
		r.Post("/contacts/{id}/trust/recompute", handleRecompute(deps))
		r.Post("/trust/recompute", handleRecomputeAll(deps))
		r.Get("/trust", handleListTrust(deps))

		r.Get("/contacts/{id}/similar", handleSimilar(deps))
		r.Post("/goals", handleCreateGoal(deps))
		r.Get("/goals", handleListGoals(deps))
		r.Get("/goals/{id}/matches", handleGoalMatches(deps))
		r.Post("/match", handleMatch(deps))
		r.Post("/similarity", handleSimilarity)

		r.Get("/outreach/suggestions", handleSuggestions(deps))
		r.Post("/contacts/{id}/outreach/draft", handleDraft(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

// storeError maps domain sentinels onto status codes.
func storeError(w http.ResponseWriter, what string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "%s not found", what)
	case errors.Is(err, storage.ErrInvalidRecord):
		httpError(w, http.StatusUnprocessableEntity, "invalid_request_error", "%v", err)
	case errors.Is(err, scoring.ErrShapeMismatch):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%s: %v", what, err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
