package api

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rhizhq/rhiz/internal/ingest"
	"github.com/rhizhq/rhiz/internal/scoring"
	"github.com/rhizhq/rhiz/internal/storage"
)

// base64 inflates the PDF by 4/3
const maxBioBodySize = ingest.MaxBioBytes*4/3 + 1024

type ContactRequest struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Role             string `json:"role"`
	Company          string `json:"company"`
	RelationshipType string `json:"relationship_type"`
	Notes            string `json:"notes"`
}

type InteractionRequest struct {
	Direction      string   `json:"direction"`
	OccurredAt     string   `json:"occurred_at"`
	Sentiment      *float64 `json:"sentiment"`
	SentimentLabel string   `json:"sentiment_label"`
	Outcome        string   `json:"outcome"`
}

type BioRequest struct {
	// Content is the base64-encoded PDF.
	Content string `json:"content"`
	// Replace overwrites existing notes instead of appending.
	Replace bool `json:"replace"`
}

func handleCreateContact(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ContactRequest
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}

		c := storage.Contact{
			ID:               req.ID,
			OwnerID:          deps.owner(),
			Name:             req.Name,
			Role:             req.Role,
			Company:          req.Company,
			RelationshipType: req.RelationshipType,
			Notes:            req.Notes,
		}
		status := http.StatusOK
		if c.ID == "" {
			c.ID = uuid.New().String()
			status = http.StatusCreated
		}
		saved, ok := saveContact(w, deps, c)
		if !ok {
			return
		}
		writeJSON(w, status, saved)
	}
}

// saveContact persists c, queues its embedding and returns the stored row.
func saveContact(w http.ResponseWriter, deps AppDeps, c storage.Contact) (storage.Contact, bool) {
	if err := deps.Store.SaveContact(c); err != nil {
		storeError(w, "saving contact", err)
		return storage.Contact{}, false
	}
	if err := ingest.EnqueueEmbed(deps.Store, c.ID); err != nil {
		slog.Warn("contact saved but embedding not queued", "contact_id", c.ID, "error", err)
	}
	saved, err := deps.Store.GetContact(c.ID)
	if err != nil {
		storeError(w, "contact", err)
		return storage.Contact{}, false
	}
	return saved, true
}

func handleListContacts(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 50, 500)
		offset := parseIntParam(r, "offset", 0, 0)

		contacts, err := deps.Store.ListContacts(deps.owner(), limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list contacts: %v", err)
			return
		}
		if contacts == nil {
			contacts = []storage.Contact{}
		}
		writeJSON(w, http.StatusOK, contacts)
	}
}

func handleGetContact(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := deps.Store.GetContact(chi.URLParam(r, "id"))
		if err != nil {
			storeError(w, "contact", err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func handleDeleteContact(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Store.DeleteContact(chi.URLParam(r, "id")); err != nil {
			storeError(w, "contact", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleUploadBio(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := deps.Store.GetContact(chi.URLParam(r, "id"))
		if err != nil {
			storeError(w, "contact", err)
			return
		}

		var req BioRequest
		if !decodeBody(w, r, maxBioBodySize, &req) {
			return
		}
		data, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid base64 content")
			return
		}
		text, err := ingest.ExtractPDFText(data)
		if err != nil {
			httpError(w, http.StatusUnprocessableEntity, "invalid_request_error", "reading PDF: %v", err)
			return
		}

		if req.Replace || strings.TrimSpace(c.Notes) == "" {
			c.Notes = text
		} else {
			c.Notes = c.Notes + "\n\n" + text
		}
		saved, ok := saveContact(w, deps, c)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, saved)
	}
}

func handleLogInteraction(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contactID := chi.URLParam(r, "id")

		var req InteractionRequest
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}

		at := time.Now().UTC()
		if req.OccurredAt != "" {
			t, err := time.Parse(time.RFC3339, req.OccurredAt)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "occurred_at must be RFC3339: %v", err)
				return
			}
			at = t
		}

		ix, err := storage.NewInteraction(uuid.New().String(), contactID,
			scoring.Direction(strings.ToLower(req.Direction)), at, req.Sentiment, req.SentimentLabel, req.Outcome)
		if err != nil {
			storeError(w, "interaction", err)
			return
		}
		if err := deps.Store.SaveInteraction(ix); err != nil {
			storeError(w, "contact", err)
			return
		}
		if err := ingest.EnqueueRecompute(deps.Store, contactID); err != nil {
			slog.Warn("interaction saved but recompute not queued", "contact_id", contactID, "error", err)
		}
		writeJSON(w, http.StatusCreated, ix)
	}
}

func handleListInteractions(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contactID := chi.URLParam(r, "id")
		if _, err := deps.Store.GetContact(contactID); err != nil {
			storeError(w, "contact", err)
			return
		}

		var since time.Time
		if s := r.URL.Query().Get("since"); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "since must be RFC3339: %v", err)
				return
			}
			since = t
		}

		history, err := deps.Store.ListInteractions(contactID, since)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list interactions: %v", err)
			return
		}
		if history == nil {
			history = []storage.Interaction{}
		}
		writeJSON(w, http.StatusOK, history)
	}
}
