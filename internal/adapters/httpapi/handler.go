package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/btranTFT/TrackingPrivacyAttacks/internal/core/domain"
	"github.com/btranTFT/TrackingPrivacyAttacks/internal/core/usecase"
	"github.com/go-chi/chi/v5"
)

const (
	timeFormat      = "2006-01-02T15:04:05.999999999Z07:00"
	maxJSONBodySize = 1 << 20
)

type Handler struct {
	ingest    *usecase.IngestService
	analytics *usecase.AnalyticsService
}

func NewHandler(ingest *usecase.IngestService, analytics *usecase.AnalyticsService) *Handler {
	return &Handler{ingest: ingest, analytics: analytics}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", h.health)
	r.Post("/track", h.track)
	r.Get("/analytics/stats", h.stats)
	r.Get("/analytics/leakage", h.leakage)
	r.Get("/analytics/session/{sessionID}", h.sessionTimeline)
	r.Get("/export/events", h.exportEvents)
	return r
}

type trackResponse struct {
	Status          string `json:"status"`
	LeakageDetected bool   `json:"leakage_detected"`
}

type eventResponse struct {
	ID               int64           `json:"id"`
	TrackerID        string          `json:"tracker_id,omitempty"`
	SessionID        string          `json:"session_id,omitempty"`
	Timestamp        string          `json:"timestamp,omitempty"`
	EventType        string          `json:"event_type,omitempty"`
	PageURL          string          `json:"page_url,omitempty"`
	PageTitle        string          `json:"page_title,omitempty"`
	Referrer         string          `json:"referrer,omitempty"`
	UserAgent        string          `json:"user_agent,omitempty"`
	ScreenResolution string          `json:"screen_resolution,omitempty"`
	EventData        json.RawMessage `json:"event_data"`
	CreatedAt        string          `json:"created_at"`
}

type leakResponse struct {
	ID             int64    `json:"id"`
	SessionID      string   `json:"session_id"`
	HasLeak        bool     `json:"has_sensitive_leak"`
	SensitiveTerms []string `json:"sensitive_terms"`
	LeakType       string   `json:"leak_type"`
	AnalyzedAt     string   `json:"analyzed_at"`
}

type statsResponse struct {
	TotalEvents      int64            `json:"total_events"`
	UniqueSessions   int64            `json:"unique_sessions"`
	EventsByType     map[string]int64 `json:"events_by_type"`
	SessionsWithLeak int64            `json:"sessions_with_leak"`
	LeakageRate      string           `json:"leakage_rate"`
}

// track accepts one event of unconstrained shape. Only malformed JSON and
// non-object bodies are rejected; everything else is ingested as-is.
func (h *Handler) track(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable request body")
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil || payload == nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	result, err := h.ingest.Ingest(r.Context(), payload, raw)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, trackResponse{Status: "success", LeakageDetected: result.HasLeak})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.analytics.Stats(r.Context())
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		TotalEvents:      summary.TotalEvents,
		UniqueSessions:   summary.UniqueSessions,
		EventsByType:     summary.EventsByType,
		SessionsWithLeak: summary.SessionsWithLeak,
		LeakageRate:      summary.LeakageRate,
	})
}

func (h *Handler) leakage(w http.ResponseWriter, r *http.Request) {
	verdicts, err := h.analytics.RecentLeaks(r.Context(), 0)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	result := make([]leakResponse, 0, len(verdicts))
	for _, verdict := range verdicts {
		result = append(result, toLeakResponse(verdict))
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaks": result})
}

func (h *Handler) sessionTimeline(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	events, err := h.analytics.SessionTimeline(r.Context(), sessionID)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	result := make([]eventResponse, 0, len(events))
	for _, event := range events {
		result = append(result, toEventResponse(event))
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "events": result})
}

func (h *Handler) exportEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.analytics.ExportEvents(r.Context())
	if err != nil {
		handleDomainError(w, err)
		return
	}

	result := make([]eventResponse, 0, len(events))
	for _, event := range events {
		result = append(result, toEventResponse(event))
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": result})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func toEventResponse(event domain.TrackingEvent) eventResponse {
	return eventResponse{
		ID:               event.ID,
		TrackerID:        event.TrackerID,
		SessionID:        event.SessionID,
		Timestamp:        event.Timestamp,
		EventType:        event.EventType,
		PageURL:          event.PageURL,
		PageTitle:        event.PageTitle,
		Referrer:         event.Referrer,
		UserAgent:        event.UserAgent,
		ScreenResolution: event.ScreenResolution,
		EventData:        event.RawPayload,
		CreatedAt:        event.IngestedAt.UTC().Format(timeFormat),
	}
}

func toLeakResponse(verdict domain.LeakageVerdict) leakResponse {
	terms := verdict.MatchedTerms
	if terms == nil {
		terms = []string{}
	}
	return leakResponse{
		ID:             verdict.ID,
		SessionID:      verdict.SessionID,
		HasLeak:        verdict.HasLeak,
		SensitiveTerms: terms,
		LeakType:       verdict.LeakChannel,
		AnalyzedAt:     verdict.AnalyzedAt.UTC().Format(timeFormat),
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		log.Printf("encode json response: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidEvent), errors.Is(err, domain.ErrInvalidSession):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		log.Printf("storage error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
