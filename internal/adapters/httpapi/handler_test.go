package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/btranTFT/TrackingPrivacyAttacks/internal/core/detect"
	"github.com/btranTFT/TrackingPrivacyAttacks/internal/core/domain"
	"github.com/btranTFT/TrackingPrivacyAttacks/internal/core/usecase"
)

type memStore struct {
	events   []domain.TrackingEvent
	verdicts []domain.LeakageVerdict

	failWrites bool
	failReads  bool
}

var errStore = errors.New("store unavailable")

func (s *memStore) InsertEvent(_ context.Context, event domain.TrackingEvent) (domain.TrackingEvent, error) {
	if s.failWrites {
		return domain.TrackingEvent{}, errStore
	}
	event.ID = int64(len(s.events) + 1)
	s.events = append(s.events, event)
	return event, nil
}

func (s *memStore) InsertVerdict(_ context.Context, verdict domain.LeakageVerdict) (domain.LeakageVerdict, error) {
	if s.failWrites {
		return domain.LeakageVerdict{}, errStore
	}
	verdict.ID = int64(len(s.verdicts) + 1)
	s.verdicts = append(s.verdicts, verdict)
	return verdict, nil
}

func (s *memStore) CountEvents(context.Context) (int64, error) {
	if s.failReads {
		return 0, errStore
	}
	return int64(len(s.events)), nil
}

func (s *memStore) CountDistinctSessions(context.Context) (int64, error) {
	if s.failReads {
		return 0, errStore
	}
	seen := map[string]bool{}
	for _, e := range s.events {
		seen[e.SessionID] = true
	}
	return int64(len(seen)), nil
}

func (s *memStore) CountEventsByType(context.Context) (map[string]int64, error) {
	if s.failReads {
		return nil, errStore
	}
	out := map[string]int64{}
	for _, e := range s.events {
		out[e.EventType]++
	}
	return out, nil
}

func (s *memStore) CountSessionsWithLeak(context.Context) (int64, error) {
	if s.failReads {
		return 0, errStore
	}
	seen := map[string]bool{}
	for _, v := range s.verdicts {
		if v.HasLeak {
			seen[v.SessionID] = true
		}
	}
	return int64(len(seen)), nil
}

func (s *memStore) RecentLeaks(_ context.Context, limit int) ([]domain.LeakageVerdict, error) {
	if s.failReads {
		return nil, errStore
	}
	out := make([]domain.LeakageVerdict, 0, len(s.verdicts))
	for i := len(s.verdicts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.verdicts[i])
	}
	return out, nil
}

func (s *memStore) SessionEvents(_ context.Context, sessionID string) ([]domain.TrackingEvent, error) {
	if s.failReads {
		return nil, errStore
	}
	var out []domain.TrackingEvent
	for _, e := range s.events {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) AllEvents(context.Context) ([]domain.TrackingEvent, error) {
	if s.failReads {
		return nil, errStore
	}
	out := make([]domain.TrackingEvent, 0, len(s.events))
	for i := len(s.events) - 1; i >= 0; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

type memOutbox struct {
	enqueued []domain.AlertNotice
}

func (o *memOutbox) Enqueue(_ context.Context, notice domain.AlertNotice) error {
	o.enqueued = append(o.enqueued, notice)
	return nil
}

func (o *memOutbox) FetchPending(context.Context, int) ([]domain.LeakAlert, error) { return nil, nil }
func (o *memOutbox) MarkDispatched(context.Context, int64) error                   { return nil }
func (o *memOutbox) MarkFailed(context.Context, int64, int, string, string) error  { return nil }
func (o *memOutbox) MarkDead(context.Context, int64, int, string) error            { return nil }

func newTestHandler(store *memStore) http.Handler {
	ingest := usecase.NewIngestService(store, &memOutbox{}, detect.NewClassifier(detect.DefaultCatalog()))
	analytics := usecase.NewAnalyticsService(store)
	return NewHandler(ingest, analytics).Router()
}

func doRequest(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestTrackLeakingSearchScenario(t *testing.T) {
	store := &memStore{}
	handler := newTestHandler(store)

	rec := doRequest(t, handler, http.MethodPost, "/track",
		`{"session_id":"s1","event_type":"search","query":"chemotherapy options"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var track trackResponse
	decodeBody(t, rec, &track)
	if track.Status != "success" || !track.LeakageDetected {
		t.Fatalf("track response = %+v", track)
	}

	rec = doRequest(t, handler, http.MethodGet, "/analytics/leakage", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("leakage status = %d, want 200", rec.Code)
	}
	var listing struct {
		Leaks []leakResponse `json:"leaks"`
	}
	decodeBody(t, rec, &listing)
	if len(listing.Leaks) != 1 {
		t.Fatalf("leaks = %d rows, want 1", len(listing.Leaks))
	}
	leak := listing.Leaks[0]
	if leak.SessionID != "s1" {
		t.Fatalf("leak session = %q, want s1", leak.SessionID)
	}
	foundTerm := false
	for _, term := range leak.SensitiveTerms {
		if term == "chemotherapy" {
			foundTerm = true
		}
	}
	if !foundTerm {
		t.Fatalf("sensitive terms %v missing chemotherapy", leak.SensitiveTerms)
	}
	if !strings.Contains(leak.LeakType, "search_query") {
		t.Fatalf("leak type = %q, want search_query", leak.LeakType)
	}
}

func TestTrackCleanPageViewScenario(t *testing.T) {
	store := &memStore{}
	handler := newTestHandler(store)

	rec := doRequest(t, handler, http.MethodPost, "/track",
		`{"session_id":"s2","event_type":"page_view","page_title":"Home"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var track trackResponse
	decodeBody(t, rec, &track)
	if track.LeakageDetected {
		t.Fatal("expected no leakage")
	}

	rec = doRequest(t, handler, http.MethodGet, "/analytics/session/s2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("session status = %d, want 200", rec.Code)
	}
	var timeline struct {
		SessionID string          `json:"session_id"`
		Events    []eventResponse `json:"events"`
	}
	decodeBody(t, rec, &timeline)
	if timeline.SessionID != "s2" || len(timeline.Events) != 1 {
		t.Fatalf("timeline = %+v", timeline)
	}

	rec = doRequest(t, handler, http.MethodGet, "/analytics/leakage", "")
	var listing struct {
		Leaks []leakResponse `json:"leaks"`
	}
	decodeBody(t, rec, &listing)
	if len(listing.Leaks) != 0 {
		t.Fatalf("leakage listing should be unaffected, got %d rows", len(listing.Leaks))
	}
}

func TestTrackRejectsMalformedBody(t *testing.T) {
	handler := newTestHandler(&memStore{})

	for _, body := range []string{`{not json`, `null`, `[1,2,3]`, `"text"`} {
		rec := doRequest(t, handler, http.MethodPost, "/track", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d, want 400", body, rec.Code)
		}
		var errBody map[string]any
		decodeBody(t, rec, &errBody)
		if errBody["error"] == nil {
			t.Fatalf("body %q: expected error object, got %v", body, errBody)
		}
	}
}

func TestTrackStorageFailureReturns500(t *testing.T) {
	handler := newTestHandler(&memStore{failWrites: true})

	rec := doRequest(t, handler, http.MethodPost, "/track", `{"session_id":"s1"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestStatsView(t *testing.T) {
	store := &memStore{}
	handler := newTestHandler(store)

	bodies := []string{
		`{"session_id":"s1","event_type":"search","query":"oncology"}`,
		`{"session_id":"s2","event_type":"page_view","page_title":"Home"}`,
	}
	for _, body := range bodies {
		if rec := doRequest(t, handler, http.MethodPost, "/track", body); rec.Code != http.StatusOK {
			t.Fatalf("seed track failed: %d", rec.Code)
		}
	}

	rec := doRequest(t, handler, http.MethodGet, "/analytics/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d, want 200", rec.Code)
	}
	var stats statsResponse
	decodeBody(t, rec, &stats)
	if stats.TotalEvents != 2 || stats.UniqueSessions != 2 || stats.SessionsWithLeak != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.LeakageRate != "50.00%" {
		t.Fatalf("leakage rate = %q, want 50.00%%", stats.LeakageRate)
	}
	if stats.EventsByType["search"] != 1 || stats.EventsByType["page_view"] != 1 {
		t.Fatalf("events by type = %v", stats.EventsByType)
	}
}

func TestStatsStorageFailureReturnsErrorObject(t *testing.T) {
	handler := newTestHandler(&memStore{failReads: true})

	rec := doRequest(t, handler, http.MethodGet, "/analytics/stats", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var errBody map[string]any
	decodeBody(t, rec, &errBody)
	if errBody["error"] == nil {
		t.Fatalf("expected error object, got %v", errBody)
	}
}

func TestExportCompleteness(t *testing.T) {
	store := &memStore{}
	handler := newTestHandler(store)

	payloads := []string{
		`{"session_id":"s1","event_type":"page_view","n":1}`,
		`{"session_id":"s1","event_type":"page_view","n":2}`,
		`{"session_id":"s2","event_type":"search","n":3}`,
	}
	for _, body := range payloads {
		if rec := doRequest(t, handler, http.MethodPost, "/track", body); rec.Code != http.StatusOK {
			t.Fatalf("seed track failed: %d", rec.Code)
		}
	}

	rec := doRequest(t, handler, http.MethodGet, "/export/events", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d, want 200", rec.Code)
	}
	var export struct {
		Events []eventResponse `json:"events"`
	}
	decodeBody(t, rec, &export)
	if len(export.Events) != len(payloads) {
		t.Fatalf("export = %d rows, want %d", len(export.Events), len(payloads))
	}
	// Newest first; raw payloads are preserved verbatim.
	if string(export.Events[0].EventData) != payloads[2] {
		t.Fatalf("newest export payload = %s", export.Events[0].EventData)
	}
}

func TestHealth(t *testing.T) {
	handler := newTestHandler(&memStore{})

	rec := doRequest(t, handler, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]bool
	decodeBody(t, rec, &body)
	if !body["ok"] {
		t.Fatalf("health body = %v", body)
	}
}
