package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/chronoware/tally/internal/conversation"
	"github.com/chronoware/tally/internal/session"
	"github.com/chronoware/tally/internal/timesheet"
)

type fakeChat struct {
	lastEmail  string
	lastPrompt string
	reply      *conversation.Reply
	err        error
}

func (f *fakeChat) HandleMessage(_ context.Context, userEmail, utterance string) (*conversation.Reply, error) {
	f.lastEmail = userEmail
	f.lastPrompt = utterance
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

type fakeData struct {
	projects []timesheet.ProjectCode
	entries  []timesheet.StoredEntry
	result   *timesheet.SubmitResult
	deleted  bool
	draftID  uuid.UUID
	err      error

	lastSystem    string
	lastEmail     string
	lastID        int64
	lastSubmitted []timesheet.CompleteEntry
}

func (f *fakeData) ListProjectCodes(_ context.Context, system string) ([]timesheet.ProjectCode, error) {
	f.lastSystem = system
	return f.projects, f.err
}

func (f *fakeData) ListEntries(_ context.Context, userEmail string, system timesheet.System) ([]timesheet.StoredEntry, error) {
	f.lastEmail = userEmail
	f.lastSystem = string(system)
	return f.entries, f.err
}

func (f *fakeData) SubmitEntries(_ context.Context, userEmail string, entries []timesheet.CompleteEntry) (*timesheet.SubmitResult, error) {
	f.lastEmail = userEmail
	f.lastSubmitted = entries
	return f.result, f.err
}

func (f *fakeData) DeleteEntry(_ context.Context, userEmail string, system timesheet.System, id int64) (bool, error) {
	f.lastEmail = userEmail
	f.lastSystem = string(system)
	f.lastID = id
	return f.deleted, f.err
}

func (f *fakeData) SaveDraft(_ context.Context, userEmail string, entries []timesheet.CompleteEntry) (uuid.UUID, error) {
	f.lastEmail = userEmail
	return f.draftID, f.err
}

func newTestServer(chat *fakeChat, data *fakeData) *Server {
	return NewServer(8640, chat, data)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(&fakeChat{}, &fakeData{})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(&fakeChat{}, &fakeData{})

	req := httptest.NewRequest("GET", "/api/v1/status", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["service"] != "tally" {
		t.Errorf("expected service tally, got %q", body["service"])
	}
}

func TestChatEndpoint(t *testing.T) {
	chat := &fakeChat{reply: &conversation.Reply{
		Response:      "How many hours did you work?",
		Phase:         session.PhaseGathering,
		MissingFields: []string{"hours"},
	}}
	srv := newTestServer(chat, &fakeData{})

	payload := `{"email":"dev@example.com","user_prompt":"worked on ORG-001 yesterday"}`
	req := httptest.NewRequest("POST", "/api/v1/chat", strings.NewReader(payload))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if chat.lastEmail != "dev@example.com" {
		t.Errorf("expected email forwarded to engine, got %q", chat.lastEmail)
	}
	if chat.lastPrompt != "worked on ORG-001 yesterday" {
		t.Errorf("expected prompt forwarded to engine, got %q", chat.lastPrompt)
	}

	var reply conversation.Reply
	if err := json.NewDecoder(w.Body).Decode(&reply); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if reply.Phase != session.PhaseGathering {
		t.Errorf("expected gathering phase, got %q", reply.Phase)
	}
	if len(reply.MissingFields) != 1 || reply.MissingFields[0] != "hours" {
		t.Errorf("unexpected missing fields: %v", reply.MissingFields)
	}
}

func TestChatEndpoint_InvalidEmail(t *testing.T) {
	srv := newTestServer(&fakeChat{}, &fakeData{})

	for _, email := range []string{"", "notanemail", "missing@domain", "spaces in@example.com"} {
		payload := `{"email":"` + email + `","user_prompt":"8 hours"}`
		req := httptest.NewRequest("POST", "/api/v1/chat", strings.NewReader(payload))
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("email %q: expected 400, got %d", email, w.Code)
		}
	}
}

func TestChatEndpoint_EmptyPrompt(t *testing.T) {
	srv := newTestServer(&fakeChat{}, &fakeData{})

	payload := `{"email":"dev@example.com","user_prompt":"   "}`
	req := httptest.NewRequest("POST", "/api/v1/chat", strings.NewReader(payload))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestChatEndpoint_EngineError(t *testing.T) {
	chat := &fakeChat{err: errors.New("boom")}
	srv := newTestServer(chat, &fakeData{})

	payload := `{"email":"dev@example.com","user_prompt":"8 hours"}`
	req := httptest.NewRequest("POST", "/api/v1/chat", strings.NewReader(payload))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestProjectsEndpoint(t *testing.T) {
	data := &fakeData{projects: []timesheet.ProjectCode{
		{Code: "ORG-001", Name: "Oracle Core Development", System: "Oracle"},
		{Code: "CMN-001", Name: "Common Documentation", System: "Both"},
	}}
	srv := newTestServer(&fakeChat{}, data)

	req := httptest.NewRequest("GET", "/api/v1/projects?system=oracle", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if data.lastSystem != "Oracle" {
		t.Errorf("expected canonical system Oracle, got %q", data.lastSystem)
	}

	var body struct {
		Projects []timesheet.ProjectCode `json:"projects"`
		Count    int                     `json:"count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Count != 2 {
		t.Errorf("expected count 2, got %d", body.Count)
	}
}

func TestProjectsEndpoint_UnknownSystem(t *testing.T) {
	srv := newTestServer(&fakeChat{}, &fakeData{})

	req := httptest.NewRequest("GET", "/api/v1/projects?system=jupiter", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestTimesheetEndpoint(t *testing.T) {
	data := &fakeData{entries: []timesheet.StoredEntry{
		{Date: "2024-06-09", ProjectCode: "ORG-001", Hours: 8, Comments: "database work", Status: "submitted"},
	}}
	srv := newTestServer(&fakeChat{}, data)

	req := httptest.NewRequest("GET", "/api/v1/timesheet?email=dev@example.com&system=Mars", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if data.lastEmail != "dev@example.com" {
		t.Errorf("expected email forwarded, got %q", data.lastEmail)
	}
	if data.lastSystem != "Mars" {
		t.Errorf("expected system Mars, got %q", data.lastSystem)
	}
}

func TestTimesheetEndpoint_MissingSystem(t *testing.T) {
	srv := newTestServer(&fakeChat{}, &fakeData{})

	req := httptest.NewRequest("GET", "/api/v1/timesheet?email=dev@example.com", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestSubmitEndpoint(t *testing.T) {
	data := &fakeData{result: &timesheet.SubmitResult{
		EntriesSubmitted: 1,
		TotalHours:       8,
		SystemsUsed:      []timesheet.System{timesheet.SystemOracle},
	}}
	srv := newTestServer(&fakeChat{}, data)

	payload := `{
		"email": "dev@example.com",
		"entries": [{
			"system": "Oracle",
			"date": "2024-06-09",
			"hours": 8,
			"project_code": "ORG-001",
			"comments": "database work"
		}]
	}`
	req := httptest.NewRequest("POST", "/api/v1/timesheet/submit", strings.NewReader(payload))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if data.lastEmail != "dev@example.com" {
		t.Errorf("expected email forwarded, got %q", data.lastEmail)
	}
	if len(data.lastSubmitted) != 1 || data.lastSubmitted[0].ProjectCode != "ORG-001" {
		t.Errorf("unexpected submitted entries: %+v", data.lastSubmitted)
	}

	var result timesheet.SubmitResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.EntriesSubmitted != 1 || result.TotalHours != 8 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestSubmitEndpoint_NoEntries(t *testing.T) {
	srv := newTestServer(&fakeChat{}, &fakeData{})

	payload := `{"email":"dev@example.com","entries":[]}`
	req := httptest.NewRequest("POST", "/api/v1/timesheet/submit", strings.NewReader(payload))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestSubmitEndpoint_StoreError(t *testing.T) {
	data := &fakeData{err: errors.New("connection refused")}
	srv := newTestServer(&fakeChat{}, data)

	payload := `{
		"email": "dev@example.com",
		"entries": [{"system":"Mars","date":"2024-06-09","hours":4,"project_code":"MRS-001","comments":"telemetry"}]
	}`
	req := httptest.NewRequest("POST", "/api/v1/timesheet/submit", strings.NewReader(payload))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestDeleteEntryEndpoint(t *testing.T) {
	data := &fakeData{deleted: true}
	srv := newTestServer(&fakeChat{}, data)

	req := httptest.NewRequest("DELETE", "/api/v1/timesheet/42?email=dev@example.com&system=oracle", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if data.lastID != 42 {
		t.Errorf("expected id 42, got %d", data.lastID)
	}
	if data.lastEmail != "dev@example.com" {
		t.Errorf("expected email forwarded, got %q", data.lastEmail)
	}
	if data.lastSystem != "Oracle" {
		t.Errorf("expected canonical system Oracle, got %q", data.lastSystem)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "deleted" {
		t.Errorf("expected status deleted, got %q", body["status"])
	}
}

func TestDeleteEntryEndpoint_NotFound(t *testing.T) {
	srv := newTestServer(&fakeChat{}, &fakeData{deleted: false})

	req := httptest.NewRequest("DELETE", "/api/v1/timesheet/99?email=dev@example.com&system=Mars", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestDeleteEntryEndpoint_BadInput(t *testing.T) {
	srv := newTestServer(&fakeChat{}, &fakeData{deleted: true})

	for _, url := range []string{
		"/api/v1/timesheet/abc?email=dev@example.com&system=Oracle",
		"/api/v1/timesheet/42?email=notanemail&system=Oracle",
		"/api/v1/timesheet/42?email=dev@example.com&system=jupiter",
		"/api/v1/timesheet/42?email=dev@example.com",
	} {
		req := httptest.NewRequest("DELETE", url, nil)
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", url, w.Code)
		}
	}
}

func TestDraftEndpoint(t *testing.T) {
	id := uuid.New()
	data := &fakeData{draftID: id}
	srv := newTestServer(&fakeChat{}, data)

	payload := `{
		"email": "dev@example.com",
		"entries": [{
			"system": "Oracle",
			"date": "2024-06-09",
			"hours": 8,
			"project_code": "ORG-001",
			"comments": "database work"
		}]
	}`
	req := httptest.NewRequest("POST", "/api/v1/drafts", strings.NewReader(payload))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body DraftResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.DraftID != id.String() {
		t.Errorf("expected draft id %s, got %s", id, body.DraftID)
	}
	if body.Status != "saved" {
		t.Errorf("expected status saved, got %q", body.Status)
	}
}

func TestDraftEndpoint_NoEntries(t *testing.T) {
	srv := newTestServer(&fakeChat{}, &fakeData{})

	payload := `{"email":"dev@example.com","entries":[]}`
	req := httptest.NewRequest("POST", "/api/v1/drafts", strings.NewReader(payload))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}
