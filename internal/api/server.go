package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/chronoware/tally/internal/conversation"
	"github.com/chronoware/tally/internal/timesheet"
)

// ChatHandler processes one conversational turn for a user.
type ChatHandler interface {
	HandleMessage(ctx context.Context, userEmail, utterance string) (*conversation.Reply, error)
}

// TimesheetData serves the read and draft endpoints that bypass the
// conversation loop.
type TimesheetData interface {
	ListProjectCodes(ctx context.Context, system string) ([]timesheet.ProjectCode, error)
	ListEntries(ctx context.Context, userEmail string, system timesheet.System) ([]timesheet.StoredEntry, error)
	SubmitEntries(ctx context.Context, userEmail string, entries []timesheet.CompleteEntry) (*timesheet.SubmitResult, error)
	DeleteEntry(ctx context.Context, userEmail string, system timesheet.System, id int64) (bool, error)
	SaveDraft(ctx context.Context, userEmail string, entries []timesheet.CompleteEntry) (uuid.UUID, error)
}

type Server struct {
	router *chi.Mux
	port   int
	chat   ChatHandler
	data   TimesheetData
}

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func NewServer(port int, chat ChatHandler, data TimesheetData) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		port:   port,
		chat:   chat,
		data:   data,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/status", s.status)
	router.Post("/api/v1/chat", s.chatTurn)
	router.Get("/api/v1/projects", s.projects)
	router.Get("/api/v1/timesheet", s.timesheet)
	router.Post("/api/v1/timesheet/submit", s.submitDirect)
	router.Delete("/api/v1/timesheet/{id}", s.deleteEntry)
	router.Post("/api/v1/drafts", s.saveDraft)

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ChatRequest is one user turn.
type ChatRequest struct {
	Email      string `json:"email"`
	UserPrompt string `json:"user_prompt"`
}

// DraftRequest snapshots a set of validated entries without submitting them.
type DraftRequest struct {
	Email   string                    `json:"email"`
	Entries []timesheet.CompleteEntry `json:"entries"`
}

// SubmitRequest writes validated entries directly, without a conversation.
type SubmitRequest struct {
	Email   string                    `json:"email"`
	Entries []timesheet.CompleteEntry `json:"entries"`
}

type DraftResponse struct {
	DraftID string `json:"draft_id"`
	Status  string `json:"status"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "tally",
		"status":  "ready",
	})
}

func (s *Server) chatTurn(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if !emailRe.MatchString(req.Email) {
		writeError(w, http.StatusBadRequest, "invalid email address")
		return
	}
	if strings.TrimSpace(req.UserPrompt) == "" {
		writeError(w, http.StatusBadRequest, "user_prompt is required")
		return
	}

	reply, err := s.chat.HandleMessage(r.Context(), req.Email, req.UserPrompt)
	if err != nil {
		slog.Error("chat turn failed", "email", req.Email, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) projects(w http.ResponseWriter, r *http.Request) {
	system := r.URL.Query().Get("system")
	if system != "" {
		sys, ok := timesheet.ParseSystem(system)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown system %q", system))
			return
		}
		system = string(sys)
	}

	codes, err := s.data.ListProjectCodes(r.Context(), system)
	if err != nil {
		slog.Error("list project codes failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"projects": codes,
		"count":    len(codes),
	})
}

func (s *Server) timesheet(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if !emailRe.MatchString(email) {
		writeError(w, http.StatusBadRequest, "invalid email address")
		return
	}
	sys, ok := timesheet.ParseSystem(r.URL.Query().Get("system"))
	if !ok {
		writeError(w, http.StatusBadRequest, "system must be Oracle or Mars")
		return
	}

	entries, err := s.data.ListEntries(r.Context(), email, sys)
	if err != nil {
		slog.Error("list entries failed", "email", email, "system", sys, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func (s *Server) submitDirect(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if !emailRe.MatchString(req.Email) {
		writeError(w, http.StatusBadRequest, "invalid email address")
		return
	}
	if len(req.Entries) == 0 {
		writeError(w, http.StatusBadRequest, "no entries to submit")
		return
	}

	result, err := s.data.SubmitEntries(r.Context(), req.Email, req.Entries)
	if err != nil {
		slog.Error("direct submit failed", "email", req.Email, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) deleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid entry id")
		return
	}
	email := r.URL.Query().Get("email")
	if !emailRe.MatchString(email) {
		writeError(w, http.StatusBadRequest, "invalid email address")
		return
	}
	sys, ok := timesheet.ParseSystem(r.URL.Query().Get("system"))
	if !ok {
		writeError(w, http.StatusBadRequest, "system must be Oracle or Mars")
		return
	}

	deleted, err := s.data.DeleteEntry(r.Context(), email, sys, id)
	if err != nil {
		slog.Error("delete entry failed", "email", email, "system", sys, "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "entry not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) saveDraft(w http.ResponseWriter, r *http.Request) {
	var req DraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if !emailRe.MatchString(req.Email) {
		writeError(w, http.StatusBadRequest, "invalid email address")
		return
	}
	if len(req.Entries) == 0 {
		writeError(w, http.StatusBadRequest, "no entries to save")
		return
	}

	id, err := s.data.SaveDraft(r.Context(), req.Email, req.Entries)
	if err != nil {
		slog.Error("save draft failed", "email", req.Email, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, DraftResponse{DraftID: id.String(), Status: "saved"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
