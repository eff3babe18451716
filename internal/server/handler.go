// Package server exposes the dialogue engine over HTTP for the widget
// frontend: a JSON API for session operations and a websocket stream of
// transcript events.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ldrpitr/samvaad/internal/dialogue"
	"github.com/ldrpitr/samvaad/internal/draft"
	"github.com/ldrpitr/samvaad/internal/health"
	"github.com/ldrpitr/samvaad/internal/observe"
	"github.com/ldrpitr/samvaad/internal/store"
)

// Handler owns the HTTP surface. Construct with [New] and mount the result
// of [Handler.Routes].
type Handler struct {
	manager *dialogue.Manager
	repo    store.Repository
	drafter *draft.Drafter
	health  *health.Handler
	metrics *observe.Metrics
	origins []string
}

// Option configures a [Handler].
type Option func(*Handler)

// WithRepository enables the analytics read API.
func WithRepository(repo store.Repository) Option {
	return func(h *Handler) { h.repo = repo }
}

// WithDrafter enables the email draft endpoint.
func WithDrafter(d *draft.Drafter) Option {
	return func(h *Handler) { h.drafter = d }
}

// WithHealth mounts the health endpoints.
func WithHealth(hh *health.Handler) Option {
	return func(h *Handler) { h.health = hh }
}

// WithMetrics enables the request latency middleware and /metrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithAllowedOrigins sets the CORS and websocket origin allow list.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Handler) { h.origins = origins }
}

// New creates a [Handler] over the session manager.
func New(manager *dialogue.Manager, opts ...Option) *Handler {
	h := &Handler{manager: manager}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Routes builds the chi router with all endpoints mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	if len(h.origins) > 0 {
		r.Use(CORS(h.origins))
	}
	if h.metrics != nil {
		r.Use(observe.Middleware(h.metrics))
		r.Handle("/metrics", promhttp.Handler())
	}
	if h.health != nil {
		h.health.Register(r)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", h.createSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", h.getSession)
			r.Delete("/", h.deleteSession)
			r.Post("/option", h.selectOption)
			r.Post("/message", h.submitMessage)
			r.Post("/filters", h.setFilters)
			r.Post("/language", h.setLanguage)
			r.Post("/reset", h.resetSession)
			r.Post("/end", h.endSession)
			r.Post("/speak", h.speak)
			r.Post("/listen", h.startListening)
			r.Delete("/listen", h.stopListening)
			r.Get("/ws", h.stream)
		})
		if h.drafter != nil {
			r.Post("/draft-email", h.draftEmail)
		}
		if h.repo != nil {
			r.Get("/analytics/sessions", h.recentSessions)
		}
	})

	return r
}

// sessionView is the JSON shape of a session returned by the API.
type sessionView struct {
	ID           string             `json:"id"`
	Stage        dialogue.Stage     `json:"stage"`
	Role         dialogue.Role      `json:"role"`
	Language     string             `json:"language"`
	InputEnabled bool               `json:"input_enabled"`
	Filters      dialogue.Filters   `json:"filters"`
	PendingInput string             `json:"pending_input,omitempty"`
	Transcript   []dialogue.Message `json:"transcript"`
}

func viewOf(s *dialogue.Session) sessionView {
	return sessionView{
		ID:           s.ID(),
		Stage:        s.Stage(),
		Role:         s.Role(),
		Language:     s.Language(),
		InputEnabled: s.InputEnabled(),
		Filters:      s.Filters(),
		PendingInput: s.PendingInput(),
		Transcript:   s.Transcript(),
	}
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	s := h.manager.Create()
	respondJSON(w, http.StatusCreated, viewOf(s))
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, viewOf(s))
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	h.manager.Remove(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) selectOption(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var body struct {
		Payload string `json:"payload"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := s.SelectOption(r.Context(), body.Payload); err != nil {
		respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, viewOf(s))
}

func (h *Handler) submitMessage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var body struct {
		Text     string `json:"text"`
		Language string `json:"language,omitempty"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Language != "" {
		if err := s.SetLanguage(body.Language); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if err := s.SubmitText(r.Context(), body.Text); err != nil {
		respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, viewOf(s))
}

func (h *Handler) setFilters(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var f dialogue.Filters
	if !decodeBody(w, r, &f) {
		return
	}
	if err := s.SetFilters(f); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, viewOf(s))
}

func (h *Handler) setLanguage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var body struct {
		Language string `json:"language"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := s.SetLanguage(body.Language); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, viewOf(s))
}

func (h *Handler) resetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Reset()
	respondJSON(w, http.StatusOK, viewOf(s))
}

func (h *Handler) endSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.End()
	respondJSON(w, http.StatusOK, viewOf(s))
}

func (h *Handler) speak(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var body struct {
		MessageID string `json:"message_id"`
		Language  string `json:"language,omitempty"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Language != "" {
		if err := s.SetLanguage(body.Language); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if err := s.Speak(r.Context(), body.MessageID); err != nil {
		respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, viewOf(s))
}

func (h *Handler) startListening(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Listen(r.Context()); err != nil {
		respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, viewOf(s))
}

func (h *Handler) stopListening(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.StopListening()
	respondJSON(w, http.StatusOK, viewOf(s))
}

func (h *Handler) draftEmail(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Prompt string `json:"prompt"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	email, err := h.drafter.Draft(r.Context(), body.Prompt)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, draft.ErrPromptLength) {
			status = http.StatusBadRequest
		}
		respondError(w, status, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, email)
}

func (h *Handler) recentSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.repo.RecentSessions(r.Context(), 50)
	if err != nil {
		slog.Error("server: analytics query failed", "error", err)
		respondError(w, http.StatusInternalServerError, "analytics unavailable")
		return
	}
	if sessions == nil {
		sessions = []store.SessionRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// session resolves the {id} URL parameter, writing a 404 on failure.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*dialogue.Session, bool) {
	s, err := h.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return s, true
}

// respondSessionError maps well-known dialogue errors to HTTP statuses.
func respondSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dialogue.ErrBusy):
		respondError(w, http.StatusConflict, "a dispatch is already in flight")
	case errors.Is(err, dialogue.ErrInputDisabled):
		respondError(w, http.StatusConflict, "free-text input is not enabled")
	case errors.Is(err, dialogue.ErrNoSuchMessage):
		respondError(w, http.StatusNotFound, "message not found")
	case errors.Is(err, dialogue.ErrNoRecognizer):
		respondError(w, http.StatusNotImplemented, "no speech recognizer configured")
	default:
		respondError(w, http.StatusBadRequest, err.Error())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("server: response encode failed", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
