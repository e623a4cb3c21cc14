package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/saudeflow/agendabot/internal/session"
	"github.com/saudeflow/agendabot/pkg/logging"
)

// DashboardHandler is the read-and-clear admin view over active sessions.
type DashboardHandler struct {
	sessions *session.Store
	logger   *logging.Logger
}

// NewDashboardHandler builds the dashboard. sessions is required.
func NewDashboardHandler(sessions *session.Store, logger *logging.Logger) *DashboardHandler {
	if sessions == nil {
		panic("handlers: session store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DashboardHandler{sessions: sessions, logger: logger}
}

// ListSessions returns every active session keyed by "identity:instance".
func (h *DashboardHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	all, err := h.sessions.List(r.Context())
	if err != nil {
		h.logger.Error("list sessions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "erro ao buscar sessões"})
		return
	}
	out := make(map[string]*session.Session, len(all))
	for _, s := range all {
		out[s.Identity+":"+s.Instance] = s
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

// GetSession returns one session's full record.
func (h *DashboardHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	instance := chi.URLParam(r, "instance")

	sess, err := h.sessions.Get(r.Context(), identity, instance)
	if err != nil {
		h.logger.Error("get session", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "erro ao buscar sessão"})
		return
	}
	if sess == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "sessão não encontrada"})
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// ClearSession deletes one session.
func (h *DashboardHandler) ClearSession(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	instance := chi.URLParam(r, "instance")

	if err := h.sessions.Delete(r.Context(), identity, instance); err != nil {
		h.logger.Error("clear session", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "erro ao limpar sessão"})
		return
	}
	h.logger.Info("session cleared", "identity", identity, "instance", instance)
	writeJSON(w, http.StatusOK, map[string]string{"message": "sessão limpa com sucesso"})
}

// ClearAllSessions deletes every session.
func (h *DashboardHandler) ClearAllSessions(w http.ResponseWriter, r *http.Request) {
	count, err := h.sessions.ClearAll(r.Context())
	if err != nil {
		h.logger.Error("clear all sessions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "erro ao limpar sessões"})
		return
	}
	h.logger.Info("all sessions cleared", "count", count)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("%d sessão(ões) limpa(s) com sucesso", count),
		"count":   count,
	})
}
