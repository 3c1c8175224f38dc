package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/maatcontabil/portal/internal/notify"
)

// ListNotifications devolve as notificações do usuário autenticado.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	subject, err := h.subjectUUID(r)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	notifications, err := h.notify.List(r.Context(), subject, limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível listar notificações", nil)
		return
	}
	WriteJSON(w, http.StatusOK, notifications)
}

// ReadNotification marca uma notificação do usuário como lida.
func (h *Handler) ReadNotification(w http.ResponseWriter, r *http.Request) {
	subject, err := h.subjectUUID(r)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	if err := h.notify.MarkRead(r.Context(), id, subject); err != nil {
		if errors.Is(err, notify.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível atualizar notificação", nil)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "read"})
}
