package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/maatcontabil/portal/internal/payment"
	"github.com/maatcontabil/portal/internal/pix"
	"github.com/maatcontabil/portal/internal/request"
)

// ListRequestTypes devolve o catálogo de serviços e preços vigentes.
func (h *Handler) ListRequestTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.requests.ListTypes(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível listar tipos", nil)
		return
	}
	WriteJSON(w, http.StatusOK, types)
}

// ListRequests lista as solicitações visíveis ao usuário. Admins podem
// inspecionar a lixeira via view=bin ou view=all.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	viewer, err := h.viewer(r)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}

	filter := request.Filter{}
	if viewer.IsAdmin() {
		switch view := r.URL.Query().Get("view"); view {
		case "", "active":
		case "bin":
			filter.OnlyDeleted = true
		case "all":
			filter.IncludeDeleted = true
		default:
			WriteError(w, http.StatusBadRequest, "VALIDATION", "view inválida", nil)
			return
		}
		if companyStr := r.URL.Query().Get("company_id"); companyStr != "" {
			companyID, err := uuid.Parse(companyStr)
			if err != nil {
				WriteError(w, http.StatusBadRequest, "VALIDATION", "company_id inválido", nil)
				return
			}
			filter.CompanyID = &companyID
		}
	}

	requests, err := h.requests.List(r.Context(), viewer, filter)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível listar solicitações", nil)
		return
	}
	WriteJSON(w, http.StatusOK, requests)
}

// CreateRequest abre uma nova solicitação para a empresa do cliente.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	viewer, err := h.viewer(r)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}
	if viewer.CompanyID == nil {
		WriteError(w, http.StatusForbidden, "FORBIDDEN", "usuário sem empresa vinculada", nil)
		return
	}

	var payload struct {
		Title       string    `json:"title"`
		TypeID      uuid.UUID `json:"type_id"`
		Description string    `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	created, err := h.requests.Create(r.Context(), request.CreateInput{
		Title:       payload.Title,
		TypeID:      payload.TypeID,
		Description: payload.Description,
		ClientID:    viewer.ID,
		CompanyID:   *viewer.CompanyID,
		ClientName:  viewer.Name,
	})
	if err != nil {
		h.handleRequestError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, created)
}

// GetRequest devolve a solicitação com chat e trilha de auditoria.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	viewer, id, ok := h.viewerAndID(w, r)
	if !ok {
		return
	}

	req, err := h.requests.Get(r.Context(), id, viewer)
	if err != nil {
		h.handleRequestError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, req)
}

// TransitionRequest aplica uma ação de mudança de status.
func (h *Handler) TransitionRequest(w http.ResponseWriter, r *http.Request) {
	viewer, id, ok := h.viewerAndID(w, r)
	if !ok {
		return
	}

	var payload struct {
		Action   string `json:"action"`
		ProofURL string `json:"proof_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}
	if strings.TrimSpace(payload.Action) == "" {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "action obrigatória", nil)
		return
	}

	updated, err := h.requests.Transition(r.Context(), request.TransitionInput{
		RequestID: id,
		Action:    payload.Action,
		ProofURL:  payload.ProofURL,
		Viewer:    viewer,
	})
	if err != nil {
		h.handleRequestError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, updated)
}

// AddRequestMessage anexa mensagem ao chat da solicitação.
func (h *Handler) AddRequestMessage(w http.ResponseWriter, r *http.Request) {
	viewer, id, ok := h.viewerAndID(w, r)
	if !ok {
		return
	}

	var payload struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	updated, err := h.requests.AddMessage(r.Context(), request.MessageInput{
		RequestID: id,
		Body:      payload.Body,
		Viewer:    viewer,
	})
	if err != nil {
		h.handleRequestError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, updated)
}

// ListRequestMessages devolve apenas o chat da solicitação.
func (h *Handler) ListRequestMessages(w http.ResponseWriter, r *http.Request) {
	viewer, id, ok := h.viewerAndID(w, r)
	if !ok {
		return
	}

	req, err := h.requests.Get(r.Context(), id, viewer)
	if err != nil {
		h.handleRequestError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, req.Chat)
}

// RequestCharge emite (ou reaproveita) a cobrança Pix da solicitação.
func (h *Handler) RequestCharge(w http.ResponseWriter, r *http.Request) {
	viewer, id, ok := h.viewerAndID(w, r)
	if !ok {
		return
	}

	updated, err := h.payments.RequestCharge(r.Context(), id, viewer)
	if err != nil {
		h.handleRequestError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"txid":             updated.TxID,
		"pix_copia_e_cola": updated.PixCopiaECola,
		"pix_expiration":   updated.PixExpiration,
		"request":          updated,
	})
}

// DeleteRequest move a solicitação para a lixeira.
func (h *Handler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	viewer, id, ok := h.viewerAndID(w, r)
	if !ok {
		return
	}

	updated, err := h.requests.SoftDelete(r.Context(), id, viewer)
	if err != nil {
		h.handleRequestError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, updated)
}

// RestoreRequest devolve a solicitação da lixeira.
func (h *Handler) RestoreRequest(w http.ResponseWriter, r *http.Request) {
	viewer, id, ok := h.viewerAndID(w, r)
	if !ok {
		return
	}

	updated, err := h.requests.Restore(r.Context(), id, viewer)
	if err != nil {
		h.handleRequestError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) viewerAndID(w http.ResponseWriter, r *http.Request) (request.Viewer, uuid.UUID, bool) {
	viewer, err := h.viewer(r)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return request.Viewer{}, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return request.Viewer{}, uuid.Nil, false
	}
	return viewer, id, true
}

func (h *Handler) handleRequestError(w http.ResponseWriter, err error) {
	var authErr *pix.AuthError
	var chargeErr *pix.ChargeError

	switch {
	case errors.Is(err, request.ErrNotFound), errors.Is(err, request.ErrTypeNotFound):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, request.ErrInvalidTransition), errors.Is(err, request.ErrInvalidState):
		WriteError(w, http.StatusConflict, "WORKFLOW", err.Error(), nil)
	case errors.Is(err, request.ErrProtocolTaken), errors.Is(err, payment.ErrNotPayable):
		WriteError(w, http.StatusConflict, "PRECONDITION", err.Error(), nil)
	case errors.Is(err, request.ErrUnknownAction):
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	case errors.Is(err, payment.ErrGatewayNotConfigured):
		WriteError(w, http.StatusServiceUnavailable, "GATEWAY_CONFIG", err.Error(), nil)
	case errors.As(err, &authErr):
		WriteError(w, http.StatusBadGateway, "GATEWAY", "banco recusou a autenticação", authErr.Detail)
	case errors.As(err, &chargeErr):
		WriteError(w, http.StatusBadGateway, "GATEWAY", "banco recusou a cobrança", chargeErr.Detail)
	case isValidationError(err):
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	default:
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
	}
}

// isValidationError cobre os erros de entrada criados com errors.New nos
// serviços (mensagens terminadas em "obrigatório"/"obrigatória").
func isValidationError(err error) bool {
	msg := err.Error()
	return strings.HasSuffix(msg, "obrigatório") || strings.HasSuffix(msg, "obrigatória") ||
		strings.HasSuffix(msg, "cadastrado")
}
