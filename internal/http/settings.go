package http

import (
	"encoding/json"
	"net/http"

	"github.com/maatcontabil/portal/internal/settings"
)

// GetPaymentSettings devolve a visão sanitizada da cobrança Pix.
func (h *Handler) GetPaymentSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.settings.GetSanitizedPaymentSettings(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível carregar configuração", nil)
		return
	}
	WriteJSON(w, http.StatusOK, cfg)
}

// UpdatePaymentSettings liga/desliga a cobrança Pix e troca a chave
// recebedora. A mudança vale para cobranças emitidas após o próximo
// reinício do gateway.
func (h *Handler) UpdatePaymentSettings(w http.ResponseWriter, r *http.Request) {
	subject, err := h.subjectUUID(r)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}

	var payload struct {
		PixEnabled *bool   `json:"pix_enabled"`
		PixKey     *string `json:"pix_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	updated, err := h.settings.UpdatePaymentSettings(r.Context(), settings.UpdatePaymentSettingsInput{
		PixEnabled: payload.PixEnabled,
		PixKey:     payload.PixKey,
		UpdatedBy:  subject,
	})
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível salvar configuração", nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"pix_enabled": updated.PixEnabled,
		"has_pix_key": updated.PixKey != "",
		"updated_at":  updated.UpdatedAt,
	})
}
