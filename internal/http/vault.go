package http

import (
	"net/http"

	"github.com/google/uuid"
)

// ListVaultDocuments lista os documentos do cofre. Clientes enxergam a
// própria empresa; admins informam company_id.
func (h *Handler) ListVaultDocuments(w http.ResponseWriter, r *http.Request) {
	viewer, err := h.viewer(r)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}

	var companyID uuid.UUID
	if viewer.IsAdmin() {
		parsed, err := uuid.Parse(r.URL.Query().Get("company_id"))
		if err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "company_id obrigatório", nil)
			return
		}
		companyID = parsed
	} else {
		if viewer.CompanyID == nil {
			WriteError(w, http.StatusForbidden, "FORBIDDEN", "usuário sem empresa vinculada", nil)
			return
		}
		companyID = *viewer.CompanyID
	}

	docs, err := h.vault.ListByCompany(r.Context(), companyID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível listar documentos", nil)
		return
	}
	WriteJSON(w, http.StatusOK, docs)
}
