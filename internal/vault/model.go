package vault

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indica documento inexistente.
var ErrNotFound = errors.New("documento não encontrado")

// CategoryRequested é a categoria reservada para documentos gerados a
// partir de solicitações resolvidas.
const CategoryRequested = "Documentos Solicitados"

const (
	StatusSent    = "enviado"
	StatusPending = "pendente"
)

// Document é um arquivo disponível no cofre da empresa.
type Document struct {
	ID        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	Category  string     `json:"category"`
	CompanyID uuid.UUID  `json:"company_id"`
	RequestID *uuid.UUID `json:"request_id,omitempty"`
	URL       string     `json:"url,omitempty"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}
