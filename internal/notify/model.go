package notify

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indica notificação inexistente ou de outro usuário.
var ErrNotFound = errors.New("notificação não encontrada")

// Notification é um aviso dirigido a um usuário do portal.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
