package user

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("usuário não encontrado")
	ErrCompanyNotFound = errors.New("empresa não encontrada")
)

const (
	RoleAdmin  = "admin"
	RoleClient = "client"
)

// User representa um usuário do portal (colaborador da contabilidade ou cliente).
type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	Role         string
	CompanyID    *uuid.UUID
	Document     string
	Active       bool
	CreatedAt    time.Time
}

// Company representa a empresa atendida pela contabilidade.
type Company struct {
	ID        uuid.UUID
	Name      string
	CNPJ      string
	Address   string
	Contact   string
	CreatedAt time.Time
}

// RefreshToken guarda o estado persistido de um token de refresh.
type RefreshToken struct {
	ID        uuid.UUID
	Subject   uuid.UUID
	Audience  string
	TokenHash string
	Revoked   bool
	ExpiresAt time.Time
	CreatedAt time.Time
}
