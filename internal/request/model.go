package request

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("solicitação não encontrada")
	ErrTypeNotFound       = errors.New("tipo de solicitação não encontrado")
	ErrProtocolTaken      = errors.New("protocolo já utilizado por solicitação ativa")
	ErrInvalidTransition  = errors.New("transição de status não permitida")
	ErrInvalidState       = errors.New("solicitação na lixeira não aceita alterações")
	ErrPreconditionFailed = errors.New("pré-condição da transição não atendida")
)

// Status é o identificador canônico do estado da solicitação.
// Os rótulos em português são os textos exibidos no portal.
type Status string

const (
	StatusPendingPayment Status = "pendente_pagamento"
	StatusPaymentReview  Status = "pagamento_em_analise"
	StatusRequested      Status = "solicitada"
	StatusViewed         Status = "visualizada"
	StatusInResolution   Status = "em_resolucao"
	StatusInValidation   Status = "em_validacao"
	StatusResolved       Status = "resolvido"
)

var statusLabels = map[Status]string{
	StatusPendingPayment: "Pendente Pagamento",
	StatusPaymentReview:  "Pagamento em Análise",
	StatusRequested:      "Solicitada",
	StatusViewed:         "Visualizada",
	StatusInResolution:   "Em Resolução",
	StatusInValidation:   "Em Validação",
	StatusResolved:       "Resolvido",
}

// Label devolve o rótulo de exibição do status.
func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// IsValidStatus indica se o status é aceito.
func IsValidStatus(s Status) bool {
	_, ok := statusLabels[s]
	return ok
}

// PaymentStatus acompanha a cobrança da solicitação.
type PaymentStatus string

const (
	PaymentNA       PaymentStatus = "na"
	PaymentPending  PaymentStatus = "pendente"
	PaymentReview   PaymentStatus = "em_analise"
	PaymentApproved PaymentStatus = "aprovado"
)

var paymentLabels = map[PaymentStatus]string{
	PaymentNA:       "N/A",
	PaymentPending:  "Pendente",
	PaymentReview:   "Em Análise",
	PaymentApproved: "Aprovado",
}

// Label devolve o rótulo de exibição do status de pagamento.
func (p PaymentStatus) Label() string {
	if label, ok := paymentLabels[p]; ok {
		return label
	}
	return string(p)
}

// Actor identifica quem dispara uma transição.
type Actor string

const (
	ActorAdmin  Actor = "admin"
	ActorClient Actor = "client"
	// ActorSystem cobre confirmações vindas do provedor de pagamento (webhook ou polling).
	ActorSystem Actor = "system"
)

type transition struct {
	from  Status
	actor Actor
	to    Status
}

// transitions é a única fonte de verdade sobre mudanças de status.
// Toda mutação de status passa por Apply; nenhum handler decide sozinho.
var transitions = []transition{
	{StatusPendingPayment, ActorSystem, StatusRequested},
	{StatusPaymentReview, ActorSystem, StatusRequested},
	{StatusPendingPayment, ActorClient, StatusPaymentReview},
	{StatusPaymentReview, ActorAdmin, StatusRequested},
	{StatusRequested, ActorAdmin, StatusViewed},
	{StatusRequested, ActorAdmin, StatusInResolution},
	{StatusViewed, ActorAdmin, StatusInResolution},
	{StatusInResolution, ActorAdmin, StatusInValidation},
	{StatusInValidation, ActorClient, StatusResolved},
	{StatusResolved, ActorClient, StatusRequested},
}

// TransitionAllowed consulta a tabela de transições.
func TransitionAllowed(from Status, actor Actor, to Status) bool {
	for _, t := range transitions {
		if t.from == from && t.actor == actor && t.to == to {
			return true
		}
	}
	return false
}

// AuditLog é uma entrada imutável da trilha de auditoria da solicitação.
type AuditLog struct {
	ID        uuid.UUID `json:"id"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMessage é uma mensagem trocada dentro da solicitação.
type ChatMessage struct {
	ID        uuid.UUID `json:"id"`
	Sender    string    `json:"sender"`
	Role      string    `json:"role"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// TypeConfig é o tipo de solicitação configurado pela contabilidade.
// O preço vigente é congelado na solicitação no momento da criação.
type TypeConfig struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Price float64   `json:"price"`
}

// ServiceRequest é a entidade central do módulo de pedidos.
type ServiceRequest struct {
	ID            uuid.UUID     `json:"id"`
	Protocol      string        `json:"protocol"`
	Title         string        `json:"title"`
	TypeName      string        `json:"type"`
	Description   string        `json:"description"`
	Price         float64       `json:"price"`
	Status        Status        `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	TxID          string        `json:"txid,omitempty"`
	PixCopiaECola string        `json:"pix_copia_e_cola,omitempty"`
	PixExpiration *time.Time    `json:"pix_expiration,omitempty"`
	ProofURL      string        `json:"proof_url,omitempty"`
	ClientID      uuid.UUID     `json:"client_id"`
	CompanyID     uuid.UUID     `json:"company_id"`
	Deleted       bool          `json:"deleted"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	Chat          []ChatMessage `json:"chat,omitempty"`
	AuditLog      []AuditLog    `json:"audit_log,omitempty"`
}

// HasLiveCharge informa se existe cobrança Pix emitida e ainda dentro da validade.
func (r *ServiceRequest) HasLiveCharge(now time.Time) bool {
	return r.TxID != "" && r.PixExpiration != nil && r.PixExpiration.After(now)
}

// AppendAudit registra uma nova entrada na trilha (somente acréscimo).
func (r *ServiceRequest) AppendAudit(action, actor string) {
	r.AuditLog = append(r.AuditLog, AuditLog{
		ID:        uuid.New(),
		Action:    action,
		Actor:     actor,
		CreatedAt: time.Now().UTC(),
	})
}

// Filter parametriza listagens de solicitações.
type Filter struct {
	CompanyID      *uuid.UUID
	IncludeDeleted bool
	OnlyDeleted    bool
}

// CreateInput encapsula os campos necessários para abrir uma solicitação.
type CreateInput struct {
	Title       string
	TypeID      uuid.UUID
	Description string
	ClientID    uuid.UUID
	CompanyID   uuid.UUID
	ClientName  string
}
