package request

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownAction indica ação de transição fora do vocabulário aceito.
var ErrUnknownAction = errors.New("ação de transição desconhecida")

// Ações de transição aceitas pela API. Cada uma resolve para um status
// alvo; a permissão (quem pode, a partir de onde) fica na tabela de
// transições.
const (
	ActionStartResolution = "iniciar_resolucao"
	ActionSendValidation  = "enviar_validacao"
	ActionApprove         = "aprovar"
	ActionReopen          = "reabrir"
	ActionSendProof       = "enviar_comprovante"
	ActionConfirmPayment  = "confirmar_pagamento"
)

var actionTargets = map[string]Status{
	ActionStartResolution: StatusInResolution,
	ActionSendValidation:  StatusInValidation,
	ActionApprove:         StatusResolved,
	ActionReopen:          StatusRequested,
	ActionSendProof:       StatusPaymentReview,
	ActionConfirmPayment:  StatusRequested,
}

// Store abstrai a persistência de solicitações para o serviço.
type Store interface {
	GetType(ctx context.Context, id uuid.UUID) (*TypeConfig, error)
	ListTypes(ctx context.Context) ([]TypeConfig, error)
	Create(ctx context.Context, req *ServiceRequest) (*ServiceRequest, error)
	Get(ctx context.Context, id uuid.UUID) (*ServiceRequest, error)
	List(ctx context.Context, filter Filter) ([]ServiceRequest, error)
	Mutate(ctx context.Context, id uuid.UUID, fn func(req *ServiceRequest) error) (*ServiceRequest, error)
}

// Notifier entrega avisos aos administradores do escritório.
type Notifier interface {
	NotifyAdmins(ctx context.Context, title, body string) error
}

// DocumentCreator arquiva no cofre o documento resultante de uma
// solicitação resolvida.
type DocumentCreator interface {
	CreateDerivedDocument(ctx context.Context, companyID, requestID uuid.UUID, protocol, title string) error
}

// Viewer identifica quem está operando sobre a solicitação.
type Viewer struct {
	ID        uuid.UUID
	Name      string
	Role      string
	CompanyID *uuid.UUID
}

// IsAdmin indica se o viewer é colaborador da contabilidade.
func (v Viewer) IsAdmin() bool { return v.Role == "admin" }

// Actor traduz o papel do viewer para o ator da tabela de transições.
func (v Viewer) Actor() Actor {
	if v.IsAdmin() {
		return ActorAdmin
	}
	return ActorClient
}

// TransitionInput parametriza uma mudança de status.
type TransitionInput struct {
	RequestID uuid.UUID
	Action    string
	ProofURL  string
	Viewer    Viewer
}

// MessageInput parametriza uma nova mensagem no chat da solicitação.
type MessageInput struct {
	RequestID uuid.UUID
	Body      string
	Viewer    Viewer
}

// Service reúne regras de negócio do ciclo de vida das solicitações.
type Service struct {
	store    Store
	notifier Notifier
	vault    DocumentCreator
}

// NewService cria uma nova instância do serviço.
func NewService(store Store, notifier Notifier, vault DocumentCreator) *Service {
	return &Service{store: store, notifier: notifier, vault: vault}
}

// ListTypes lista os tipos de solicitação disponíveis.
func (s *Service) ListTypes(ctx context.Context) ([]TypeConfig, error) {
	return s.store.ListTypes(ctx)
}

// Create abre uma solicitação congelando o preço vigente do tipo.
// Tipos pagos nascem pendentes de pagamento; gratuitos já entram na
// fila da contabilidade.
func (s *Service) Create(ctx context.Context, input CreateInput) (*ServiceRequest, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)

	if input.Title == "" {
		return nil, errors.New("título obrigatório")
	}
	if input.TypeID == uuid.Nil {
		return nil, errors.New("tipo de solicitação obrigatório")
	}

	typ, err := s.store.GetType(ctx, input.TypeID)
	if err != nil {
		return nil, err
	}

	req := &ServiceRequest{
		ID:          uuid.New(),
		Title:       input.Title,
		TypeName:    typ.Name,
		Description: input.Description,
		Price:       typ.Price,
		ClientID:    input.ClientID,
		CompanyID:   input.CompanyID,
	}
	if typ.Price > 0 {
		req.Status = StatusPendingPayment
		req.PaymentStatus = PaymentPending
	} else {
		req.Status = StatusRequested
		req.PaymentStatus = PaymentNA
	}
	req.AppendAudit("Solicitação criada", input.ClientName)

	created, err := s.store.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		title := "Nova solicitação " + created.Protocol
		body := fmt.Sprintf("%s abriu a solicitação %q (%s).", input.ClientName, created.Title, created.TypeName)
		_ = s.notifier.NotifyAdmins(ctx, title, body)
	}
	return created, nil
}

// Get recupera a solicitação completa. A primeira leitura de um
// administrador sobre uma solicitação recém-aberta registra a
// visualização no histórico.
func (s *Service) Get(ctx context.Context, id uuid.UUID, viewer Viewer) (*ServiceRequest, error) {
	req, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(req, viewer); err != nil {
		return nil, err
	}

	if viewer.IsAdmin() && !req.Deleted && req.Status == StatusRequested {
		return s.store.Mutate(ctx, id, func(req *ServiceRequest) error {
			if req.Deleted || req.Status != StatusRequested {
				return nil
			}
			req.Status = StatusViewed
			req.AppendAudit("Solicitação visualizada pela contabilidade", viewer.Name)
			return nil
		})
	}
	return req, nil
}

// List devolve as solicitações visíveis ao viewer. Clientes enxergam
// apenas a própria empresa e nunca a lixeira.
func (s *Service) List(ctx context.Context, viewer Viewer, filter Filter) ([]ServiceRequest, error) {
	if !viewer.IsAdmin() {
		filter.CompanyID = viewer.CompanyID
		filter.IncludeDeleted = false
		filter.OnlyDeleted = false
	}
	return s.store.List(ctx, filter)
}

// Transition aplica uma ação de mudança de status respeitando a tabela
// de transições.
func (s *Service) Transition(ctx context.Context, input TransitionInput) (*ServiceRequest, error) {
	target, ok := actionTargets[input.Action]
	if !ok {
		return nil, ErrUnknownAction
	}
	actor := input.Viewer.Actor()

	updated, err := s.store.Mutate(ctx, input.RequestID, func(req *ServiceRequest) error {
		if err := authorize(req, input.Viewer); err != nil {
			return err
		}
		if req.Deleted {
			return ErrInvalidState
		}
		if !TransitionAllowed(req.Status, actor, target) {
			return ErrInvalidTransition
		}

		from := req.Status
		req.Status = target

		switch input.Action {
		case ActionSendProof:
			if proof := strings.TrimSpace(input.ProofURL); proof != "" {
				req.ProofURL = proof
			}
			req.PaymentStatus = PaymentReview
			req.AppendAudit("Comprovante de pagamento enviado", input.Viewer.Name)
		case ActionConfirmPayment:
			req.PaymentStatus = PaymentApproved
			req.AppendAudit("Pagamento confirmado pela contabilidade", input.Viewer.Name)
		default:
			req.AppendAudit(fmt.Sprintf("Status alterado de %s para %s", from.Label(), target.Label()), input.Viewer.Name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if target == StatusResolved && s.vault != nil {
		if err := s.vault.CreateDerivedDocument(ctx, updated.CompanyID, updated.ID, updated.Protocol, updated.Title); err != nil {
			return nil, err
		}
		docTitle := fmt.Sprintf("%s - %s", updated.Protocol, updated.Title)
		updated, err = s.store.Mutate(ctx, input.RequestID, func(req *ServiceRequest) error {
			req.AppendAudit(fmt.Sprintf("Documento %q gerado no cofre", docTitle), "Sistema")
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	if input.Action == ActionSendProof && s.notifier != nil {
		title := "Comprovante recebido " + updated.Protocol
		body := fmt.Sprintf("%s enviou comprovante de pagamento da solicitação %q.", input.Viewer.Name, updated.Title)
		_ = s.notifier.NotifyAdmins(ctx, title, body)
	}
	return updated, nil
}

// AddMessage anexa uma mensagem ao chat da solicitação.
func (s *Service) AddMessage(ctx context.Context, input MessageInput) (*ServiceRequest, error) {
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, errors.New("mensagem obrigatória")
	}

	return s.store.Mutate(ctx, input.RequestID, func(req *ServiceRequest) error {
		if err := authorize(req, input.Viewer); err != nil {
			return err
		}
		if req.Deleted {
			return ErrInvalidState
		}
		req.Chat = append(req.Chat, ChatMessage{
			ID:        uuid.New(),
			Sender:    input.Viewer.Name,
			Role:      input.Viewer.Role,
			Body:      body,
			CreatedAt: time.Now().UTC(),
		})
		return nil
	})
}

// SoftDelete move a solicitação para a lixeira. Repetir a operação
// sobre algo já na lixeira não tem efeito, nem sobre o updated_at.
func (s *Service) SoftDelete(ctx context.Context, id uuid.UUID, viewer Viewer) (*ServiceRequest, error) {
	req, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Deleted {
		return req, nil
	}

	return s.store.Mutate(ctx, id, func(req *ServiceRequest) error {
		if req.Deleted {
			return nil
		}
		req.Deleted = true
		req.AppendAudit("Solicitação movida para a lixeira", viewer.Name)
		return nil
	})
}

// Restore devolve a solicitação da lixeira com status e histórico
// intactos. O protocolo pode colidir com uma solicitação ativa criada
// no intervalo; nesse caso a restauração falha.
func (s *Service) Restore(ctx context.Context, id uuid.UUID, viewer Viewer) (*ServiceRequest, error) {
	req, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !req.Deleted {
		return req, nil
	}

	return s.store.Mutate(ctx, id, func(req *ServiceRequest) error {
		if !req.Deleted {
			return nil
		}
		req.Deleted = false
		req.AppendAudit("Solicitação restaurada da lixeira", viewer.Name)
		return nil
	})
}

func authorize(req *ServiceRequest, viewer Viewer) error {
	if viewer.IsAdmin() {
		return nil
	}
	if viewer.CompanyID == nil || *viewer.CompanyID != req.CompanyID {
		return ErrNotFound
	}
	if req.Deleted {
		return ErrNotFound
	}
	return nil
}
