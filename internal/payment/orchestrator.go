package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/maatcontabil/portal/internal/pix"
	"github.com/maatcontabil/portal/internal/request"
	"github.com/maatcontabil/portal/internal/user"
	"github.com/maatcontabil/portal/internal/util"
)

var (
	// ErrGatewayNotConfigured indica que a integração Pix está desligada
	// ou sem credenciais completas.
	ErrGatewayNotConfigured = errors.New("gateway de pagamento não configurado")
	// ErrUnknownTransaction indica webhook para txid sem solicitação correlata.
	ErrUnknownTransaction = errors.New("transação desconhecida")
	// ErrNotPayable indica solicitação fora do estado de cobrança.
	ErrNotPayable = errors.New("solicitação não está aguardando pagamento")
)

// Store é o recorte de persistência que o orquestrador precisa.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*request.ServiceRequest, error)
	GetByTxID(ctx context.Context, txid string) (*request.ServiceRequest, error)
	Mutate(ctx context.Context, id uuid.UUID, fn func(req *request.ServiceRequest) error) (*request.ServiceRequest, error)
}

// Users resolve os dados cadastrais do pagador.
type Users interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// Gateway emite cobranças no provedor de pagamento.
type Gateway interface {
	CreateCharge(ctx context.Context, input pix.ChargeInput) (*pix.Charge, error)
}

// Notifier entrega avisos aos administradores.
type Notifier interface {
	NotifyAdmins(ctx context.Context, title, body string) error
}

// Orchestrator coordena emissão de cobrança e confirmação de pagamento.
// A chamada ao banco acontece fora da transação; o resultado só é
// gravado se a solicitação continuar aguardando pagamento.
type Orchestrator struct {
	store    Store
	users    Users
	gateway  Gateway
	notifier Notifier
}

// NewOrchestrator cria o orquestrador. gateway pode ser nil quando a
// integração Pix está desabilitada.
func NewOrchestrator(store Store, users Users, gateway Gateway, notifier Notifier) *Orchestrator {
	return &Orchestrator{store: store, users: users, gateway: gateway, notifier: notifier}
}

// RequestCharge emite (ou reaproveita) a cobrança Pix da solicitação.
// Enquanto houver cobrança dentro da validade, chamadas repetidas
// devolvem a mesma, sem nova ida ao banco.
func (o *Orchestrator) RequestCharge(ctx context.Context, requestID uuid.UUID, viewer request.Viewer) (*request.ServiceRequest, error) {
	if o.gateway == nil {
		return nil, ErrGatewayNotConfigured
	}

	req, err := o.store.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !viewer.IsAdmin() {
		if viewer.CompanyID == nil || *viewer.CompanyID != req.CompanyID || req.Deleted {
			return nil, request.ErrNotFound
		}
	}
	if req.Deleted {
		return nil, request.ErrInvalidState
	}
	if req.Status != request.StatusPendingPayment || req.Price <= 0 {
		return nil, ErrNotPayable
	}
	if req.HasLiveCharge(time.Now()) {
		return req, nil
	}

	payer, err := o.users.GetByID(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}
	document := util.OnlyDigits(payer.Document)
	if document == "" {
		return nil, errors.New("cliente sem CPF/CNPJ cadastrado")
	}

	charge, err := o.gateway.CreateCharge(ctx, pix.ChargeInput{
		Document:    document,
		PayerName:   payer.Name,
		Amount:      req.Price,
		Description: fmt.Sprintf("%s - %s", req.Protocol, req.TypeName),
	})
	if err != nil {
		return nil, err
	}

	return o.store.Mutate(ctx, requestID, func(req *request.ServiceRequest) error {
		if req.Deleted {
			return request.ErrInvalidState
		}
		if req.Status != request.StatusPendingPayment {
			return ErrNotPayable
		}
		// Emissor concorrente chegou primeiro; a cobrança dele prevalece.
		if req.HasLiveCharge(time.Now()) {
			return nil
		}
		expiresAt := charge.ExpiresAt
		req.TxID = charge.TxID
		req.PixCopiaECola = charge.PixCopiaECola
		req.PixExpiration = &expiresAt
		req.AppendAudit("Cobrança Pix gerada (aguardando confirmação)", viewer.Name)
		return nil
	})
}

// ConfirmPayment aplica a confirmação vinda do banco (webhook ou
// verificação manual). Reentregas do mesmo txid são inofensivas: após a
// primeira confirmação a solicitação já saiu do estado de pagamento.
func (o *Orchestrator) ConfirmPayment(ctx context.Context, txid string) (*request.ServiceRequest, error) {
	req, err := o.store.GetByTxID(ctx, txid)
	if err != nil {
		if errors.Is(err, request.ErrNotFound) {
			return nil, ErrUnknownTransaction
		}
		return nil, err
	}
	if req.Deleted {
		return req, nil
	}
	// Reentrega de txid já confirmado: a solicitação saiu dos estados de
	// pagamento e nada precisa ser tocado, nem o updated_at.
	if !request.TransitionAllowed(req.Status, request.ActorSystem, request.StatusRequested) {
		return req, nil
	}

	var applied bool
	updated, err := o.store.Mutate(ctx, req.ID, func(req *request.ServiceRequest) error {
		if req.Deleted {
			return nil
		}
		if !request.TransitionAllowed(req.Status, request.ActorSystem, request.StatusRequested) {
			return nil
		}
		req.Status = request.StatusRequested
		req.PaymentStatus = request.PaymentApproved
		req.AppendAudit("Pagamento confirmado", "Banco Inter API")
		applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if applied && o.notifier != nil {
		title := "Pagamento confirmado " + updated.Protocol
		body := fmt.Sprintf("A cobrança Pix da solicitação %q foi paga; o pedido entrou na fila.", updated.Title)
		_ = o.notifier.NotifyAdmins(ctx, title, body)
	}
	return updated, nil
}
