package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/maatcontabil/portal/internal/pix"
	"github.com/maatcontabil/portal/internal/request"
	"github.com/maatcontabil/portal/internal/user"
)

type stubStore struct {
	reqs        map[uuid.UUID]*request.ServiceRequest
	mutateCalls int
}

func newStubStore() *stubStore {
	return &stubStore{reqs: make(map[uuid.UUID]*request.ServiceRequest)}
}

func (s *stubStore) Get(ctx context.Context, id uuid.UUID) (*request.ServiceRequest, error) {
	req, ok := s.reqs[id]
	if !ok {
		return nil, request.ErrNotFound
	}
	cp := *req
	return &cp, nil
}

func (s *stubStore) GetByTxID(ctx context.Context, txid string) (*request.ServiceRequest, error) {
	for _, req := range s.reqs {
		if req.TxID == txid {
			cp := *req
			return &cp, nil
		}
	}
	return nil, request.ErrNotFound
}

func (s *stubStore) Mutate(ctx context.Context, id uuid.UUID, fn func(req *request.ServiceRequest) error) (*request.ServiceRequest, error) {
	s.mutateCalls++
	stored, ok := s.reqs[id]
	if !ok {
		return nil, request.ErrNotFound
	}
	cp := *stored
	cp.AuditLog = append([]request.AuditLog(nil), stored.AuditLog...)
	if err := fn(&cp); err != nil {
		return nil, err
	}
	cp.UpdatedAt = time.Now()
	s.reqs[id] = &cp
	return &cp, nil
}

type stubUsers struct {
	users map[uuid.UUID]*user.User
}

func (s *stubUsers) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

type stubGateway struct {
	calls  int
	charge *pix.Charge
	err    error
	last   pix.ChargeInput
}

func (g *stubGateway) CreateCharge(ctx context.Context, input pix.ChargeInput) (*pix.Charge, error) {
	g.calls++
	g.last = input
	if g.err != nil {
		return nil, g.err
	}
	return g.charge, nil
}

type stubNotifier struct {
	calls  int
	titles []string
}

func (n *stubNotifier) NotifyAdmins(ctx context.Context, title, body string) error {
	n.calls++
	n.titles = append(n.titles, title)
	return nil
}

func seedPayable(store *stubStore, users *stubUsers) (*request.ServiceRequest, request.Viewer) {
	companyID := uuid.New()
	clientID := uuid.New()
	users.users[clientID] = &user.User{
		ID:       clientID,
		Name:     "Carlos Cliente",
		Document: "123.456.789-09",
	}
	req := &request.ServiceRequest{
		ID:            uuid.New(),
		Protocol:      "REQ-2026-002",
		Title:         "Alteração de endereço",
		TypeName:      "Alteração Contratual",
		Status:        request.StatusPendingPayment,
		PaymentStatus: request.PaymentPending,
		Price:         150,
		ClientID:      clientID,
		CompanyID:     companyID,
	}
	store.reqs[req.ID] = req
	viewer := request.Viewer{ID: clientID, Name: "Carlos Cliente", Role: "client", CompanyID: &companyID}
	return req, viewer
}

func TestRequestChargeWithoutGateway(t *testing.T) {
	store := newStubStore()
	users := &stubUsers{users: make(map[uuid.UUID]*user.User)}
	req, viewer := seedPayable(store, users)

	o := NewOrchestrator(store, users, nil, &stubNotifier{})
	if _, err := o.RequestCharge(context.Background(), req.ID, viewer); !errors.Is(err, ErrGatewayNotConfigured) {
		t.Fatalf("quer ErrGatewayNotConfigured, veio %v", err)
	}
}

func TestRequestChargeEmitsAndRecords(t *testing.T) {
	store := newStubStore()
	users := &stubUsers{users: make(map[uuid.UUID]*user.User)}
	req, viewer := seedPayable(store, users)

	expires := time.Now().Add(time.Hour)
	gateway := &stubGateway{charge: &pix.Charge{
		TxID:          "txid-abc",
		PixCopiaECola: "00020126...",
		ExpiresAt:     expires,
	}}

	o := NewOrchestrator(store, users, gateway, &stubNotifier{})
	updated, err := o.RequestCharge(context.Background(), req.ID, viewer)
	if err != nil {
		t.Fatalf("RequestCharge: %v", err)
	}
	if updated.TxID != "txid-abc" || updated.PixCopiaECola == "" {
		t.Fatalf("cobrança não gravada: %+v", updated)
	}
	if updated.PixExpiration == nil || !updated.PixExpiration.Equal(expires) {
		t.Fatalf("validade incorreta: %v", updated.PixExpiration)
	}
	if gateway.last.Document != "12345678909" {
		t.Fatalf("documento deveria ser só dígitos: %q", gateway.last.Document)
	}
	if gateway.last.Description != "REQ-2026-002 - Alteração Contratual" {
		t.Fatalf("descrição inesperada: %q", gateway.last.Description)
	}
	if len(updated.AuditLog) == 0 || updated.AuditLog[len(updated.AuditLog)-1].Action != "Cobrança Pix gerada (aguardando confirmação)" {
		t.Fatalf("auditoria de cobrança ausente: %+v", updated.AuditLog)
	}
}

func TestRequestChargeReusesLiveCharge(t *testing.T) {
	store := newStubStore()
	users := &stubUsers{users: make(map[uuid.UUID]*user.User)}
	req, viewer := seedPayable(store, users)

	future := time.Now().Add(30 * time.Minute)
	req.TxID = "txid-vivo"
	req.PixCopiaECola = "copia-cola"
	req.PixExpiration = &future

	gateway := &stubGateway{}
	o := NewOrchestrator(store, users, gateway, &stubNotifier{})

	got, err := o.RequestCharge(context.Background(), req.ID, viewer)
	if err != nil {
		t.Fatalf("RequestCharge: %v", err)
	}
	if got.TxID != "txid-vivo" {
		t.Fatalf("deveria reaproveitar a cobrança viva, veio %q", got.TxID)
	}
	if gateway.calls != 0 {
		t.Fatalf("cobrança viva não vai ao banco, veio %d chamadas", gateway.calls)
	}
}

func TestRequestChargeExpiredChargeReissues(t *testing.T) {
	store := newStubStore()
	users := &stubUsers{users: make(map[uuid.UUID]*user.User)}
	req, viewer := seedPayable(store, users)

	past := time.Now().Add(-time.Minute)
	req.TxID = "txid-vencido"
	req.PixExpiration = &past

	expires := time.Now().Add(time.Hour)
	gateway := &stubGateway{charge: &pix.Charge{TxID: "txid-novo", PixCopiaECola: "novo", ExpiresAt: expires}}
	o := NewOrchestrator(store, users, gateway, &stubNotifier{})

	got, err := o.RequestCharge(context.Background(), req.ID, viewer)
	if err != nil {
		t.Fatalf("RequestCharge: %v", err)
	}
	if got.TxID != "txid-novo" {
		t.Fatalf("cobrança vencida deveria ser substituída, veio %q", got.TxID)
	}
	if gateway.calls != 1 {
		t.Fatalf("quer 1 emissão, veio %d", gateway.calls)
	}
}

func TestRequestChargeNotPayable(t *testing.T) {
	store := newStubStore()
	users := &stubUsers{users: make(map[uuid.UUID]*user.User)}
	req, viewer := seedPayable(store, users)
	req.Status = request.StatusRequested
	req.PaymentStatus = request.PaymentNA

	o := NewOrchestrator(store, users, &stubGateway{}, &stubNotifier{})
	if _, err := o.RequestCharge(context.Background(), req.ID, viewer); !errors.Is(err, ErrNotPayable) {
		t.Fatalf("quer ErrNotPayable, veio %v", err)
	}
}

func TestRequestChargeRequiresDocument(t *testing.T) {
	store := newStubStore()
	users := &stubUsers{users: make(map[uuid.UUID]*user.User)}
	req, viewer := seedPayable(store, users)
	users.users[req.ClientID].Document = ""

	o := NewOrchestrator(store, users, &stubGateway{}, &stubNotifier{})
	_, err := o.RequestCharge(context.Background(), req.ID, viewer)
	if err == nil {
		t.Fatal("cliente sem documento deveria falhar")
	}
}

func TestRequestChargeHidesOtherCompany(t *testing.T) {
	store := newStubStore()
	users := &stubUsers{users: make(map[uuid.UUID]*user.User)}
	req, _ := seedPayable(store, users)

	otherCompany := uuid.New()
	outsider := request.Viewer{ID: uuid.New(), Name: "Outro", Role: "client", CompanyID: &otherCompany}

	o := NewOrchestrator(store, users, &stubGateway{}, &stubNotifier{})
	if _, err := o.RequestCharge(context.Background(), req.ID, outsider); !errors.Is(err, request.ErrNotFound) {
		t.Fatalf("quer ErrNotFound, veio %v", err)
	}
}

func TestConfirmPaymentAppliesOnce(t *testing.T) {
	store := newStubStore()
	users := &stubUsers{users: make(map[uuid.UUID]*user.User)}
	req, _ := seedPayable(store, users)
	req.TxID = "txid-pago"

	notifier := &stubNotifier{}
	o := NewOrchestrator(store, users, &stubGateway{}, notifier)

	updated, err := o.ConfirmPayment(context.Background(), "txid-pago")
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if updated.Status != request.StatusRequested || updated.PaymentStatus != request.PaymentApproved {
		t.Fatalf("confirmação: %s/%s", updated.Status, updated.PaymentStatus)
	}
	last := updated.AuditLog[len(updated.AuditLog)-1]
	if last.Action != "Pagamento confirmado" || last.Actor != "Banco Inter API" {
		t.Fatalf("auditoria da confirmação inesperada: %+v", last)
	}
	if notifier.calls != 1 {
		t.Fatalf("quer 1 aviso, veio %d", notifier.calls)
	}

	// reentrega do mesmo txid não muda nada nem avisa de novo
	audits := len(updated.AuditLog)
	mutations := store.mutateCalls
	again, err := o.ConfirmPayment(context.Background(), "txid-pago")
	if err != nil {
		t.Fatalf("ConfirmPayment reentrega: %v", err)
	}
	if again.Status != request.StatusRequested || len(again.AuditLog) != audits {
		t.Fatalf("reentrega deveria ser inofensiva: %+v", again)
	}
	if store.mutateCalls != mutations {
		t.Fatal("reentrega não deveria gravar nada")
	}
	if !again.UpdatedAt.Equal(updated.UpdatedAt) {
		t.Fatal("reentrega não deveria avançar updated_at")
	}
	if notifier.calls != 1 {
		t.Fatalf("reentrega não avisa de novo, veio %d", notifier.calls)
	}
}

func TestConfirmPaymentFromReview(t *testing.T) {
	store := newStubStore()
	users := &stubUsers{users: make(map[uuid.UUID]*user.User)}
	req, _ := seedPayable(store, users)
	req.TxID = "txid-analise"
	req.Status = request.StatusPaymentReview
	req.PaymentStatus = request.PaymentReview

	o := NewOrchestrator(store, users, &stubGateway{}, &stubNotifier{})
	updated, err := o.ConfirmPayment(context.Background(), "txid-analise")
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if updated.Status != request.StatusRequested {
		t.Fatalf("confirmação durante análise manual: %s", updated.Status)
	}
}

func TestConfirmPaymentUnknownTxID(t *testing.T) {
	store := newStubStore()
	users := &stubUsers{users: make(map[uuid.UUID]*user.User)}

	o := NewOrchestrator(store, users, &stubGateway{}, &stubNotifier{})
	if _, err := o.ConfirmPayment(context.Background(), "txid-fantasma"); !errors.Is(err, ErrUnknownTransaction) {
		t.Fatalf("quer ErrUnknownTransaction, veio %v", err)
	}
}

func TestConfirmPaymentOnTrashIsAcked(t *testing.T) {
	store := newStubStore()
	users := &stubUsers{users: make(map[uuid.UUID]*user.User)}
	req, _ := seedPayable(store, users)
	req.TxID = "txid-lixeira"
	req.Deleted = true

	notifier := &stubNotifier{}
	o := NewOrchestrator(store, users, &stubGateway{}, notifier)

	got, err := o.ConfirmPayment(context.Background(), "txid-lixeira")
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if got.Status != request.StatusPendingPayment {
		t.Fatalf("solicitação na lixeira não muda, veio %s", got.Status)
	}
	if notifier.calls != 0 {
		t.Fatalf("lixeira não gera aviso, veio %d", notifier.calls)
	}
}
