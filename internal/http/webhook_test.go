package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/maatcontabil/portal/internal/payment"
	"github.com/maatcontabil/portal/internal/request"
	"github.com/maatcontabil/portal/internal/user"
)

type webhookStore struct {
	reqs map[uuid.UUID]*request.ServiceRequest
}

func (s *webhookStore) Get(ctx context.Context, id uuid.UUID) (*request.ServiceRequest, error) {
	req, ok := s.reqs[id]
	if !ok {
		return nil, request.ErrNotFound
	}
	cp := *req
	return &cp, nil
}

func (s *webhookStore) GetByTxID(ctx context.Context, txid string) (*request.ServiceRequest, error) {
	for _, req := range s.reqs {
		if req.TxID == txid {
			cp := *req
			return &cp, nil
		}
	}
	return nil, request.ErrNotFound
}

func (s *webhookStore) Mutate(ctx context.Context, id uuid.UUID, fn func(req *request.ServiceRequest) error) (*request.ServiceRequest, error) {
	stored, ok := s.reqs[id]
	if !ok {
		return nil, request.ErrNotFound
	}
	cp := *stored
	cp.AuditLog = append([]request.AuditLog(nil), stored.AuditLog...)
	if err := fn(&cp); err != nil {
		return nil, err
	}
	s.reqs[id] = &cp
	return &cp, nil
}

type webhookUsers struct{}

func (webhookUsers) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return nil, user.ErrNotFound
}

type webhookNotifier struct{ calls int }

func (n *webhookNotifier) NotifyAdmins(ctx context.Context, title, body string) error {
	n.calls++
	return nil
}

func webhookFixture() (*Handler, *webhookStore, *webhookNotifier) {
	store := &webhookStore{reqs: make(map[uuid.UUID]*request.ServiceRequest)}
	notifier := &webhookNotifier{}
	h := &Handler{
		payments: payment.NewOrchestrator(store, webhookUsers{}, nil, notifier),
	}
	return h, store, notifier
}

func TestPixWebhookAcksMalformedPayload(t *testing.T) {
	h, _, notifier := webhookFixture()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/pix", strings.NewReader("{nao-e-json"))
	h.PixWebhook(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("payload malformado deve ser aceito para o banco não reentregar, veio %d", rec.Code)
	}
	if notifier.calls != 0 {
		t.Fatalf("payload malformado não confirma nada, veio %d avisos", notifier.calls)
	}
}

func TestPixWebhookConfirmsPayment(t *testing.T) {
	h, store, notifier := webhookFixture()

	id := uuid.New()
	store.reqs[id] = &request.ServiceRequest{
		ID:            id,
		Protocol:      "REQ-2026-003",
		Title:         "Certidão negativa",
		Status:        request.StatusPendingPayment,
		PaymentStatus: request.PaymentPending,
		TxID:          "txid-pago",
		CompanyID:     uuid.New(),
	}

	body := `{"pix":[{"txid":"txid-pago","valor":"50.00","horario":"2026-03-01T12:00:00Z"}]}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/pix", strings.NewReader(body))
	h.PixWebhook(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("quer 200, veio %d", rec.Code)
	}
	updated := store.reqs[id]
	if updated.Status != request.StatusRequested || updated.PaymentStatus != request.PaymentApproved {
		t.Fatalf("pagamento deveria ser confirmado: %s/%s", updated.Status, updated.PaymentStatus)
	}
	if notifier.calls != 1 {
		t.Fatalf("quer 1 aviso, veio %d", notifier.calls)
	}

	var envelope struct {
		Data map[string]string `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("resposta: %v", err)
	}
	if envelope.Data["status"] != "received" {
		t.Fatalf("corpo inesperado: %+v", envelope)
	}
}

func TestPixWebhookAcksUnknownTxID(t *testing.T) {
	h, _, notifier := webhookFixture()

	body := `{"pix":[{"txid":"txid-fantasma"}]}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/pix", strings.NewReader(body))
	h.PixWebhook(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("txid desconhecido ainda é 200, veio %d", rec.Code)
	}
	if notifier.calls != 0 {
		t.Fatalf("txid desconhecido não avisa, veio %d", notifier.calls)
	}
}

func TestPixWebhookRedeliveryIsIdempotent(t *testing.T) {
	h, store, notifier := webhookFixture()

	id := uuid.New()
	store.reqs[id] = &request.ServiceRequest{
		ID:            id,
		Protocol:      "REQ-2026-004",
		Status:        request.StatusPendingPayment,
		PaymentStatus: request.PaymentPending,
		TxID:          "txid-reentrega",
		CompanyID:     uuid.New(),
	}

	body := `{"pix":[{"txid":"txid-reentrega"}]}`
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhooks/pix", strings.NewReader(body))
		h.PixWebhook(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("entrega #%d: quer 200, veio %d", i+1, rec.Code)
		}
	}

	if notifier.calls != 1 {
		t.Fatalf("reentrega não avisa de novo, veio %d", notifier.calls)
	}
	if got := len(store.reqs[id].AuditLog); got != 1 {
		t.Fatalf("quer 1 entrada de auditoria, veio %d", got)
	}
}
