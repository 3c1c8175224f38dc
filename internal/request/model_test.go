package request

import (
	"testing"
	"time"
)

func TestTransitionAllowed(t *testing.T) {
	cases := []struct {
		name  string
		from  Status
		actor Actor
		to    Status
		want  bool
	}{
		{"sistema confirma pagamento pendente", StatusPendingPayment, ActorSystem, StatusRequested, true},
		{"sistema confirma pagamento em análise", StatusPaymentReview, ActorSystem, StatusRequested, true},
		{"cliente envia comprovante", StatusPendingPayment, ActorClient, StatusPaymentReview, true},
		{"admin confirma manualmente", StatusPaymentReview, ActorAdmin, StatusRequested, true},
		{"admin visualiza", StatusRequested, ActorAdmin, StatusViewed, true},
		{"admin inicia resolução direto", StatusRequested, ActorAdmin, StatusInResolution, true},
		{"admin inicia resolução após visualizar", StatusViewed, ActorAdmin, StatusInResolution, true},
		{"admin envia para validação", StatusInResolution, ActorAdmin, StatusInValidation, true},
		{"cliente aprova", StatusInValidation, ActorClient, StatusResolved, true},
		{"cliente reabre", StatusResolved, ActorClient, StatusRequested, true},

		{"cliente não visualiza", StatusRequested, ActorClient, StatusViewed, false},
		{"cliente não aprova antes da validação", StatusInResolution, ActorClient, StatusResolved, false},
		{"admin não aprova pelo cliente", StatusInValidation, ActorAdmin, StatusResolved, false},
		{"sem atalho para resolvido", StatusRequested, ActorAdmin, StatusResolved, false},
		{"resolvido não volta para validação", StatusResolved, ActorAdmin, StatusInValidation, false},
		{"sistema não age após confirmação", StatusRequested, ActorSystem, StatusRequested, false},
		{"pendente não pula pagamento", StatusPendingPayment, ActorClient, StatusRequested, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TransitionAllowed(tc.from, tc.actor, tc.to); got != tc.want {
				t.Fatalf("TransitionAllowed(%s, %s, %s) = %v, quer %v", tc.from, tc.actor, tc.to, got, tc.want)
			}
		})
	}
}

func TestStatusLabels(t *testing.T) {
	if got := StatusPendingPayment.Label(); got != "Pendente Pagamento" {
		t.Fatalf("label inesperado: %s", got)
	}
	if got := StatusInResolution.Label(); got != "Em Resolução" {
		t.Fatalf("label inesperado: %s", got)
	}
	if got := Status("desconhecido").Label(); got != "desconhecido" {
		t.Fatalf("status desconhecido deve devolver o próprio id, veio %s", got)
	}
	if got := PaymentApproved.Label(); got != "Aprovado" {
		t.Fatalf("label de pagamento inesperado: %s", got)
	}
}

func TestIsValidStatus(t *testing.T) {
	if !IsValidStatus(StatusResolved) {
		t.Fatal("resolvido deveria ser válido")
	}
	if IsValidStatus(Status("qualquer")) {
		t.Fatal("status arbitrário não deveria ser válido")
	}
}

func TestHasLiveCharge(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	req := &ServiceRequest{}
	if req.HasLiveCharge(now) {
		t.Fatal("sem txid não há cobrança viva")
	}

	req.TxID = "txid-1"
	if req.HasLiveCharge(now) {
		t.Fatal("sem expiração não há cobrança viva")
	}

	req.PixExpiration = &future
	if !req.HasLiveCharge(now) {
		t.Fatal("cobrança dentro da validade deveria estar viva")
	}

	req.PixExpiration = &past
	if req.HasLiveCharge(now) {
		t.Fatal("cobrança vencida não está viva")
	}
}

func TestAppendAudit(t *testing.T) {
	req := &ServiceRequest{}
	req.AppendAudit("Solicitação criada", "Maria")
	req.AppendAudit("Solicitação visualizada pela contabilidade", "João")

	if len(req.AuditLog) != 2 {
		t.Fatalf("quer 2 entradas, veio %d", len(req.AuditLog))
	}
	if req.AuditLog[0].Action != "Solicitação criada" || req.AuditLog[0].Actor != "Maria" {
		t.Fatalf("primeira entrada inesperada: %+v", req.AuditLog[0])
	}
	if req.AuditLog[1].ID == req.AuditLog[0].ID {
		t.Fatal("entradas devem ter ids distintos")
	}
}
