package request

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type stubStore struct {
	types       map[uuid.UUID]TypeConfig
	reqs        map[uuid.UUID]*ServiceRequest
	lastFilter  Filter
	seq         int
	mutateCalls int
}

func newStubStore() *stubStore {
	return &stubStore{
		types: make(map[uuid.UUID]TypeConfig),
		reqs:  make(map[uuid.UUID]*ServiceRequest),
	}
}

func (s *stubStore) GetType(ctx context.Context, id uuid.UUID) (*TypeConfig, error) {
	t, ok := s.types[id]
	if !ok {
		return nil, ErrTypeNotFound
	}
	return &t, nil
}

func (s *stubStore) ListTypes(ctx context.Context) ([]TypeConfig, error) {
	var out []TypeConfig
	for _, t := range s.types {
		out = append(out, t)
	}
	return out, nil
}

func (s *stubStore) Create(ctx context.Context, req *ServiceRequest) (*ServiceRequest, error) {
	s.seq++
	req.Protocol = uuid.NewString()[:8]
	cp := *req
	s.reqs[req.ID] = &cp
	return req, nil
}

func (s *stubStore) Get(ctx context.Context, id uuid.UUID) (*ServiceRequest, error) {
	req, ok := s.reqs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *req
	cp.Chat = append([]ChatMessage(nil), req.Chat...)
	cp.AuditLog = append([]AuditLog(nil), req.AuditLog...)
	return &cp, nil
}

func (s *stubStore) List(ctx context.Context, filter Filter) ([]ServiceRequest, error) {
	s.lastFilter = filter
	var out []ServiceRequest
	for _, req := range s.reqs {
		out = append(out, *req)
	}
	return out, nil
}

func (s *stubStore) Mutate(ctx context.Context, id uuid.UUID, fn func(req *ServiceRequest) error) (*ServiceRequest, error) {
	s.mutateCalls++
	stored, ok := s.reqs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *stored
	cp.Chat = append([]ChatMessage(nil), stored.Chat...)
	cp.AuditLog = append([]AuditLog(nil), stored.AuditLog...)
	if err := fn(&cp); err != nil {
		return nil, err
	}
	cp.UpdatedAt = time.Now()
	s.reqs[id] = &cp
	return &cp, nil
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

type stubVault struct {
	calls int
}

func (v *stubVault) CreateDerivedDocument(ctx context.Context, companyID, requestID uuid.UUID, protocol, title string) error {
	v.calls++
	return nil
}

func fixture(t *testing.T) (*Service, *stubStore, *stubNotifier, *stubVault) {
	t.Helper()
	store := newStubStore()
	notifier := &stubNotifier{}
	vault := &stubVault{}
	return NewService(store, notifier, vault), store, notifier, vault
}

func adminViewer() Viewer {
	return Viewer{ID: uuid.New(), Name: "Ana Contadora", Role: "admin"}
}

func clientViewer(companyID uuid.UUID) Viewer {
	return Viewer{ID: uuid.New(), Name: "Carlos Cliente", Role: "client", CompanyID: &companyID}
}

func seedRequest(store *stubStore, status Status, companyID uuid.UUID) *ServiceRequest {
	req := &ServiceRequest{
		ID:            uuid.New(),
		Protocol:      "REQ-2026-001",
		Title:         "Alteração contratual",
		TypeName:      "Alteração Contratual",
		Status:        status,
		PaymentStatus: PaymentNA,
		ClientID:      uuid.New(),
		CompanyID:     companyID,
	}
	store.reqs[req.ID] = req
	return req
}

func TestCreateFreeTypeEntersQueue(t *testing.T) {
	svc, store, notifier, _ := fixture(t)
	typeID := uuid.New()
	store.types[typeID] = TypeConfig{ID: typeID, Name: "Dúvida Técnica", Price: 0}

	companyID := uuid.New()
	viewer := clientViewer(companyID)

	created, err := svc.Create(context.Background(), CreateInput{
		Title:      "Dúvida sobre pró-labore",
		TypeID:     typeID,
		ClientID:   viewer.ID,
		CompanyID:  companyID,
		ClientName: viewer.Name,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Status != StatusRequested {
		t.Fatalf("tipo gratuito deveria nascer solicitada, veio %s", created.Status)
	}
	if created.PaymentStatus != PaymentNA {
		t.Fatalf("pagamento deveria ser n/a, veio %s", created.PaymentStatus)
	}
	if len(created.AuditLog) != 1 || created.AuditLog[0].Action != "Solicitação criada" {
		t.Fatalf("auditoria de criação ausente: %+v", created.AuditLog)
	}
	if notifier.calls != 1 {
		t.Fatalf("contabilidade deveria ser notificada uma vez, veio %d", notifier.calls)
	}
}

func TestCreatePaidTypeFreezesPrice(t *testing.T) {
	svc, store, _, _ := fixture(t)
	typeID := uuid.New()
	store.types[typeID] = TypeConfig{ID: typeID, Name: "Alteração Contratual", Price: 150}

	companyID := uuid.New()
	viewer := clientViewer(companyID)

	created, err := svc.Create(context.Background(), CreateInput{
		Title:      "Mudança de endereço",
		TypeID:     typeID,
		ClientID:   viewer.ID,
		CompanyID:  companyID,
		ClientName: viewer.Name,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Status != StatusPendingPayment || created.PaymentStatus != PaymentPending {
		t.Fatalf("tipo pago deveria aguardar pagamento: %s/%s", created.Status, created.PaymentStatus)
	}
	if created.Price != 150 {
		t.Fatalf("preço congelado incorreto: %v", created.Price)
	}

	// preço do tipo muda depois; a solicitação mantém o congelado
	store.types[typeID] = TypeConfig{ID: typeID, Name: "Alteração Contratual", Price: 200}
	reloaded, err := svc.Get(context.Background(), created.ID, clientViewerFor(viewer, companyID))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if reloaded.Price != 150 {
		t.Fatalf("preço não deveria acompanhar o catálogo: %v", reloaded.Price)
	}
}

func clientViewerFor(v Viewer, companyID uuid.UUID) Viewer {
	v.CompanyID = &companyID
	return v
}

func TestCreateValidation(t *testing.T) {
	svc, store, _, _ := fixture(t)
	typeID := uuid.New()
	store.types[typeID] = TypeConfig{ID: typeID, Name: "Dúvida Técnica"}

	if _, err := svc.Create(context.Background(), CreateInput{TypeID: typeID}); err == nil {
		t.Fatal("título vazio deveria falhar")
	}
	if _, err := svc.Create(context.Background(), CreateInput{Title: "x", TypeID: uuid.New()}); !errors.Is(err, ErrTypeNotFound) {
		t.Fatalf("tipo inexistente: quer ErrTypeNotFound, veio %v", err)
	}
}

func TestAdminFirstReadMarksViewed(t *testing.T) {
	svc, store, _, _ := fixture(t)
	req := seedRequest(store, StatusRequested, uuid.New())

	got, err := svc.Get(context.Background(), req.ID, adminViewer())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusViewed {
		t.Fatalf("primeira leitura do admin deveria marcar visualizada, veio %s", got.Status)
	}
	if len(got.AuditLog) != 1 {
		t.Fatalf("visualização deveria ir para a auditoria: %+v", got.AuditLog)
	}

	// segunda leitura não duplica
	again, err := svc.Get(context.Background(), req.ID, adminViewer())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(again.AuditLog) != 1 {
		t.Fatalf("leitura repetida não deveria auditar de novo: %+v", again.AuditLog)
	}
}

func TestClientReadDoesNotMarkViewed(t *testing.T) {
	svc, store, _, _ := fixture(t)
	companyID := uuid.New()
	req := seedRequest(store, StatusRequested, companyID)

	got, err := svc.Get(context.Background(), req.ID, clientViewer(companyID))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusRequested {
		t.Fatalf("leitura do cliente não muda status, veio %s", got.Status)
	}
}

func TestClientCannotSeeOtherCompany(t *testing.T) {
	svc, store, _, _ := fixture(t)
	req := seedRequest(store, StatusRequested, uuid.New())

	if _, err := svc.Get(context.Background(), req.ID, clientViewer(uuid.New())); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empresa alheia: quer ErrNotFound, veio %v", err)
	}
}

func TestListScopesClient(t *testing.T) {
	svc, store, _, _ := fixture(t)
	companyID := uuid.New()
	viewer := clientViewer(companyID)

	if _, err := svc.List(context.Background(), viewer, Filter{OnlyDeleted: true, IncludeDeleted: true}); err != nil {
		t.Fatalf("List: %v", err)
	}
	if store.lastFilter.CompanyID == nil || *store.lastFilter.CompanyID != companyID {
		t.Fatal("cliente deveria ser limitado à própria empresa")
	}
	if store.lastFilter.OnlyDeleted || store.lastFilter.IncludeDeleted {
		t.Fatal("cliente não enxerga a lixeira")
	}
}

func TestApproveGeneratesVaultDocumentOnce(t *testing.T) {
	svc, store, _, vault := fixture(t)
	companyID := uuid.New()
	req := seedRequest(store, StatusInValidation, companyID)

	updated, err := svc.Transition(context.Background(), TransitionInput{
		RequestID: req.ID,
		Action:    ActionApprove,
		Viewer:    clientViewer(companyID),
	})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if updated.Status != StatusResolved {
		t.Fatalf("quer resolvido, veio %s", updated.Status)
	}
	if vault.calls != 1 {
		t.Fatalf("quer exatamente 1 documento no cofre, veio %d", vault.calls)
	}
	last := updated.AuditLog[len(updated.AuditLog)-1]
	if last.Action != `Documento "REQ-2026-001 - Alteração contratual" gerado no cofre` || last.Actor != "Sistema" {
		t.Fatalf("geração do documento deveria ir para a auditoria: %+v", last)
	}

	if _, err := svc.Transition(context.Background(), TransitionInput{
		RequestID: req.ID,
		Action:    ActionApprove,
		Viewer:    clientViewer(companyID),
	}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("aprovar de novo: quer ErrInvalidTransition, veio %v", err)
	}
	if vault.calls != 1 {
		t.Fatalf("repetição não gera segundo documento, veio %d", vault.calls)
	}
}

func TestSendProofMovesToReview(t *testing.T) {
	svc, store, notifier, _ := fixture(t)
	companyID := uuid.New()
	req := seedRequest(store, StatusPendingPayment, companyID)
	req.PaymentStatus = PaymentPending

	updated, err := svc.Transition(context.Background(), TransitionInput{
		RequestID: req.ID,
		Action:    ActionSendProof,
		ProofURL:  "https://files.example/comprovante.pdf",
		Viewer:    clientViewer(companyID),
	})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if updated.Status != StatusPaymentReview || updated.PaymentStatus != PaymentReview {
		t.Fatalf("comprovante deveria mover para análise: %s/%s", updated.Status, updated.PaymentStatus)
	}
	if updated.ProofURL == "" {
		t.Fatal("url do comprovante deveria ser guardada")
	}
	if notifier.calls != 1 {
		t.Fatalf("contabilidade deveria ser avisada do comprovante, veio %d", notifier.calls)
	}
}

func TestAdminConfirmsPaymentManually(t *testing.T) {
	svc, store, _, _ := fixture(t)
	req := seedRequest(store, StatusPaymentReview, uuid.New())
	req.PaymentStatus = PaymentReview

	updated, err := svc.Transition(context.Background(), TransitionInput{
		RequestID: req.ID,
		Action:    ActionConfirmPayment,
		Viewer:    adminViewer(),
	})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if updated.Status != StatusRequested || updated.PaymentStatus != PaymentApproved {
		t.Fatalf("confirmação manual: %s/%s", updated.Status, updated.PaymentStatus)
	}
}

func TestTransitionRejectsUnknownAction(t *testing.T) {
	svc, store, _, _ := fixture(t)
	req := seedRequest(store, StatusRequested, uuid.New())

	if _, err := svc.Transition(context.Background(), TransitionInput{
		RequestID: req.ID,
		Action:    "cancelar",
		Viewer:    adminViewer(),
	}); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("quer ErrUnknownAction, veio %v", err)
	}
}

func TestTransitionBlockedOnTrash(t *testing.T) {
	svc, store, _, _ := fixture(t)
	req := seedRequest(store, StatusRequested, uuid.New())
	req.Deleted = true

	if _, err := svc.Transition(context.Background(), TransitionInput{
		RequestID: req.ID,
		Action:    ActionStartResolution,
		Viewer:    adminViewer(),
	}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("lixeira: quer ErrInvalidState, veio %v", err)
	}
}

func TestAddMessage(t *testing.T) {
	svc, store, _, _ := fixture(t)
	companyID := uuid.New()
	req := seedRequest(store, StatusInResolution, companyID)

	updated, err := svc.AddMessage(context.Background(), MessageInput{
		RequestID: req.ID,
		Body:      "  Segue o documento solicitado.  ",
		Viewer:    clientViewer(companyID),
	})
	if err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if len(updated.Chat) != 1 {
		t.Fatalf("quer 1 mensagem, veio %d", len(updated.Chat))
	}
	if updated.Chat[0].Body != "Segue o documento solicitado." {
		t.Fatalf("mensagem deveria ser normalizada: %q", updated.Chat[0].Body)
	}

	if _, err := svc.AddMessage(context.Background(), MessageInput{
		RequestID: req.ID,
		Body:      "   ",
		Viewer:    clientViewer(companyID),
	}); err == nil {
		t.Fatal("mensagem vazia deveria falhar")
	}

	req2 := seedRequest(store, StatusRequested, companyID)
	req2.Deleted = true
	if _, err := svc.AddMessage(context.Background(), MessageInput{
		RequestID: req2.ID,
		Body:      "oi",
		Viewer:    adminViewer(),
	}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("chat na lixeira: quer ErrInvalidState, veio %v", err)
	}
}

func TestSoftDeleteAndRestoreAreIdempotent(t *testing.T) {
	svc, store, _, _ := fixture(t)
	req := seedRequest(store, StatusInResolution, uuid.New())
	admin := adminViewer()

	deleted, err := svc.SoftDelete(context.Background(), req.ID, admin)
	if err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if !deleted.Deleted || deleted.Status != StatusInResolution {
		t.Fatalf("lixeira preserva status: %+v", deleted)
	}
	audits := len(deleted.AuditLog)
	mutations := store.mutateCalls

	again, err := svc.SoftDelete(context.Background(), req.ID, admin)
	if err != nil {
		t.Fatalf("SoftDelete repetido: %v", err)
	}
	if len(again.AuditLog) != audits {
		t.Fatal("repetir exclusão não deveria auditar de novo")
	}
	if store.mutateCalls != mutations {
		t.Fatal("repetir exclusão não deveria gravar nada")
	}
	if !again.UpdatedAt.Equal(deleted.UpdatedAt) {
		t.Fatal("repetir exclusão não deveria avançar updated_at")
	}

	restored, err := svc.Restore(context.Background(), req.ID, admin)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.Deleted || restored.Status != StatusInResolution {
		t.Fatalf("restauração preserva status e histórico: %+v", restored)
	}

	audits = len(restored.AuditLog)
	mutations = store.mutateCalls
	again, err = svc.Restore(context.Background(), req.ID, admin)
	if err != nil {
		t.Fatalf("Restore repetido: %v", err)
	}
	if len(again.AuditLog) != audits {
		t.Fatal("repetir restauração não deveria auditar de novo")
	}
	if store.mutateCalls != mutations {
		t.Fatal("repetir restauração não deveria gravar nada")
	}
	if !again.UpdatedAt.Equal(restored.UpdatedAt) {
		t.Fatal("repetir restauração não deveria avançar updated_at")
	}
}
