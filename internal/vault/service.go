package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/maatcontabil/portal/internal/storage"
)

// Service gerencia o cofre de documentos das empresas.
type Service struct {
	repo     *Repository
	uploader storage.Uploader
	logger   zerolog.Logger
}

// NewService cria instância do serviço.
func NewService(repo *Repository, uploader storage.Uploader, logger zerolog.Logger) *Service {
	if uploader == nil {
		uploader = storage.NoopUploader{}
	}
	return &Service{repo: repo, uploader: uploader, logger: logger}
}

// CreateDerivedDocument arquiva na categoria reservada o documento da
// solicitação resolvida. O conteúdo fica pendente até o colaborador
// anexar o arquivo final; se houver backend de armazenamento, um
// recibo textual é gravado desde já.
func (s *Service) CreateDerivedDocument(ctx context.Context, companyID, requestID uuid.UUID, protocol, title string) error {
	doc := Document{
		ID:        uuid.New(),
		Title:     fmt.Sprintf("%s - %s", protocol, title),
		Category:  CategoryRequested,
		CompanyID: companyID,
		RequestID: &requestID,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}

	receipt := fmt.Sprintf("Solicitação %s (%s) resolvida em %s.\n", protocol, title, doc.CreatedAt.Format("02/01/2006 15:04"))
	key := fmt.Sprintf("vault/%s/%s.txt", companyID, strings.ToLower(protocol))
	result, err := s.uploader.Upload(ctx, storage.UploadInput{
		Key:         key,
		Body:        []byte(receipt),
		ContentType: "text/plain; charset=utf-8",
	})
	switch {
	case err == nil:
		doc.URL = result.URL
		doc.Status = StatusSent
	case errors.Is(err, storage.ErrNotConfigured):
		// sem backend, o documento fica pendente de anexo manual
	default:
		s.logger.Warn().Err(err).Str("protocol", protocol).Msg("upload do recibo falhou")
	}

	return s.repo.Insert(ctx, doc)
}

// ListByCompany devolve os documentos da empresa.
func (s *Service) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]Document, error) {
	return s.repo.ListByCompany(ctx, companyID)
}

// Get recupera um documento.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Document, error) {
	return s.repo.Get(ctx, id)
}
