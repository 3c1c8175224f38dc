package settings

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("configuração de pagamento não encontrada")

// PaymentSettings é a linha singleton que liga/desliga a cobrança Pix e
// pode sobrepor a chave recebedora. A API lê a linha na subida; mudanças
// passam a valer no próximo start. Credenciais e certificado mTLS vêm
// sempre do ambiente.
type PaymentSettings struct {
	PixEnabled bool
	PixKey     string
	UpdatedAt  time.Time
	UpdatedBy  *uuid.UUID
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetPaymentSettings(ctx context.Context) (*PaymentSettings, error) {
	const query = `
        SELECT pix_enabled, pix_key, updated_at, updated_by
        FROM payment_settings
        WHERE singleton = TRUE
        LIMIT 1
    `

	var cfg PaymentSettings
	err := r.pool.QueryRow(ctx, query).Scan(&cfg.PixEnabled, &cfg.PixKey, &cfg.UpdatedAt, &cfg.UpdatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cfg, nil
}

func (r *Repository) SavePaymentSettings(ctx context.Context, cfg PaymentSettings) (*PaymentSettings, error) {
	const query = `
        INSERT INTO payment_settings (singleton, pix_enabled, pix_key, updated_at, updated_by)
        VALUES (TRUE, $1, $2, now(), $3)
        ON CONFLICT (singleton)
        DO UPDATE SET
            pix_enabled = EXCLUDED.pix_enabled,
            pix_key = EXCLUDED.pix_key,
            updated_at = now(),
            updated_by = EXCLUDED.updated_by
        RETURNING pix_enabled, pix_key, updated_at, updated_by
    `

	var updated PaymentSettings
	err := r.pool.QueryRow(ctx, query, cfg.PixEnabled, strings.TrimSpace(cfg.PixKey), cfg.UpdatedBy).
		Scan(&updated.PixEnabled, &updated.PixKey, &updated.UpdatedAt, &updated.UpdatedBy)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// UpdatePaymentSettingsInput aplica mudanças parciais sobre o singleton.
type UpdatePaymentSettingsInput struct {
	PixEnabled *bool
	PixKey     *string
	UpdatedBy  uuid.UUID
}

// SanitizedPaymentSettings é a visão exposta pela API; a chave Pix
// completa nunca sai do servidor.
type SanitizedPaymentSettings struct {
	PixEnabled bool       `json:"pix_enabled"`
	HasPixKey  bool       `json:"has_pix_key"`
	UpdatedAt  time.Time  `json:"updated_at"`
	UpdatedBy  *uuid.UUID `json:"updated_by"`
}

func (s *Service) GetPaymentSettings(ctx context.Context) (*PaymentSettings, error) {
	return s.repo.GetPaymentSettings(ctx)
}

func (s *Service) GetSanitizedPaymentSettings(ctx context.Context) (*SanitizedPaymentSettings, error) {
	cfg, err := s.repo.GetPaymentSettings(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &SanitizedPaymentSettings{}, nil
		}
		return nil, err
	}
	return &SanitizedPaymentSettings{
		PixEnabled: cfg.PixEnabled,
		HasPixKey:  strings.TrimSpace(cfg.PixKey) != "",
		UpdatedAt:  cfg.UpdatedAt,
		UpdatedBy:  cfg.UpdatedBy,
	}, nil
}

func (s *Service) UpdatePaymentSettings(ctx context.Context, input UpdatePaymentSettingsInput) (*PaymentSettings, error) {
	existing, err := s.repo.GetPaymentSettings(ctx)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	var cfg PaymentSettings
	if existing != nil {
		cfg = *existing
	}
	if input.PixEnabled != nil {
		cfg.PixEnabled = *input.PixEnabled
	}
	if input.PixKey != nil {
		cfg.PixKey = strings.TrimSpace(*input.PixKey)
	}
	cfg.UpdatedBy = &input.UpdatedBy

	return s.repo.SavePaymentSettings(ctx, cfg)
}
