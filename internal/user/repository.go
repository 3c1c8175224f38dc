package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provê acesso às tabelas de identidade do portal.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria instância do repositório.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, name, email, password_hash, role, company_id, document, active, created_at`

// GetByEmail busca usuário ativo ou não pelo e-mail normalizado.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = $1`
	row := r.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

// GetByID busca usuário pelo identificador.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	return scanUser(row)
}

// ListAdmins devolve todos os administradores ativos (alvo das notificações).
func (r *Repository) ListAdmins(ctx context.Context) ([]User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE role = 'admin' AND active ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var admins []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		admins = append(admins, *u)
	}
	return admins, rows.Err()
}

// GetCompany busca a empresa do cliente.
func (r *Repository) GetCompany(ctx context.Context, id uuid.UUID) (*Company, error) {
	const query = `SELECT id, name, cnpj, address, contact, created_at FROM companies WHERE id = $1`

	var c Company
	err := r.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.CNPJ, &c.Address, &c.Contact, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCompanyNotFound
		}
		return nil, err
	}
	return &c, nil
}

// InsertRefreshToken persiste um refresh recém-emitido.
func (r *Repository) InsertRefreshToken(ctx context.Context, token RefreshToken) error {
	const query = `
        INSERT INTO refresh_tokens (id, subject, audience, token_hash, expires_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	_, err := r.pool.Exec(ctx, query, token.ID, token.Subject, token.Audience, token.TokenHash, token.ExpiresAt, token.CreatedAt)
	return err
}

// GetRefreshTokenByHash recupera refresh pelo hash.
func (r *Repository) GetRefreshTokenByHash(ctx context.Context, hash string) (*RefreshToken, error) {
	const query = `
        SELECT id, subject, audience, token_hash, revoked, expires_at, created_at
        FROM refresh_tokens
        WHERE token_hash = $1
    `

	var t RefreshToken
	err := r.pool.QueryRow(ctx, query, hash).Scan(&t.ID, &t.Subject, &t.Audience, &t.TokenHash, &t.Revoked, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// RevokeRefreshToken marca o refresh como revogado.
func (r *Repository) RevokeRefreshToken(ctx context.Context, hash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token_hash = $1`, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InvalidateOtherRefreshTokens revoga todos os refresh do sujeito exceto o atual (rotação).
func (r *Repository) InvalidateOtherRefreshTokens(ctx context.Context, subject uuid.UUID, audience, keepHash string) error {
	const query = `
        UPDATE refresh_tokens
        SET revoked = TRUE
        WHERE subject = $1 AND audience = $2 AND token_hash <> $3 AND NOT revoked
    `
	_, err := r.pool.Exec(ctx, query, subject, audience, keepHash)
	return err
}

// PurgeExpiredRefreshTokens remove tokens vencidos há mais de um dia.
func (r *Repository) PurgeExpiredRefreshTokens(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, time.Now().UTC().Add(-24*time.Hour))
	return err
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CompanyID, &u.Document, &u.Active, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
