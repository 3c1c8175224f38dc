package vault

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persiste os documentos do cofre.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria instância do repositório.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert grava o documento.
func (r *Repository) Insert(ctx context.Context, doc Document) error {
	const query = `
        INSERT INTO documents (id, title, category, company_id, request_id, url, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `
	_, err := r.pool.Exec(ctx, query, doc.ID, doc.Title, doc.Category, doc.CompanyID, doc.RequestID, doc.URL, doc.Status, doc.CreatedAt)
	return err
}

// Get busca um documento pelo identificador.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Document, error) {
	const query = `
        SELECT id, title, category, company_id, request_id, url, status, created_at
        FROM documents
        WHERE id = $1
    `
	var doc Document
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&doc.ID, &doc.Title, &doc.Category, &doc.CompanyID, &doc.RequestID, &doc.URL, &doc.Status, &doc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// ListByCompany devolve os documentos da empresa, mais recentes primeiro.
func (r *Repository) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]Document, error) {
	const query = `
        SELECT id, title, category, company_id, request_id, url, status, created_at
        FROM documents
        WHERE company_id = $1
        ORDER BY created_at DESC
    `
	rows, err := r.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Category, &doc.CompanyID, &doc.RequestID, &doc.URL, &doc.Status, &doc.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// ExistsForRequest indica se já há documento gerado para a solicitação.
func (r *Repository) ExistsForRequest(ctx context.Context, requestID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE request_id = $1)`, requestID).Scan(&exists)
	return exists, err
}
