package request

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maatcontabil/portal/internal/db"
)

// Repository é o dono da coleção de solicitações (ativas e na lixeira).
// Atualizações passam por Mutate, que serializa escritores por solicitação
// com SELECT ... FOR UPDATE — trilha de auditoria e chat nunca perdem
// entradas quando admin, cliente e webhook concorrem.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria instância do repositório.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const requestColumns = `
    id, protocol, title, type_name, description, price, status, payment_status,
    txid, pix_copia_e_cola, pix_expiration, proof_url,
    client_id, company_id, deleted, created_at, updated_at`

// GetType devolve o tipo de solicitação configurado.
func (r *Repository) GetType(ctx context.Context, id uuid.UUID) (*TypeConfig, error) {
	const query = `SELECT id, name, price FROM request_types WHERE id = $1`

	var t TypeConfig
	if err := r.pool.QueryRow(ctx, query, id).Scan(&t.ID, &t.Name, &t.Price); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTypeNotFound
		}
		return nil, err
	}
	return &t, nil
}

// ListTypes lista os tipos disponíveis para o formulário de abertura.
func (r *Repository) ListTypes(ctx context.Context) ([]TypeConfig, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, price FROM request_types ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []TypeConfig
	for rows.Next() {
		var t TypeConfig
		if err := rows.Scan(&t.ID, &t.Name, &t.Price); err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

// Create insere a solicitação com protocolo sequencial REQ-<ano>-<n>.
func (r *Repository) Create(ctx context.Context, req *ServiceRequest) (*ServiceRequest, error) {
	var created *ServiceRequest

	err := db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		var seq int64
		if err := tx.QueryRow(ctx, `SELECT nextval('service_request_protocol_seq')`).Scan(&seq); err != nil {
			return err
		}
		req.Protocol = fmt.Sprintf("REQ-%d-%03d", time.Now().UTC().Year(), seq)

		const query = `
            INSERT INTO service_requests
                (id, protocol, title, type_name, description, price, status, payment_status, client_id, company_id)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
            RETURNING created_at, updated_at
        `
		if req.ID == uuid.Nil {
			req.ID = uuid.New()
		}
		err := tx.QueryRow(ctx, query,
			req.ID, req.Protocol, req.Title, req.TypeName, req.Description,
			req.Price, req.Status, req.PaymentStatus, req.ClientID, req.CompanyID,
		).Scan(&req.CreatedAt, &req.UpdatedAt)
		if err != nil {
			return mapUniqueViolation(err)
		}

		if err := insertAuditEntries(ctx, tx, req.ID, req.AuditLog); err != nil {
			return err
		}

		created = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Get carrega a solicitação completa (com chat e trilha de auditoria).
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*ServiceRequest, error) {
	return loadRequest(ctx, r.pool, `WHERE id = $1`, id)
}

// GetByTxID localiza a solicitação correlacionada a uma cobrança Pix.
func (r *Repository) GetByTxID(ctx context.Context, txid string) (*ServiceRequest, error) {
	return loadRequest(ctx, r.pool, `WHERE txid = $1`, txid)
}

// List devolve solicitações ordenadas por atualização, sem chat/auditoria.
func (r *Repository) List(ctx context.Context, filter Filter) ([]ServiceRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM service_requests`

	var (
		clauses []string
		args    []any
	)
	if filter.CompanyID != nil {
		args = append(args, *filter.CompanyID)
		clauses = append(clauses, fmt.Sprintf("company_id = $%d", len(args)))
	}
	switch {
	case filter.OnlyDeleted:
		clauses = append(clauses, "deleted")
	case !filter.IncludeDeleted:
		clauses = append(clauses, "NOT deleted")
	}

	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY updated_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []ServiceRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

// Mutate executa read-modify-write sob lock da linha da solicitação.
// fn recebe a versão corrente e só pode acrescentar entradas em
// AuditLog/Chat; campos alterados e acréscimos são persistidos na mesma
// transação e updated_at é avançado. Quando fn não muda nada a linha é
// deixada intacta, sem avançar updated_at.
func (r *Repository) Mutate(ctx context.Context, id uuid.UUID, fn func(req *ServiceRequest) error) (*ServiceRequest, error) {
	var result *ServiceRequest

	err := db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		req, err := loadRequest(ctx, tx, `WHERE id = $1 FOR UPDATE OF service_requests`, id)
		if err != nil {
			return err
		}

		base := *req
		baseAudit := len(req.AuditLog)
		baseChat := len(req.Chat)

		if err := fn(req); err != nil {
			return err
		}

		if unchanged(&base, req) && len(req.AuditLog) == baseAudit && len(req.Chat) == baseChat {
			result = req
			return nil
		}

		const update = `
            UPDATE service_requests
            SET title = $2, description = $3, status = $4, payment_status = $5,
                txid = NULLIF($6, ''), pix_copia_e_cola = NULLIF($7, ''),
                pix_expiration = $8, proof_url = NULLIF($9, ''),
                deleted = $10, updated_at = now()
            WHERE id = $1
            RETURNING updated_at
        `
		err = tx.QueryRow(ctx, update,
			req.ID, req.Title, req.Description, req.Status, req.PaymentStatus,
			req.TxID, req.PixCopiaECola, req.PixExpiration, req.ProofURL, req.Deleted,
		).Scan(&req.UpdatedAt)
		if err != nil {
			return mapUniqueViolation(err)
		}

		if err := insertAuditEntries(ctx, tx, req.ID, req.AuditLog[baseAudit:]); err != nil {
			return err
		}
		if err := insertChatMessages(ctx, tx, req.ID, req.Chat[baseChat:]); err != nil {
			return err
		}

		result = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// unchanged compara os campos que Mutate persiste.
func unchanged(a, b *ServiceRequest) bool {
	if a.Title != b.Title || a.Description != b.Description ||
		a.Status != b.Status || a.PaymentStatus != b.PaymentStatus ||
		a.TxID != b.TxID || a.PixCopiaECola != b.PixCopiaECola ||
		a.ProofURL != b.ProofURL || a.Deleted != b.Deleted {
		return false
	}
	switch {
	case a.PixExpiration == nil && b.PixExpiration == nil:
		return true
	case a.PixExpiration == nil || b.PixExpiration == nil:
		return false
	default:
		return a.PixExpiration.Equal(*b.PixExpiration)
	}
}

func loadRequest(ctx context.Context, q querier, where string, arg any) (*ServiceRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM service_requests ` + where

	req, err := scanRequest(q.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, err
	}

	const auditQuery = `
        SELECT id, action, actor, created_at
        FROM request_audit_logs
        WHERE request_id = $1
        ORDER BY created_at, id
    `
	rows, err := q.Query(ctx, auditQuery, req.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var entry AuditLog
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.Actor, &entry.CreatedAt); err != nil {
			return nil, err
		}
		req.AuditLog = append(req.AuditLog, entry)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	const chatQuery = `
        SELECT id, sender, role, body, created_at
        FROM request_messages
        WHERE request_id = $1
        ORDER BY created_at, id
    `
	msgRows, err := q.Query(ctx, chatQuery, req.ID)
	if err != nil {
		return nil, err
	}
	defer msgRows.Close()
	for msgRows.Next() {
		var msg ChatMessage
		if err := msgRows.Scan(&msg.ID, &msg.Sender, &msg.Role, &msg.Body, &msg.CreatedAt); err != nil {
			return nil, err
		}
		req.Chat = append(req.Chat, msg)
	}
	return req, msgRows.Err()
}

func insertAuditEntries(ctx context.Context, q querier, requestID uuid.UUID, entries []AuditLog) error {
	const query = `
        INSERT INTO request_audit_logs (id, request_id, action, actor, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `
	for _, entry := range entries {
		if _, err := q.Exec(ctx, query, entry.ID, requestID, entry.Action, entry.Actor, entry.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

func insertChatMessages(ctx context.Context, q querier, requestID uuid.UUID, messages []ChatMessage) error {
	const query = `
        INSERT INTO request_messages (id, request_id, sender, role, body, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	for _, msg := range messages {
		if _, err := q.Exec(ctx, query, msg.ID, requestID, msg.Sender, msg.Role, msg.Body, msg.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

func scanRequest(row pgx.Row) (*ServiceRequest, error) {
	var (
		req           ServiceRequest
		txid          *string
		pixCopiaECola *string
		proofURL      *string
	)
	err := row.Scan(
		&req.ID, &req.Protocol, &req.Title, &req.TypeName, &req.Description,
		&req.Price, &req.Status, &req.PaymentStatus,
		&txid, &pixCopiaECola, &req.PixExpiration, &proofURL,
		&req.ClientID, &req.CompanyID, &req.Deleted, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if txid != nil {
		req.TxID = *txid
	}
	if pixCopiaECola != nil {
		req.PixCopiaECola = *pixCopiaECola
	}
	if proofURL != nil {
		req.ProofURL = *proofURL
	}
	return &req, nil
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if pgErr.ConstraintName == "service_requests_protocol_active" {
			return ErrProtocolTaken
		}
	}
	return err
}
