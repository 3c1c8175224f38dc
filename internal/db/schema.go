package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema é aplicado integralmente a cada subida; todo comando é idempotente.
// Mantido embutido para que a API suba contra um banco vazio sem passo manual,
// como o setup do portal original fazia.
const schema = `
CREATE TABLE IF NOT EXISTS companies (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name VARCHAR(255) NOT NULL,
    cnpj VARCHAR(20) UNIQUE NOT NULL,
    address TEXT NOT NULL DEFAULT '',
    contact VARCHAR(100) NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name VARCHAR(255) NOT NULL,
    email VARCHAR(255) UNIQUE NOT NULL,
    password_hash VARCHAR(255) NOT NULL,
    role VARCHAR(20) NOT NULL,
    company_id UUID REFERENCES companies(id),
    document VARCHAR(20) NOT NULL DEFAULT '',
    active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS refresh_tokens (
    id UUID PRIMARY KEY,
    subject UUID NOT NULL,
    audience VARCHAR(30) NOT NULL,
    token_hash VARCHAR(64) UNIQUE NOT NULL,
    revoked BOOLEAN NOT NULL DEFAULT FALSE,
    expires_at TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS request_types (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name VARCHAR(120) UNIQUE NOT NULL,
    price NUMERIC(10,2) NOT NULL DEFAULT 0
);

CREATE SEQUENCE IF NOT EXISTS service_request_protocol_seq;

CREATE TABLE IF NOT EXISTS service_requests (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    protocol VARCHAR(50) NOT NULL,
    title VARCHAR(255) NOT NULL,
    type_name VARCHAR(120) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    price NUMERIC(10,2) NOT NULL DEFAULT 0,
    status VARCHAR(30) NOT NULL,
    payment_status VARCHAR(20) NOT NULL,
    txid VARCHAR(64),
    pix_copia_e_cola TEXT,
    pix_expiration TIMESTAMPTZ,
    proof_url TEXT,
    client_id UUID NOT NULL REFERENCES users(id),
    company_id UUID NOT NULL REFERENCES companies(id),
    deleted BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS service_requests_protocol_active
    ON service_requests (protocol) WHERE NOT deleted;
CREATE UNIQUE INDEX IF NOT EXISTS service_requests_txid
    ON service_requests (txid) WHERE txid IS NOT NULL;
CREATE INDEX IF NOT EXISTS service_requests_company_deleted
    ON service_requests (company_id, deleted);
CREATE INDEX IF NOT EXISTS service_requests_updated_at
    ON service_requests (updated_at DESC);

CREATE TABLE IF NOT EXISTS request_audit_logs (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    request_id UUID NOT NULL REFERENCES service_requests(id),
    action TEXT NOT NULL,
    actor VARCHAR(255) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS request_audit_logs_request
    ON request_audit_logs (request_id, created_at);

CREATE TABLE IF NOT EXISTS request_messages (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    request_id UUID NOT NULL REFERENCES service_requests(id),
    sender VARCHAR(255) NOT NULL,
    role VARCHAR(20) NOT NULL,
    body TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS request_messages_request
    ON request_messages (request_id, created_at);

CREATE TABLE IF NOT EXISTS documents (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    title VARCHAR(255) NOT NULL,
    category VARCHAR(120) NOT NULL,
    company_id UUID NOT NULL REFERENCES companies(id),
    request_id UUID REFERENCES service_requests(id),
    url TEXT NOT NULL DEFAULT '',
    status VARCHAR(30) NOT NULL DEFAULT 'enviado',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS notifications (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id UUID NOT NULL REFERENCES users(id),
    title VARCHAR(255) NOT NULL,
    message TEXT NOT NULL,
    read BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS notifications_user
    ON notifications (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS payment_settings (
    singleton BOOLEAN PRIMARY KEY DEFAULT TRUE,
    pix_enabled BOOLEAN NOT NULL DEFAULT FALSE,
    pix_key VARCHAR(140) NOT NULL DEFAULT '',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_by UUID,
    CONSTRAINT payment_settings_singleton CHECK (singleton)
);

INSERT INTO request_types (name, price) VALUES
    ('2ª Via de Boleto', 0),
    ('Alteração Contratual', 150.00),
    ('Dúvida Técnica', 0),
    ('Solicitação de Documento', 0),
    ('Certidão Negativa Extra', 50.00)
ON CONFLICT (name) DO NOTHING;
`

// Migrate aplica o schema embutido. Contas de acesso são criadas fora daqui
// (ver cmd/hashpass para gerar o hash de um admin inicial).
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
