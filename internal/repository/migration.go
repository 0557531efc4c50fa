package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id                     UUID PRIMARY KEY,
	user_id                BIGINT NOT NULL,
	amount                 NUMERIC(19,2) NOT NULL CHECK (amount > 0),
	fee                    NUMERIC(19,2) NOT NULL CHECK (fee >= 0),
	net_amount             NUMERIC(19,2) NOT NULL,
	currency               CHAR(3) NOT NULL,
	status                 TEXT NOT NULL,
	provider_payment_id    TEXT,
	wallet_tx_id           BIGINT,
	failure_reason         TEXT,
	destination_account_id UUID NOT NULL,
	idempotency_key        TEXT NOT NULL UNIQUE,
	created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	version                BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_transactions_user_id ON transactions (user_id);

CREATE TABLE IF NOT EXISTS users (
	id            BIGSERIAL PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL DEFAULT 'USER',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Migrate applies the schema at startup.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, schema)
	return err
}
