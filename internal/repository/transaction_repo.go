package repository

import (
	"context"
	"errors"

	"payout-service/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TransactionRepository interface {
	Create(ctx context.Context, tx *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error)
	Update(ctx context.Context, tx *domain.Transaction) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type transactionRepo struct {
	db *pgxpool.Pool
}

func NewTransactionRepository(db *pgxpool.Pool) TransactionRepository {
	return &transactionRepo{db: db}
}

const transactionColumns = `
	id, user_id, amount, fee, net_amount, currency, status,
	provider_payment_id, wallet_tx_id, failure_reason,
	destination_account_id, idempotency_key, created_at, updated_at, version
`

// Create inserts the PENDING record. The unique constraint on
// idempotency_key makes this an insert-if-absent: a concurrent create under
// the same key surfaces as domain.ErrDuplicateRequest instead of a second
// independent record.
func (r *transactionRepo) Create(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (
			id, user_id, amount, fee, net_amount, currency, status,
			destination_account_id, idempotency_key, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0)
		RETURNING created_at, updated_at, version
	`

	err := r.db.QueryRow(ctx, query,
		tx.ID,
		tx.UserID,
		tx.Amount,
		tx.Fee,
		tx.NetAmount,
		tx.Currency,
		tx.Status,
		tx.DestinationAccountID,
		tx.IdempotencyKey,
	).Scan(&tx.CreatedAt, &tx.UpdatedAt, &tx.Version)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.ErrDuplicateRequest
	}
	return err
}

func (r *transactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

func (r *transactionRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE idempotency_key = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, key))
}

// Update persists a mutation with a compare-and-swap on the version column.
// A write against a stale version affects zero rows and is rejected with
// domain.ErrVersionConflict rather than silently overwriting.
func (r *transactionRepo) Update(ctx context.Context, tx *domain.Transaction) error {
	query := `
		UPDATE transactions
		SET
			status = $1,
			provider_payment_id = $2,
			wallet_tx_id = $3,
			failure_reason = $4,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $5 AND version = $6
		RETURNING updated_at, version
	`

	err := r.db.QueryRow(ctx, query,
		tx.Status,
		tx.ProviderPaymentID,
		tx.WalletTxID,
		tx.FailureReason,
		tx.ID,
		tx.Version,
	).Scan(&tx.UpdatedAt, &tx.Version)

	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrVersionConflict
	}
	return err
}

// Delete removes a record that is still PENDING, releasing its idempotency
// key. Records that progressed past PENDING are never deleted.
func (r *transactionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.db.Exec(ctx,
		`DELETE FROM transactions WHERE id = $1 AND status = $2`,
		id, domain.StatusPending,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

func (r *transactionRepo) scanOne(row pgx.Row) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := row.Scan(
		&tx.ID,
		&tx.UserID,
		&tx.Amount,
		&tx.Fee,
		&tx.NetAmount,
		&tx.Currency,
		&tx.Status,
		&tx.ProviderPaymentID,
		&tx.WalletTxID,
		&tx.FailureReason,
		&tx.DestinationAccountID,
		&tx.IdempotencyKey,
		&tx.CreatedAt,
		&tx.UpdatedAt,
		&tx.Version,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}
