package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	StatusPending    TransactionStatus = "PENDING"
	StatusProcessing TransactionStatus = "PROCESSING"
	StatusCompleted  TransactionStatus = "COMPLETED"
	StatusFailed     TransactionStatus = "FAILED"
)

// IsTerminal reports whether no further transitions are permitted.
func (s TransactionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo enforces the forward-only state machine:
// PENDING -> PROCESSING -> (COMPLETED | FAILED).
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// Transaction is the authoritative record of a withdrawal. It is created in
// PENDING by the front door and mutated only by the orchestrator; every
// persisted mutation bumps Version.
type Transaction struct {
	ID                   uuid.UUID         `json:"id" db:"id"`
	UserID               int64             `json:"user_id" db:"user_id"`
	Amount               decimal.Decimal   `json:"amount" db:"amount"`
	Fee                  decimal.Decimal   `json:"fee" db:"fee"`
	NetAmount            decimal.Decimal   `json:"net_amount" db:"net_amount"`
	Currency             string            `json:"currency" db:"currency"`
	Status               TransactionStatus `json:"status" db:"status"`
	ProviderPaymentID    *string           `json:"provider_payment_id,omitempty" db:"provider_payment_id"`
	WalletTxID           *int64            `json:"wallet_tx_id,omitempty" db:"wallet_tx_id"`
	FailureReason        *string           `json:"failure_reason,omitempty" db:"failure_reason"`
	DestinationAccountID uuid.UUID         `json:"destination_account_id" db:"destination_account_id"`
	IdempotencyKey       string            `json:"idempotency_key" db:"idempotency_key"`
	CreatedAt            time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at" db:"updated_at"`
	Version              int64             `json:"version" db:"version"`
}

// MarkProcessing moves the transaction into PROCESSING.
func (t *Transaction) MarkProcessing() error {
	if !t.Status.CanTransitionTo(StatusProcessing) {
		return ErrInvalidTransition
	}
	t.Status = StatusProcessing
	return nil
}

// MarkCompleted moves the transaction into the COMPLETED terminal state.
func (t *Transaction) MarkCompleted() error {
	if !t.Status.CanTransitionTo(StatusCompleted) {
		return ErrInvalidTransition
	}
	t.Status = StatusCompleted
	return nil
}

// MarkFailed moves the transaction into FAILED and records the reason.
// FailureReason is set if and only if the transaction is FAILED.
func (t *Transaction) MarkFailed(reason string) error {
	if !t.Status.CanTransitionTo(StatusFailed) {
		return ErrInvalidTransition
	}
	t.Status = StatusFailed
	t.FailureReason = &reason
	return nil
}

// Receipt builds the public outcome projection handed to callers and cached
// under the idempotency key.
func (t *Transaction) Receipt() *WithdrawalReceipt {
	return &WithdrawalReceipt{
		TransactionID: t.ID,
		Status:        t.Status,
		Amount:        t.Amount,
		Fee:           t.Fee,
		NetAmount:     t.NetAmount,
		Currency:      t.Currency,
		CreatedAt:     t.CreatedAt,
	}
}
