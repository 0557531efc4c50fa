package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WithdrawRequest is the external ask. It is consumed once to create a
// Transaction and carried through to the orchestrator; it is never persisted
// on its own.
type WithdrawRequest struct {
	UserID         int64           `json:"user_id"`
	AccountID      uuid.UUID       `json:"account_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	IdempotencyKey string          `json:"-"`
}

func (r *WithdrawRequest) Validate() error {
	if r.UserID <= 0 {
		return errors.New("user_id is required")
	}
	if r.AccountID == uuid.Nil {
		return errors.New("account_id is required")
	}
	if !r.Amount.IsPositive() {
		return errors.New("amount must be positive")
	}
	if r.Amount.Exponent() < -2 {
		return errors.New("amount must have at most 2 decimal places")
	}
	if len(strings.TrimSpace(r.Currency)) != 3 {
		return errors.New("currency must be exactly 3 characters")
	}
	if r.IdempotencyKey == "" {
		return errors.New("idempotency key is required")
	}
	return nil
}

// WithdrawalReceipt is the outcome projection returned to callers. The same
// payload is cached under the idempotency key once the saga finishes, so a
// resubmission replays it byte for byte.
type WithdrawalReceipt struct {
	TransactionID uuid.UUID         `json:"transaction_id"`
	Status        TransactionStatus `json:"status"`
	Amount        decimal.Decimal   `json:"amount"`
	Fee           decimal.Decimal   `json:"fee"`
	NetAmount     decimal.Decimal   `json:"net_amount"`
	Currency      string            `json:"currency"`
	CreatedAt     time.Time         `json:"created_at"`
}
