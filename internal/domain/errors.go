package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientFunds is a business failure surfaced synchronously on
	// the submission path, before any record is created.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrWalletNotFound means the ledger has no wallet for the user.
	ErrWalletNotFound = errors.New("user wallet not found")

	// ErrAccountNotFound means the destination account id could not be
	// resolved to bank details.
	ErrAccountNotFound = errors.New("destination account not found")

	// ErrTransactionNotFound is returned by the store for an unknown id.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrDuplicateRequest is raised when a create collides with an existing
	// transaction under the same idempotency key.
	ErrDuplicateRequest = errors.New("duplicate withdrawal request")

	// ErrVersionConflict is raised when an update targets a stale version of
	// a transaction record.
	ErrVersionConflict = errors.New("transaction version conflict")

	// ErrInvalidTransition guards the forward-only state machine.
	ErrInvalidTransition = errors.New("invalid transaction status transition")

	// ErrInvalidCredentials covers failed logins.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserExists is raised when registering an already-taken username.
	ErrUserExists = errors.New("username already exists")
)

// ExternalServiceError marks a failure of an upstream collaborator (ledger,
// payment provider, account directory) after the client's retries and
// circuit breaker have been exhausted. The orchestrator matches on it to
// decide between FAILED transactions and caller errors.
type ExternalServiceError struct {
	Service string
	Message string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Service, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Service, e.Message)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// NewExternalServiceError wraps err as a failure of the named service.
func NewExternalServiceError(service, message string, err error) *ExternalServiceError {
	return &ExternalServiceError{Service: service, Message: message, Err: err}
}
