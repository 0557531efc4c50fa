package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"payout-service/internal/domain"
	"payout-service/internal/middleware"
	"payout-service/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type withdrawService interface {
	CreateInitialTransaction(ctx context.Context, req *domain.WithdrawRequest) (*domain.Transaction, error)
	DiscardTransaction(ctx context.Context, id uuid.UUID) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error)
}

type enqueuer interface {
	Enqueue(req *domain.WithdrawRequest, tx *domain.Transaction) error
}

// WithdrawalHandler is the request front door: idempotency-cache fast path,
// PENDING record creation, and the hand-off to the background dispatcher.
type WithdrawalHandler struct {
	service    withdrawService
	cache      usecase.OutcomeCache
	dispatcher enqueuer
	logger     *zap.Logger
}

func NewWithdrawalHandler(service withdrawService, cache usecase.OutcomeCache, dispatcher enqueuer, logger *zap.Logger) *WithdrawalHandler {
	return &WithdrawalHandler{
		service:    service,
		cache:      cache,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// HandleWithdraw accepts a withdrawal submission. A replay under a finished
// idempotency key returns the cached outcome with 201; a first submission
// returns 202 with the PENDING projection.
func (h *WithdrawalHandler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	idempotencyKey := r.Header.Get("Idempotency-Key")
	if idempotencyKey == "" {
		h.sendError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Idempotency-Key header is required")
		return
	}

	var req domain.WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode withdrawal request", zap.Error(err))
		h.sendError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	req.IdempotencyKey = idempotencyKey

	if err := req.Validate(); err != nil {
		h.sendError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	// The body's user_id must be the authenticated principal.
	if principal, ok := middleware.UserID(ctx); ok {
		if principal != strconv.FormatInt(req.UserID, 10) {
			h.logger.Warn("user_id does not match authenticated principal",
				zap.String("principal", principal),
				zap.Int64("user_id", req.UserID))
			h.sendError(w, http.StatusForbidden, "FORBIDDEN", "user_id does not match the authenticated user")
			return
		}
	}

	h.logger.Info("withdrawal request received",
		zap.Int64("user_id", req.UserID),
		zap.String("amount", req.Amount.String()),
		zap.String("idempotency_key", idempotencyKey))

	if receipt, ok := h.cache.Get(ctx, idempotencyKey); ok {
		h.logger.Info("returning cached receipt",
			zap.String("idempotency_key", idempotencyKey),
			zap.String("status", string(receipt.Status)))
		h.sendJSON(w, http.StatusCreated, receipt)
		return
	}

	tx, err := h.service.CreateInitialTransaction(ctx, &req)
	if err != nil {
		h.handleSubmitError(ctx, w, &req, err)
		return
	}

	if err := h.dispatcher.Enqueue(&req, tx); err != nil {
		h.logger.Error("failed to enqueue withdrawal",
			zap.String("transaction_id", tx.ID.String()),
			zap.Error(err))

		// The saga never started and nothing was debited. Remove the PENDING
		// record so the idempotency key stays usable; otherwise every retry
		// would replay a record no worker will ever finish.
		if discardErr := h.service.DiscardTransaction(ctx, tx.ID); discardErr != nil {
			h.logger.Error("failed to discard unqueued transaction",
				zap.String("transaction_id", tx.ID.String()),
				zap.Error(discardErr))
		}

		h.sendError(w, http.StatusServiceUnavailable, "SERVICE_BUSY", "withdrawal queue is full, try again later")
		return
	}

	h.sendJSON(w, http.StatusAccepted, tx.Receipt())
}

// HandleGetWithdrawal returns a transaction's public projection by id.
func (h *WithdrawalHandler) HandleGetWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid transaction id")
		return
	}

	tx, err := h.service.GetTransaction(r.Context(), id)
	if errors.Is(err, domain.ErrTransactionNotFound) {
		h.sendError(w, http.StatusNotFound, "NOT_FOUND", "transaction not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load transaction", zap.String("transaction_id", id.String()), zap.Error(err))
		h.sendError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An unexpected error occurred")
		return
	}

	h.sendJSON(w, http.StatusOK, tx.Receipt())
}

func (h *WithdrawalHandler) handleSubmitError(ctx context.Context, w http.ResponseWriter, req *domain.WithdrawRequest, err error) {
	var extErr *domain.ExternalServiceError

	switch {
	case errors.Is(err, domain.ErrDuplicateRequest):
		// Lost the creation race: another submission under the same key
		// already holds the record. Replay that record's projection.
		existing, lookupErr := h.service.GetByIdempotencyKey(ctx, req.IdempotencyKey)
		if lookupErr != nil {
			h.logger.Error("duplicate request but existing transaction lookup failed",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.Error(lookupErr))
			h.sendError(w, http.StatusConflict, "IDEMPOTENT_CONFLICT", "request already in flight")
			return
		}
		h.sendJSON(w, http.StatusAccepted, existing.Receipt())

	case errors.Is(err, domain.ErrInsufficientFunds):
		h.logger.Warn("insufficient funds", zap.Int64("user_id", req.UserID), zap.Error(err))
		h.sendError(w, http.StatusBadRequest, "INSUFFICIENT_FUNDS", err.Error())

	case errors.Is(err, domain.ErrWalletNotFound):
		h.sendError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())

	case errors.As(err, &extErr):
		h.logger.Error("external service error on submission", zap.Error(err))
		h.sendError(w, http.StatusBadGateway, "EXTERNAL_SERVICE_ERROR",
			"An error occurred while communicating with external services")

	default:
		h.logger.Error("unexpected error creating withdrawal", zap.Error(err))
		h.sendError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An unexpected error occurred")
	}
}

func (h *WithdrawalHandler) sendJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

func (h *WithdrawalHandler) sendError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    code,
		"message": message,
	})
}
