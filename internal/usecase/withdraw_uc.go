package usecase

import (
	"context"
	"errors"
	"fmt"

	"payout-service/config"
	"payout-service/internal/domain"
	"payout-service/internal/repository"
	"payout-service/pkg/client"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// WalletClient is the ledger capability the orchestrator depends on.
type WalletClient interface {
	GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error)
	Debit(ctx context.Context, userID int64, amount decimal.Decimal) (int64, error)
}

// PaymentsClient submits a payment instruction to the external provider.
type PaymentsClient interface {
	CreatePayment(ctx context.Context, instruction *client.PaymentInstruction) (*client.PaymentResult, error)
}

// AccountsClient resolves destination account ids to bank details.
type AccountsClient interface {
	Resolve(ctx context.Context, accountID uuid.UUID) (*domain.BankAccountDetails, error)
}

// OutcomeCache receives the finished receipt keyed by idempotency key.
type OutcomeCache interface {
	Get(ctx context.Context, key string) (*domain.WithdrawalReceipt, bool)
	Put(ctx context.Context, key string, receipt *domain.WithdrawalReceipt)
}

// WithdrawUsecase owns the withdrawal saga: fee computation, funds check,
// state transitions, the three external client calls, transaction-store
// writes and the final cache publish.
type WithdrawUsecase struct {
	txRepo   repository.TransactionRepository
	wallet   WalletClient
	payments PaymentsClient
	accounts AccountsClient
	cache    OutcomeCache
	cfg      config.WithdrawalConfig
	logger   *zap.Logger
}

func NewWithdrawUsecase(
	txRepo repository.TransactionRepository,
	wallet WalletClient,
	payments PaymentsClient,
	accounts AccountsClient,
	cache OutcomeCache,
	cfg config.WithdrawalConfig,
	logger *zap.Logger,
) *WithdrawUsecase {
	return &WithdrawUsecase{
		txRepo:   txRepo,
		wallet:   wallet,
		payments: payments,
		accounts: accounts,
		cache:    cache,
		cfg:      cfg,
		logger:   logger,
	}
}

// CreateInitialTransaction is the front-door half of the saga: it validates
// the request, checks funds, and writes the PENDING record. No wallet or
// payment call happens here. Precondition failures (unknown wallet,
// insufficient funds) surface synchronously and leave no record behind.
func (uc *WithdrawUsecase) CreateInitialTransaction(ctx context.Context, req *domain.WithdrawRequest) (*domain.Transaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	fee := uc.calculateFee(req.Amount)
	netAmount := req.Amount.Sub(fee)

	uc.logger.Info("starting withdrawal",
		zap.Int64("user_id", req.UserID),
		zap.String("amount", req.Amount.String()),
		zap.String("currency", req.Currency),
		zap.String("idempotency_key", req.IdempotencyKey))

	if err := uc.ensureSufficientFunds(ctx, req.UserID, req.Amount); err != nil {
		return nil, err
	}

	tx := &domain.Transaction{
		ID:                   uuid.New(),
		UserID:               req.UserID,
		Amount:               req.Amount,
		Fee:                  fee,
		NetAmount:            netAmount,
		Currency:             req.Currency,
		Status:               domain.StatusPending,
		DestinationAccountID: req.AccountID,
		IdempotencyKey:       req.IdempotencyKey,
	}

	if err := uc.txRepo.Create(ctx, tx); err != nil {
		if errors.Is(err, domain.ErrDuplicateRequest) {
			uc.logger.Info("concurrent duplicate withdrawal request",
				zap.String("idempotency_key", req.IdempotencyKey))
			return nil, err
		}
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	uc.logger.Info("created PENDING transaction",
		zap.String("transaction_id", tx.ID.String()),
		zap.String("fee", fee.String()),
		zap.String("net_amount", netAmount.String()))

	return tx, nil
}

// ExecuteWithdrawal runs the saga for an already-PENDING transaction. Each
// step persists before the next begins, so per-transaction writes are
// strictly ordered. Business failures end in a FAILED record and a cached
// receipt, not an error; only unexpected failures (stale version, store
// write errors, precondition races) return an error to the worker.
func (uc *WithdrawUsecase) ExecuteWithdrawal(ctx context.Context, req *domain.WithdrawRequest, tx *domain.Transaction) (*domain.WithdrawalReceipt, error) {
	if err := uc.ensureSufficientFunds(ctx, req.UserID, req.Amount); err != nil {
		return nil, err
	}

	if err := tx.MarkProcessing(); err != nil {
		return nil, err
	}
	if err := uc.txRepo.Update(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to persist PROCESSING transition: %w", err)
	}

	// Debit the full requested amount; the fee stays with the company.
	walletTxID, err := uc.wallet.Debit(ctx, req.UserID, req.Amount)
	if err != nil {
		uc.logger.Error("wallet debit failed",
			zap.String("transaction_id", tx.ID.String()),
			zap.Error(err))
		return uc.failTransaction(ctx, tx, "wallet debit failed: "+err.Error())
	}

	tx.WalletTxID = &walletTxID
	if err := uc.txRepo.Update(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to persist wallet debit reference: %w", err)
	}
	uc.logger.Info("wallet debited",
		zap.String("transaction_id", tx.ID.String()),
		zap.Int64("wallet_tx_id", walletTxID))

	// The wallet has already been debited at this point. A failure from here
	// on leaves the debit in place; see the compensating-transaction note in
	// DESIGN.md.
	destination, err := uc.accounts.Resolve(ctx, tx.DestinationAccountID)
	if err != nil {
		uc.logger.Error("destination account resolution failed",
			zap.String("transaction_id", tx.ID.String()),
			zap.String("account_id", tx.DestinationAccountID.String()),
			zap.Error(err))
		return uc.failTransaction(ctx, tx, "destination account resolution failed: "+err.Error())
	}

	result, err := uc.payments.CreatePayment(ctx, uc.buildInstruction(destination, tx.NetAmount))
	if err != nil {
		uc.logger.Error("payment submission failed",
			zap.String("transaction_id", tx.ID.String()),
			zap.Error(err))
		return uc.failTransaction(ctx, tx, err.Error())
	}

	if result.PaymentInfo != nil {
		providerID := result.PaymentInfo.ID
		tx.ProviderPaymentID = &providerID
	}

	if result.Accepted() {
		if err := tx.MarkCompleted(); err != nil {
			return nil, err
		}
		uc.logger.Info("payment accepted, transaction COMPLETED",
			zap.String("transaction_id", tx.ID.String()))
	} else {
		reason := result.FailureReason()
		if err := tx.MarkFailed(reason); err != nil {
			return nil, err
		}
		uc.logger.Warn("payment rejected by provider",
			zap.String("transaction_id", tx.ID.String()),
			zap.String("reason", reason))
	}

	if err := uc.txRepo.Update(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to persist terminal state: %w", err)
	}

	receipt := tx.Receipt()
	uc.cache.Put(ctx, req.IdempotencyKey, receipt)

	uc.logger.Info("withdrawal finished",
		zap.String("transaction_id", tx.ID.String()),
		zap.String("status", string(tx.Status)))

	return receipt, nil
}

// DiscardTransaction removes a PENDING record that never reached the worker
// pool, so its idempotency key stays usable for a resubmission. Nothing has
// been debited at that point.
func (uc *WithdrawUsecase) DiscardTransaction(ctx context.Context, id uuid.UUID) error {
	uc.logger.Info("discarding unqueued transaction", zap.String("transaction_id", id.String()))
	return uc.txRepo.Delete(ctx, id)
}

// GetTransaction returns a transaction's public projection by id.
func (uc *WithdrawUsecase) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return uc.txRepo.GetByID(ctx, id)
}

// GetByIdempotencyKey returns the transaction created under an idempotency
// key, if any.
func (uc *WithdrawUsecase) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	return uc.txRepo.GetByIdempotencyKey(ctx, key)
}

func (uc *WithdrawUsecase) ensureSufficientFunds(ctx context.Context, userID int64, required decimal.Decimal) error {
	balance, err := uc.wallet.GetBalance(ctx, userID)
	if err != nil {
		return err
	}

	if balance.LessThan(required) {
		uc.logger.Warn("insufficient funds",
			zap.Int64("user_id", userID),
			zap.String("balance", balance.String()),
			zap.String("required", required.String()))
		return fmt.Errorf("%w: balance %s, required %s",
			domain.ErrInsufficientFunds, balance.String(), required.String())
	}

	return nil
}

// failTransaction moves the transaction into FAILED, persists it and caches
// the failed receipt. The wallet debit, if one happened, is not reversed.
func (uc *WithdrawUsecase) failTransaction(ctx context.Context, tx *domain.Transaction, reason string) (*domain.WithdrawalReceipt, error) {
	if err := tx.MarkFailed(reason); err != nil {
		return nil, err
	}
	if err := uc.txRepo.Update(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to persist FAILED state: %w", err)
	}

	receipt := tx.Receipt()
	uc.cache.Put(ctx, tx.IdempotencyKey, receipt)
	return receipt, nil
}

// calculateFee applies the configured rate, rounded half-up to 2 decimal
// places.
func (uc *WithdrawUsecase) calculateFee(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(uc.cfg.FeeRate).Round(2)
}

func (uc *WithdrawUsecase) buildInstruction(destination *domain.BankAccountDetails, netAmount decimal.Decimal) *client.PaymentInstruction {
	company := uc.cfg.CompanyAccount

	return &client.PaymentInstruction{
		Source: client.PaymentSource{
			Type:              "COMPANY",
			SourceInformation: client.SourceInformation{Name: company.Name},
			Account: client.PaymentAccount{
				AccountNumber: company.AccountNumber,
				Currency:      company.Currency,
				RoutingNumber: company.RoutingNumber,
			},
		},
		Destination: client.PaymentDestination{
			Name: destination.HolderName,
			Account: client.PaymentAccount{
				AccountNumber: destination.AccountNumber,
				Currency:      destination.Currency,
				RoutingNumber: destination.RoutingNumber,
			},
		},
		Amount: netAmount,
	}
}
