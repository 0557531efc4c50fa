package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"payout-service/config"
	"payout-service/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// WalletClient talks to the internal ledger: balance queries and atomic
// debits against a user's wallet.
type WalletClient struct {
	baseURL    string
	httpClient *http.Client
	guard      *Guard
	logger     *zap.Logger
}

func NewWalletClient(cfg config.ClientsConfig, res config.ResilienceConfig, logger *zap.Logger) *WalletClient {
	return &WalletClient{
		baseURL: cfg.WalletBaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		guard:  NewGuard("wallet", res, logger),
		logger: logger,
	}
}

type balanceResponse struct {
	UserID  int64           `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
}

type walletTransactionRequest struct {
	UserID int64           `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

type walletTransactionResponse struct {
	WalletTransactionID *int64          `json:"wallet_transaction_id"`
	Amount              decimal.Decimal `json:"amount"`
	UserID              int64           `json:"user_id"`
}

// GetBalance returns the user's current available balance.
// domain.ErrWalletNotFound means the ledger has no wallet for the user.
func (c *WalletClient) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	c.logger.Info("fetching wallet balance", zap.Int64("user_id", userID))

	url := fmt.Sprintf("%s/wallets/balance?user_id=%d", c.baseURL, userID)

	res, err := c.guard.Do(ctx, func(ctx context.Context) (*httpResult, error) {
		return c.get(ctx, url)
	})
	if err != nil {
		return decimal.Zero, err
	}

	if res.status == http.StatusNotFound {
		c.logger.Warn("wallet not found", zap.Int64("user_id", userID))
		return decimal.Zero, domain.ErrWalletNotFound
	}
	if res.status != http.StatusOK {
		return decimal.Zero, domain.NewExternalServiceError("wallet",
			fmt.Sprintf("unexpected status %d fetching balance", res.status), nil)
	}

	var body balanceResponse
	if err := json.Unmarshal(res.body, &body); err != nil {
		return decimal.Zero, domain.NewExternalServiceError("wallet", "invalid balance response", err)
	}

	c.logger.Info("wallet balance retrieved",
		zap.Int64("user_id", userID),
		zap.String("balance", body.Balance.String()))

	return body.Balance, nil
}

// Debit creates a wallet transaction debiting amount from the user and
// returns the ledger's opaque debit reference.
func (c *WalletClient) Debit(ctx context.Context, userID int64, amount decimal.Decimal) (int64, error) {
	c.logger.Info("creating wallet debit",
		zap.Int64("user_id", userID),
		zap.String("amount", amount.String()))

	payload, err := json.Marshal(walletTransactionRequest{
		UserID: userID,
		Amount: amount.Neg(),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal wallet transaction: %w", err)
	}

	url := c.baseURL + "/wallets/transactions"

	res, err := c.guard.Do(ctx, func(ctx context.Context) (*httpResult, error) {
		return c.post(ctx, url, payload)
	})
	if err != nil {
		return 0, err
	}

	if res.status == http.StatusNotFound {
		c.logger.Warn("wallet not found for debit", zap.Int64("user_id", userID))
		return 0, domain.ErrWalletNotFound
	}
	if res.status != http.StatusOK && res.status != http.StatusCreated {
		return 0, domain.NewExternalServiceError("wallet",
			fmt.Sprintf("unexpected status %d creating debit", res.status), nil)
	}

	var body walletTransactionResponse
	if err := json.Unmarshal(res.body, &body); err != nil {
		return 0, domain.NewExternalServiceError("wallet", "invalid debit response", err)
	}
	if body.WalletTransactionID == nil {
		return 0, domain.NewExternalServiceError("wallet", "debit response missing transaction id", nil)
	}

	c.logger.Info("wallet debited",
		zap.Int64("user_id", userID),
		zap.Int64("wallet_tx_id", *body.WalletTransactionID))

	return *body.WalletTransactionID, nil
}

func (c *WalletClient) get(ctx context.Context, url string) (*httpResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.send(req)
}

func (c *WalletClient) post(ctx context.Context, url string, payload []byte) (*httpResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(req)
}

func (c *WalletClient) send(req *http.Request) (*httpResult, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &httpResult{status: resp.StatusCode, body: body}, nil
}
