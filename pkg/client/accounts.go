package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"payout-service/config"
	"payout-service/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AccountsClient resolves a destination account id to bank routing details
// via the account directory service.
type AccountsClient struct {
	baseURL    string
	httpClient *http.Client
	guard      *Guard
	logger     *zap.Logger
}

func NewAccountsClient(cfg config.ClientsConfig, res config.ResilienceConfig, logger *zap.Logger) *AccountsClient {
	return &AccountsClient{
		baseURL: cfg.AccountsBaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		guard:  NewGuard("accounts", res, logger),
		logger: logger,
	}
}

// Resolve fetches the bank details behind an account id.
// domain.ErrAccountNotFound means the directory has no such account.
func (c *AccountsClient) Resolve(ctx context.Context, accountID uuid.UUID) (*domain.BankAccountDetails, error) {
	c.logger.Info("resolving destination account", zap.String("account_id", accountID.String()))

	url := fmt.Sprintf("%s/accounts/%s", c.baseURL, accountID)

	res, err := c.guard.Do(ctx, func(ctx context.Context) (*httpResult, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

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
	})
	if err != nil {
		return nil, err
	}

	if res.status == http.StatusNotFound {
		c.logger.Warn("destination account not found", zap.String("account_id", accountID.String()))
		return nil, domain.ErrAccountNotFound
	}
	if res.status != http.StatusOK {
		return nil, domain.NewExternalServiceError("accounts",
			fmt.Sprintf("unexpected status %d resolving account", res.status), nil)
	}

	var details domain.BankAccountDetails
	if err := json.Unmarshal(res.body, &details); err != nil {
		return nil, domain.NewExternalServiceError("accounts", "invalid account response", err)
	}

	c.logger.Info("destination account resolved",
		zap.String("account_id", accountID.String()),
		zap.String("holder_name", details.HolderName))

	return &details, nil
}
