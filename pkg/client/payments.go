package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"payout-service/config"
	"payout-service/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StatusProcessing is the provider's "accepted, payment in flight" status
// literal; anything else reported on a 2xx response is a provider-side
// rejection.
const StatusProcessing = "Processing"

// PaymentInstruction is the payload sent to the external payment provider.
type PaymentInstruction struct {
	Source      PaymentSource      `json:"source"`
	Destination PaymentDestination `json:"destination"`
	Amount      decimal.Decimal    `json:"amount"`
}

type PaymentSource struct {
	Type              string            `json:"type"`
	SourceInformation SourceInformation `json:"sourceInformation"`
	Account           PaymentAccount    `json:"account"`
}

type SourceInformation struct {
	Name string `json:"name"`
}

type PaymentDestination struct {
	Name    string         `json:"name"`
	Account PaymentAccount `json:"account"`
}

type PaymentAccount struct {
	AccountNumber string `json:"accountNumber"`
	Currency      string `json:"currency"`
	RoutingNumber string `json:"routingNumber"`
}

// PaymentResult is the provider's response to a payment submission.
type PaymentResult struct {
	RequestInfo *RequestInfo `json:"requestInfo"`
	PaymentInfo *PaymentInfo `json:"paymentInfo"`
}

type RequestInfo struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

type PaymentInfo struct {
	ID       string          `json:"id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// Accepted reports whether the provider accepted the payment for processing.
// The status comparison is case-insensitive.
func (r *PaymentResult) Accepted() bool {
	return r.RequestInfo != nil && strings.EqualFold(r.RequestInfo.Status, StatusProcessing)
}

// FailureReason extracts the provider-supplied error text, falling back to a
// fixed reason when none is supplied.
func (r *PaymentResult) FailureReason() string {
	if r.RequestInfo != nil && r.RequestInfo.Error != "" {
		return r.RequestInfo.Error
	}
	return "Unknown payment status error"
}

// PaymentsClient submits payment instructions to the external provider.
type PaymentsClient struct {
	baseURL    string
	httpClient *http.Client
	guard      *Guard
	logger     *zap.Logger
}

func NewPaymentsClient(cfg config.ClientsConfig, res config.ResilienceConfig, logger *zap.Logger) *PaymentsClient {
	return &PaymentsClient{
		baseURL: cfg.PaymentsBaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		guard:  NewGuard("payments", res, logger),
		logger: logger,
	}
}

// CreatePayment submits the instruction and returns the provider's verdict.
// Transport failures, 5xx responses and an open circuit come back as a
// domain.ExternalServiceError after the guard gives up.
func (c *PaymentsClient) CreatePayment(ctx context.Context, instruction *PaymentInstruction) (*PaymentResult, error) {
	c.logger.Info("creating payment",
		zap.String("amount", instruction.Amount.String()),
		zap.String("currency", instruction.Destination.Account.Currency))

	payload, err := json.Marshal(instruction)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment instruction: %w", err)
	}

	url := c.baseURL + "/payments"

	res, err := c.guard.Do(ctx, func(ctx context.Context) (*httpResult, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

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

	if len(res.body) == 0 {
		return nil, domain.NewExternalServiceError("payments", "empty response from payment provider", nil)
	}

	var result PaymentResult
	if err := json.Unmarshal(res.body, &result); err != nil {
		return nil, domain.NewExternalServiceError("payments", "invalid payment response", err)
	}

	status := "unknown"
	paymentID := "unknown"
	if result.RequestInfo != nil {
		status = result.RequestInfo.Status
	}
	if result.PaymentInfo != nil {
		paymentID = result.PaymentInfo.ID
	}
	c.logger.Info("payment created",
		zap.String("provider_status", status),
		zap.String("payment_id", paymentID))

	return &result, nil
}
