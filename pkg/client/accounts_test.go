package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"payout-service/config"
	"payout-service/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAccountsClient(baseURL string) *AccountsClient {
	return NewAccountsClient(
		config.ClientsConfig{AccountsBaseURL: baseURL, Timeout: 2 * time.Second},
		fastResilience(),
		zap.NewNop(),
	)
}

func TestAccountsClient_Resolve(t *testing.T) {
	accountID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, fmt.Sprintf("/accounts/%s", accountID), r.URL.Path)
		w.Write([]byte(`{
			"account_holder_name": "TONY STARK",
			"account_number": "1885226711",
			"routing_number": "211927207",
			"currency": "USD"
		}`))
	}))
	defer srv.Close()

	c := newAccountsClient(srv.URL)

	details, err := c.Resolve(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, "TONY STARK", details.HolderName)
	assert.Equal(t, "1885226711", details.AccountNumber)
	assert.Equal(t, "211927207", details.RoutingNumber)
	assert.Equal(t, "USD", details.Currency)
}

func TestAccountsClient_Resolve_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newAccountsClient(srv.URL)

	_, err := c.Resolve(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestAccountsClient_Resolve_InvalidBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := newAccountsClient(srv.URL)

	_, err := c.Resolve(context.Background(), uuid.New())
	var extErr *domain.ExternalServiceError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, "accounts", extErr.Service)
}
