package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"payout-service/internal/domain"
	"payout-service/internal/middleware"
	"payout-service/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockWithdrawService struct {
	mock.Mock
}

func (m *MockWithdrawService) CreateInitialTransaction(ctx context.Context, req *domain.WithdrawRequest) (*domain.Transaction, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockWithdrawService) DiscardTransaction(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockWithdrawService) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockWithdrawService) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string) (*domain.WithdrawalReceipt, bool) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*domain.WithdrawalReceipt), args.Bool(1)
}

func (m *MockCache) Put(ctx context.Context, key string, receipt *domain.WithdrawalReceipt) {
	m.Called(ctx, key, receipt)
}

type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) Enqueue(req *domain.WithdrawRequest, tx *domain.Transaction) error {
	args := m.Called(req, tx)
	return args.Error(0)
}

type handlerFixture struct {
	h          *WithdrawalHandler
	service    *MockWithdrawService
	cache      *MockCache
	dispatcher *MockEnqueuer
}

func newHandlerFixture() *handlerFixture {
	f := &handlerFixture{
		service:    new(MockWithdrawService),
		cache:      new(MockCache),
		dispatcher: new(MockEnqueuer),
	}
	f.h = NewWithdrawalHandler(f.service, f.cache, f.dispatcher, zap.NewNop())
	return f
}

func withdrawBody(t *testing.T, accountID uuid.UUID) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"user_id":    1000,
		"account_id": accountID,
		"amount":     "1000.00",
		"currency":   "USD",
	})
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func pendingTx(accountID uuid.UUID) *domain.Transaction {
	return &domain.Transaction{
		ID:                   uuid.New(),
		UserID:               1000,
		Amount:               decimal.RequireFromString("1000.00"),
		Fee:                  decimal.RequireFromString("100.00"),
		NetAmount:            decimal.RequireFromString("900.00"),
		Currency:             "USD",
		Status:               domain.StatusPending,
		DestinationAccountID: accountID,
		IdempotencyKey:       "key-123",
	}
}

func postWithdraw(f *handlerFixture, body *bytes.Buffer, idempotencyKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/withdrawals", body)
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	rec := httptest.NewRecorder()
	f.h.HandleWithdraw(rec, req)
	return rec
}

func TestHandleWithdraw_FreshSubmissionReturns202(t *testing.T) {
	f := newHandlerFixture()
	accountID := uuid.New()
	tx := pendingTx(accountID)

	f.cache.On("Get", mock.Anything, "key-123").Return(nil, false)
	f.service.On("CreateInitialTransaction", mock.Anything, mock.MatchedBy(func(r *domain.WithdrawRequest) bool {
		return r.IdempotencyKey == "key-123" && r.UserID == 1000
	})).Return(tx, nil)
	f.dispatcher.On("Enqueue", mock.Anything, tx).Return(nil)

	rec := postWithdraw(f, withdrawBody(t, accountID), "key-123")

	assert.Equal(t, http.StatusAccepted, rec.Code)

	var receipt domain.WithdrawalReceipt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	assert.Equal(t, tx.ID, receipt.TransactionID)
	assert.Equal(t, domain.StatusPending, receipt.Status)

	f.dispatcher.AssertExpectations(t)
}

func TestHandleWithdraw_CachedReplayReturns201(t *testing.T) {
	f := newHandlerFixture()
	accountID := uuid.New()
	cached := &domain.WithdrawalReceipt{
		TransactionID: uuid.New(),
		Status:        domain.StatusCompleted,
		Amount:        decimal.RequireFromString("1000.00"),
		Fee:           decimal.RequireFromString("100.00"),
		NetAmount:     decimal.RequireFromString("900.00"),
		Currency:      "USD",
	}

	f.cache.On("Get", mock.Anything, "key-123").Return(cached, true)

	rec := postWithdraw(f, withdrawBody(t, accountID), "key-123")

	assert.Equal(t, http.StatusCreated, rec.Code)

	var receipt domain.WithdrawalReceipt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	assert.Equal(t, cached.TransactionID, receipt.TransactionID)
	assert.Equal(t, domain.StatusCompleted, receipt.Status)

	f.service.AssertNotCalled(t, "CreateInitialTransaction", mock.Anything, mock.Anything)
	f.dispatcher.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestHandleWithdraw_MissingIdempotencyKey(t *testing.T) {
	f := newHandlerFixture()

	rec := postWithdraw(f, withdrawBody(t, uuid.New()), "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
	f.cache.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestHandleWithdraw_InvalidBody(t *testing.T) {
	f := newHandlerFixture()

	rec := postWithdraw(f, bytes.NewBufferString("{not json"), "key-123")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
}

func TestHandleWithdraw_InvalidAmountPrecision(t *testing.T) {
	f := newHandlerFixture()
	body, err := json.Marshal(map[string]interface{}{
		"user_id":    1000,
		"account_id": uuid.New(),
		"amount":     "10.005",
		"currency":   "USD",
	})
	require.NoError(t, err)

	rec := postWithdraw(f, bytes.NewBuffer(body), "key-123")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "decimal places")
}

func TestHandleWithdraw_InsufficientFunds(t *testing.T) {
	f := newHandlerFixture()

	f.cache.On("Get", mock.Anything, "key-123").Return(nil, false)
	f.service.On("CreateInitialTransaction", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: balance 500.00, required 1000.00", domain.ErrInsufficientFunds))

	rec := postWithdraw(f, withdrawBody(t, uuid.New()), "key-123")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INSUFFICIENT_FUNDS")
	f.dispatcher.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestHandleWithdraw_DuplicateKeyReplaysExistingTransaction(t *testing.T) {
	f := newHandlerFixture()
	accountID := uuid.New()
	existing := pendingTx(accountID)
	existing.Status = domain.StatusProcessing

	f.cache.On("Get", mock.Anything, "key-123").Return(nil, false)
	f.service.On("CreateInitialTransaction", mock.Anything, mock.Anything).
		Return(nil, domain.ErrDuplicateRequest)
	f.service.On("GetByIdempotencyKey", mock.Anything, "key-123").Return(existing, nil)

	rec := postWithdraw(f, withdrawBody(t, accountID), "key-123")

	assert.Equal(t, http.StatusAccepted, rec.Code)

	var receipt domain.WithdrawalReceipt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	assert.Equal(t, existing.ID, receipt.TransactionID)
	f.dispatcher.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestHandleWithdraw_DuplicateKeyLookupFailureReturns409(t *testing.T) {
	f := newHandlerFixture()

	f.cache.On("Get", mock.Anything, "key-123").Return(nil, false)
	f.service.On("CreateInitialTransaction", mock.Anything, mock.Anything).
		Return(nil, domain.ErrDuplicateRequest)
	f.service.On("GetByIdempotencyKey", mock.Anything, "key-123").
		Return(nil, domain.ErrTransactionNotFound)

	rec := postWithdraw(f, withdrawBody(t, uuid.New()), "key-123")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "IDEMPOTENT_CONFLICT")
}

func TestHandleWithdraw_ExternalServiceErrorReturns502(t *testing.T) {
	f := newHandlerFixture()

	f.cache.On("Get", mock.Anything, "key-123").Return(nil, false)
	f.service.On("CreateInitialTransaction", mock.Anything, mock.Anything).
		Return(nil, domain.NewExternalServiceError("wallet", "service unavailable", nil))

	rec := postWithdraw(f, withdrawBody(t, uuid.New()), "key-123")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "EXTERNAL_SERVICE_ERROR")
}

func TestHandleWithdraw_QueueFullReturns503AndDiscardsRecord(t *testing.T) {
	f := newHandlerFixture()
	accountID := uuid.New()
	tx := pendingTx(accountID)

	f.cache.On("Get", mock.Anything, "key-123").Return(nil, false)
	f.service.On("CreateInitialTransaction", mock.Anything, mock.Anything).Return(tx, nil)
	f.dispatcher.On("Enqueue", mock.Anything, tx).Return(usecase.ErrQueueFull)
	f.service.On("DiscardTransaction", mock.Anything, tx.ID).Return(nil)

	rec := postWithdraw(f, withdrawBody(t, accountID), "key-123")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "SERVICE_BUSY")
	f.service.AssertCalled(t, "DiscardTransaction", mock.Anything, tx.ID)
}

// A rejected enqueue must not burn the idempotency key: the PENDING record is
// discarded, so the client's retry creates a fresh transaction and gets a
// live saga instead of replaying a record no worker will ever finish.
func TestHandleWithdraw_RetryAfterQueueFullStartsFreshSaga(t *testing.T) {
	f := newHandlerFixture()
	accountID := uuid.New()
	first := pendingTx(accountID)
	second := pendingTx(accountID)

	f.cache.On("Get", mock.Anything, "key-123").Return(nil, false)
	f.service.On("CreateInitialTransaction", mock.Anything, mock.Anything).Return(first, nil).Once()
	f.service.On("CreateInitialTransaction", mock.Anything, mock.Anything).Return(second, nil).Once()
	f.dispatcher.On("Enqueue", mock.Anything, first).Return(usecase.ErrQueueFull)
	f.service.On("DiscardTransaction", mock.Anything, first.ID).Return(nil)
	f.dispatcher.On("Enqueue", mock.Anything, second).Return(nil)

	rec := postWithdraw(f, withdrawBody(t, accountID), "key-123")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = postWithdraw(f, withdrawBody(t, accountID), "key-123")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var receipt domain.WithdrawalReceipt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	assert.Equal(t, second.ID, receipt.TransactionID)

	f.dispatcher.AssertNumberOfCalls(t, "Enqueue", 2)
	f.service.AssertNotCalled(t, "GetByIdempotencyKey", mock.Anything, mock.Anything)
}

func TestHandleWithdraw_RejectsMismatchedPrincipal(t *testing.T) {
	f := newHandlerFixture()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/withdrawals", withdrawBody(t, uuid.New()))
	req.Header.Set("Idempotency-Key", "key-123")
	req = req.WithContext(middleware.WithUserID(req.Context(), "2000"))

	rec := httptest.NewRecorder()
	f.h.HandleWithdraw(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "FORBIDDEN")
	f.cache.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	f.service.AssertNotCalled(t, "CreateInitialTransaction", mock.Anything, mock.Anything)
}

func TestHandleWithdraw_AcceptsMatchingPrincipal(t *testing.T) {
	f := newHandlerFixture()
	accountID := uuid.New()
	tx := pendingTx(accountID)

	f.cache.On("Get", mock.Anything, "key-123").Return(nil, false)
	f.service.On("CreateInitialTransaction", mock.Anything, mock.Anything).Return(tx, nil)
	f.dispatcher.On("Enqueue", mock.Anything, tx).Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/withdrawals", withdrawBody(t, accountID))
	req.Header.Set("Idempotency-Key", "key-123")
	req = req.WithContext(middleware.WithUserID(req.Context(), "1000"))

	rec := httptest.NewRecorder()
	f.h.HandleWithdraw(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestHandleGetWithdrawal(t *testing.T) {
	f := newHandlerFixture()
	tx := pendingTx(uuid.New())
	tx.Status = domain.StatusCompleted

	f.service.On("GetTransaction", mock.Anything, tx.ID).Return(tx, nil)

	r := chi.NewRouter()
	r.Get("/withdrawals/{id}", f.h.HandleGetWithdrawal)

	req := httptest.NewRequest(http.MethodGet, "/withdrawals/"+tx.ID.String(), nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var receipt domain.WithdrawalReceipt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	assert.Equal(t, tx.ID, receipt.TransactionID)
	assert.Equal(t, domain.StatusCompleted, receipt.Status)
}

func TestHandleGetWithdrawal_NotFound(t *testing.T) {
	f := newHandlerFixture()
	id := uuid.New()

	f.service.On("GetTransaction", mock.Anything, id).Return(nil, domain.ErrTransactionNotFound)

	r := chi.NewRouter()
	r.Get("/withdrawals/{id}", f.h.HandleGetWithdrawal)

	req := httptest.NewRequest(http.MethodGet, "/withdrawals/"+id.String(), nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestHandleGetWithdrawal_InvalidID(t *testing.T) {
	f := newHandlerFixture()

	r := chi.NewRouter()
	r.Get("/withdrawals/{id}", f.h.HandleGetWithdrawal)

	req := httptest.NewRequest(http.MethodGet, "/withdrawals/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.service.AssertNotCalled(t, "GetTransaction", mock.Anything, mock.Anything)
}
