package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stl-ledger/internal/api_gateway/middleware"
	"github.com/stl-ledger/internal/domain/audit"
	"github.com/stl-ledger/internal/domain/chain"
	"github.com/stl-ledger/internal/domain/ledger"
	"github.com/stl-ledger/internal/domain/lock"
	"github.com/stl-ledger/internal/domain/reference"
	"github.com/stl-ledger/internal/domain/shared"
	"github.com/stl-ledger/internal/domain/status"
	"github.com/stl-ledger/internal/domain/transaction"
	"github.com/stretchr/testify/mock"
)

// envelope is the decoded response of a single resource endpoint
type envelope struct {
	Data          json.RawMessage `json:"data"`
	Error         *ErrorInfo      `json:"error,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Meta          *MetaInfo       `json:"meta,omitempty"`
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestRouter wires the request scoped middleware the handlers rely on
func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.CorrelationID())
	router.Use(middleware.Actor())
	return router
}

func serve(router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}

	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decode(rr *httptest.ResponseRecorder) envelope {
	var env envelope
	_ = json.Unmarshal(rr.Body.Bytes(), &env)
	return env
}

func sampleTransaction() *transaction.Transaction {
	key := "order-1"
	previous := "9f2c"
	return &transaction.Transaction{
		ID:             uuid.New(),
		Sequence:       2,
		TypeID:         uuid.New(),
		CurrencyCode:   "EUR",
		IdempotencyKey: &key,
		PreviousHash:   &previous,
		Hash:           "abcd",
		CreatedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

type MockTransactionService struct {
	mock.Mock
}

func (m *MockTransactionService) CreateTransaction(ctx context.Context, req *shared.CreateTransactionRequest, actor shared.Actor) (*transaction.Transaction, bool, error) {
	args := m.Called(ctx, req, actor)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*transaction.Transaction), args.Bool(1), args.Error(2)
}

func (m *MockTransactionService) GetTransaction(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionService) ListTransactions(ctx context.Context, filter transaction.Filter, page, perPage int) ([]*transaction.Transaction, int64, error) {
	args := m.Called(ctx, filter, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*transaction.Transaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockTransactionService) GetParticipants(ctx context.Context, transactionID uuid.UUID) ([]*transaction.Participant, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*transaction.Participant), args.Error(1)
}

func (m *MockTransactionService) GetParticipantTransactions(ctx context.Context, participantID uuid.UUID, page, perPage int) ([]*ledger.TransactionView, int64, error) {
	args := m.Called(ctx, participantID, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*ledger.TransactionView), args.Get(1).(int64), args.Error(2)
}

func (m *MockTransactionService) GetParticipations(ctx context.Context, participantID uuid.UUID) ([]*transaction.Participant, error) {
	args := m.Called(ctx, participantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*transaction.Participant), args.Error(1)
}

type MockRecordService struct {
	mock.Mock
}

func (m *MockRecordService) CurrentStatus(ctx context.Context, transactionID uuid.UUID) (shared.TransactionStatus, error) {
	args := m.Called(ctx, transactionID)
	return args.Get(0).(shared.TransactionStatus), args.Error(1)
}

func (m *MockRecordService) GetStatusHistory(ctx context.Context, transactionID uuid.UUID) ([]*status.Entry, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*status.Entry), args.Error(1)
}

func (m *MockRecordService) ChangeStatus(ctx context.Context, transactionID uuid.UUID, next shared.TransactionStatus, reason string, actor shared.Actor) (*status.Entry, error) {
	args := m.Called(ctx, transactionID, next, reason, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*status.Entry), args.Error(1)
}

func (m *MockRecordService) GetAuditTrail(ctx context.Context, transactionID uuid.UUID) ([]*audit.Entry, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*audit.Entry), args.Error(1)
}

func (m *MockRecordService) RecordAudit(ctx context.Context, transactionID uuid.UUID, action shared.AuditActionType, metadata map[string]any, actor shared.Actor) (*audit.Entry, error) {
	args := m.Called(ctx, transactionID, action, metadata, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*audit.Entry), args.Error(1)
}

func (m *MockRecordService) GetActorAudit(ctx context.Context, actor shared.Actor, page, perPage int) ([]*audit.Entry, error) {
	args := m.Called(ctx, actor, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*audit.Entry), args.Error(1)
}

func (m *MockRecordService) GetLocks(ctx context.Context, transactionID uuid.UUID, activeOnly bool) ([]*lock.Lock, error) {
	args := m.Called(ctx, transactionID, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*lock.Lock), args.Error(1)
}

func (m *MockRecordService) PlaceLock(ctx context.Context, transactionID uuid.UUID, lockType shared.LockType, reason string, expiresAt *time.Time, actor shared.Actor) (*lock.Lock, error) {
	args := m.Called(ctx, transactionID, lockType, reason, expiresAt, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lock.Lock), args.Error(1)
}

type MockReferenceService struct {
	mock.Mock
}

func (m *MockReferenceService) ListCurrencies(ctx context.Context) ([]*reference.Currency, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reference.Currency), args.Error(1)
}

func (m *MockReferenceService) GetCurrency(ctx context.Context, code string) (*reference.Currency, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reference.Currency), args.Error(1)
}

func (m *MockReferenceService) ListTransactionTypes(ctx context.Context) ([]*reference.TransactionType, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reference.TransactionType), args.Error(1)
}

func (m *MockReferenceService) VerifyChain(ctx context.Context, id chain.ID, from, to int64) (*chain.Report, error) {
	args := m.Called(ctx, id, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chain.Report), args.Error(1)
}
