package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stl-ledger/internal/api_gateway/middleware"
	"github.com/stl-ledger/internal/api_gateway/service"
	"github.com/stl-ledger/internal/domain/ledger"
	"github.com/stl-ledger/internal/domain/shared"
	"github.com/stl-ledger/internal/domain/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func validCreateBody() map[string]interface{} {
	return map[string]interface{}{
		"type_id":       uuid.New().String(),
		"amount":        "125.50",
		"currency_code": "eur",
		"payload":       map[string]interface{}{"invoice": "INV-7"},
		"participants": []map[string]interface{}{
			{"participant_type": "USER", "participant_id": uuid.New().String(), "role": "SENDER"},
			{"participant_type": "ENTITY", "participant_id": uuid.New().String(), "role": "RECEIVER"},
		},
	}
}

func TestTransactionHandler_Create(t *testing.T) {
	t.Run("Created", func(t *testing.T) {
		svc := new(MockTransactionService)
		h := NewTransactionHandler(newTestLogger(), svc)
		router := newTestRouter()
		router.POST("/transactions", h.Create)

		actorID := uuid.New()
		tx := sampleTransaction()
		svc.On("CreateTransaction", mock.Anything, mock.MatchedBy(func(req *shared.CreateTransactionRequest) bool {
			return req.CurrencyCode == "EUR" &&
				req.Amount.Equal(decimal.RequireFromString("125.5")) &&
				len(req.Participants) == 2 &&
				req.Participants[0].Role == shared.ParticipantRoleSender &&
				req.Payload["invoice"] == "INV-7"
		}), shared.Actor{Type: shared.ActorTypeUser, ID: &actorID}).Return(tx, true, nil).Once()

		rr := serve(router, http.MethodPost, "/transactions", validCreateBody(), map[string]string{
			middleware.ActorTypeHeader: "USER",
			middleware.ActorIDHeader:   actorID.String(),
		})

		require.Equal(t, http.StatusCreated, rr.Code)
		var resp TransactionResponse
		require.NoError(t, json.Unmarshal(decode(rr).Data, &resp))
		assert.Equal(t, tx.ID.String(), resp.ID)
		assert.Equal(t, int64(2), resp.Sequence)
		assert.Equal(t, "9f2c", resp.PreviousHash)
		assert.Equal(t, "order-1", resp.IdempotencyKey)
		svc.AssertExpectations(t)
	})

	t.Run("IdempotencyKeyHeaderReplaysExisting", func(t *testing.T) {
		svc := new(MockTransactionService)
		h := NewTransactionHandler(newTestLogger(), svc)
		router := newTestRouter()
		router.POST("/transactions", h.Create)

		tx := sampleTransaction()
		svc.On("CreateTransaction", mock.Anything, mock.MatchedBy(func(req *shared.CreateTransactionRequest) bool {
			return req.IdempotencyKey == "order-1"
		}), shared.SystemActor()).Return(tx, false, nil).Once()

		body := validCreateBody()
		body["idempotency_key"] = "ignored-in-favour-of-header"
		rr := serve(router, http.MethodPost, "/transactions", body, map[string]string{IdempotencyKeyHeader: "order-1"})

		assert.Equal(t, http.StatusOK, rr.Code)
		svc.AssertExpectations(t)
	})

	t.Run("MalformedBody", func(t *testing.T) {
		svc := new(MockTransactionService)
		h := NewTransactionHandler(newTestLogger(), svc)
		router := newTestRouter()
		router.POST("/transactions", h.Create)

		rr := serve(router, http.MethodPost, "/transactions", `{"invalid`, nil)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "BAD_REQUEST", decode(rr).Error.Code)
		svc.AssertNotCalled(t, "CreateTransaction")
	})

	t.Run("BindingFailures", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(body map[string]interface{})
			field  string
		}{
			{name: "TypeIDNotUUID", mutate: func(b map[string]interface{}) { b["type_id"] = "nope" }, field: "TypeID"},
			{name: "CurrencyNotThreeLetters", mutate: func(b map[string]interface{}) { b["currency_code"] = "EU1" }, field: "CurrencyCode"},
			{name: "NoParticipants", mutate: func(b map[string]interface{}) { b["participants"] = []interface{}{} }, field: "Participants"},
			{name: "UnknownRole", mutate: func(b map[string]interface{}) {
				b["participants"] = []map[string]interface{}{
					{"participant_type": "USER", "participant_id": uuid.New().String(), "role": "BYSTANDER"},
				}
			}, field: "Role"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				svc := new(MockTransactionService)
				h := NewTransactionHandler(newTestLogger(), svc)
				router := newTestRouter()
				router.POST("/transactions", h.Create)

				body := validCreateBody()
				tt.mutate(body)
				rr := serve(router, http.MethodPost, "/transactions", body, nil)

				require.Equal(t, http.StatusBadRequest, rr.Code)
				assert.Contains(t, decode(rr).Error.Message, tt.field)
				svc.AssertNotCalled(t, "CreateTransaction")
			})
		}
	})

	t.Run("LedgerErrorsMapToStatus", func(t *testing.T) {
		tests := []struct {
			name       string
			err        error
			wantStatus int
			wantCode   string
		}{
			{"AmountMismatch", shared.NewValidationError(shared.CodeAmountMismatch, "debits do not match"), http.StatusBadRequest, "AMOUNT_MISMATCH"},
			{"UnknownCurrency", shared.NewValidationError(shared.CodeInvalidCurrency, "Currency code does not exist: XXX"), http.StatusBadRequest, "INVALID_CURRENCY"},
			{"Conflict", shared.ErrConcurrentAppendConflict{Chain: "transactions", Attempts: 5}, http.StatusConflict, "CONCURRENT_APPEND_CONFLICT"},
			{"IntegrityViolation", shared.ErrChainIntegrityViolation{Chain: "transactions", Sequence: 4, Detail: "hash mismatch"}, http.StatusInternalServerError, "CHAIN_INTEGRITY_VIOLATION"},
			{"Infrastructure", errors.New("failed to append batch: connection reset"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				svc := new(MockTransactionService)
				h := NewTransactionHandler(newTestLogger(), svc)
				router := newTestRouter()
				router.POST("/transactions", h.Create)

				svc.On("CreateTransaction", mock.Anything, mock.Anything, mock.Anything).Return(nil, false, tt.err).Once()

				rr := serve(router, http.MethodPost, "/transactions", validCreateBody(), nil)

				assert.Equal(t, tt.wantStatus, rr.Code)
				env := decode(rr)
				require.NotNil(t, env.Error)
				assert.Equal(t, tt.wantCode, env.Error.Code)
				assert.NotContains(t, env.Error.Message, "connection reset")
				assert.NotEmpty(t, env.CorrelationID)
			})
		}
	})
}

func TestTransactionHandler_GetByID(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		svc := new(MockTransactionService)
		h := NewTransactionHandler(newTestLogger(), svc)
		router := newTestRouter()
		router.GET("/transactions/:id", h.GetByID)

		tx := sampleTransaction()
		svc.On("GetTransaction", mock.Anything, tx.ID).Return(tx, nil).Once()

		rr := serve(router, http.MethodGet, "/transactions/"+tx.ID.String(), nil, nil)

		require.Equal(t, http.StatusOK, rr.Code)
		var resp TransactionResponse
		require.NoError(t, json.Unmarshal(decode(rr).Data, &resp))
		assert.Equal(t, "abcd", resp.Hash)
		assert.Equal(t, "2026-03-01T12:00:00Z", resp.CreatedAt)
	})

	t.Run("NotFound", func(t *testing.T) {
		svc := new(MockTransactionService)
		h := NewTransactionHandler(newTestLogger(), svc)
		router := newTestRouter()
		router.GET("/transactions/:id", h.GetByID)

		id := uuid.New()
		svc.On("GetTransaction", mock.Anything, id).Return(nil, shared.ErrTransactionNotFound{TransactionID: id}).Once()

		rr := serve(router, http.MethodGet, "/transactions/"+id.String(), nil, nil)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "TRANSACTION_NOT_FOUND", decode(rr).Error.Code)
	})

	t.Run("InvalidID", func(t *testing.T) {
		svc := new(MockTransactionService)
		h := NewTransactionHandler(newTestLogger(), svc)
		router := newTestRouter()
		router.GET("/transactions/:id", h.GetByID)

		rr := serve(router, http.MethodGet, "/transactions/not-a-uuid", nil, nil)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertNotCalled(t, "GetTransaction")
	})
}

func TestTransactionHandler_List(t *testing.T) {
	t.Run("FiltersAndPagination", func(t *testing.T) {
		svc := new(MockTransactionService)
		h := NewTransactionHandler(newTestLogger(), svc)
		router := newTestRouter()
		router.GET("/transactions", h.List)

		typeID := uuid.New()
		from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		svc.On("ListTransactions", mock.Anything, mock.MatchedBy(func(f transaction.Filter) bool {
			return f.TypeID != nil && *f.TypeID == typeID &&
				f.CurrencyCode == "USD" &&
				f.From != nil && f.From.Equal(from) &&
				f.To == nil
		}), 2, 5).Return([]*transaction.Transaction{sampleTransaction()}, int64(6), nil).Once()

		rr := serve(router, http.MethodGet, "/transactions?type_id="+typeID.String()+"&currency=usd&from=2026-01-01T00:00:00Z&page=2&per_page=5", nil, nil)

		require.Equal(t, http.StatusOK, rr.Code)
		env := decode(rr)
		require.NotNil(t, env.Meta)
		assert.Equal(t, 2, env.Meta.Page)
		assert.Equal(t, 5, env.Meta.PerPage)
		assert.Equal(t, 2, env.Meta.TotalPages)
		assert.Equal(t, int64(6), env.Meta.TotalItems)
		svc.AssertExpectations(t)
	})

	t.Run("DefaultsPagination", func(t *testing.T) {
		svc := new(MockTransactionService)
		h := NewTransactionHandler(newTestLogger(), svc)
		router := newTestRouter()
		router.GET("/transactions", h.List)

		svc.On("ListTransactions", mock.Anything, transaction.Filter{}, 1, 10).Return([]*transaction.Transaction{}, int64(0), nil).Once()

		rr := serve(router, http.MethodGet, "/transactions", nil, nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		svc.AssertExpectations(t)
	})

	t.Run("InvalidTimestamp", func(t *testing.T) {
		svc := new(MockTransactionService)
		h := NewTransactionHandler(newTestLogger(), svc)
		router := newTestRouter()
		router.GET("/transactions", h.List)

		rr := serve(router, http.MethodGet, "/transactions?to=yesterday", nil, nil)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertNotCalled(t, "ListTransactions")
	})

	t.Run("PerPageTooLarge", func(t *testing.T) {
		svc := new(MockTransactionService)
		h := NewTransactionHandler(newTestLogger(), svc)
		router := newTestRouter()
		router.GET("/transactions", h.List)

		rr := serve(router, http.MethodGet, "/transactions?per_page=500", nil, nil)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestTransactionHandler_ListByTypeAndCurrency(t *testing.T) {
	svc := new(MockTransactionService)
	h := NewTransactionHandler(newTestLogger(), svc)
	router := newTestRouter()
	router.GET("/transactions/by-type/:typeId", h.ListByType)
	router.GET("/transactions/by-currency/:code", h.ListByCurrency)

	typeID := uuid.New()
	svc.On("ListTransactions", mock.Anything, transaction.Filter{TypeID: &typeID}, 1, 10).Return([]*transaction.Transaction{}, int64(0), nil).Once()
	svc.On("ListTransactions", mock.Anything, transaction.Filter{CurrencyCode: "JPY"}, 1, 10).Return([]*transaction.Transaction{}, int64(0), nil).Once()

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/transactions/by-type/"+typeID.String(), nil, nil).Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/transactions/by-currency/jpy", nil, nil).Code)
	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodGet, "/transactions/by-currency/yen!", nil, nil).Code)
	svc.AssertExpectations(t)
}

func TestTransactionHandler_GetByParticipantID(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		svc := new(MockTransactionService)
		h := NewTransactionHandler(newTestLogger(), svc)
		router := newTestRouter()
		router.GET("/participants/:id/transactions", h.GetByParticipantID)

		participantID := uuid.New()
		views := []*ledger.TransactionView{{TransactionID: uuid.New(), Status: shared.TransactionStatusApproved}}
		svc.On("GetParticipantTransactions", mock.Anything, participantID, 1, 10).Return(views, int64(1), nil).Once()

		rr := serve(router, http.MethodGet, "/participants/"+participantID.String()+"/transactions", nil, nil)

		require.Equal(t, http.StatusOK, rr.Code)
		var got []ledger.TransactionView
		require.NoError(t, json.Unmarshal(decode(rr).Data, &got))
		require.Len(t, got, 1)
		assert.Equal(t, shared.TransactionStatusApproved, got[0].Status)
	})

	t.Run("ReadModelUnavailable", func(t *testing.T) {
		svc := new(MockTransactionService)
		h := NewTransactionHandler(newTestLogger(), svc)
		router := newTestRouter()
		router.GET("/participants/:id/transactions", h.GetByParticipantID)

		participantID := uuid.New()
		svc.On("GetParticipantTransactions", mock.Anything, participantID, 1, 10).Return(nil, int64(0), service.ErrReadModelUnavailable).Once()

		rr := serve(router, http.MethodGet, "/participants/"+participantID.String()+"/transactions", nil, nil)

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Equal(t, "SERVICE_UNAVAILABLE", decode(rr).Error.Code)
	})
}

func TestTransactionHandler_GetParticipations(t *testing.T) {
	svc := new(MockTransactionService)
	h := NewTransactionHandler(newTestLogger(), svc)
	router := newTestRouter()
	router.GET("/participants/:id/participations", h.GetParticipations)

	participantID := uuid.New()
	records := []*transaction.Participant{{
		ID:              uuid.New(),
		TransactionID:   uuid.New(),
		ParticipantType: shared.ParticipantTypeEntity,
		ParticipantID:   participantID,
		Role:            shared.ParticipantRoleReceiver,
	}}
	svc.On("GetParticipations", mock.Anything, participantID).Return(records, nil).Once()

	rr := serve(router, http.MethodGet, "/participants/"+participantID.String()+"/participations", nil, nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var got []transaction.Participant
	require.NoError(t, json.Unmarshal(decode(rr).Data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, shared.ParticipantRoleReceiver, got[0].Role)

	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodGet, "/participants/nope/participations", nil, nil).Code)
	svc.AssertExpectations(t)
}
