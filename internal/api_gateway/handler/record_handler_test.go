package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stl-ledger/internal/api_gateway/middleware"
	"github.com/stl-ledger/internal/domain/audit"
	"github.com/stl-ledger/internal/domain/lock"
	"github.com/stl-ledger/internal/domain/shared"
	"github.com/stl-ledger/internal/domain/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newRecordRouter(svc *MockRecordService) *gin.Engine {
	h := NewRecordHandler(newTestLogger(), svc)
	router := newTestRouter()
	router.GET("/transactions/:id/status", h.GetStatus)
	router.POST("/transactions/:id/status", h.ChangeStatus)
	router.GET("/transactions/:id/status-history", h.GetStatusHistory)
	router.GET("/transactions/:id/audit", h.GetAuditTrail)
	router.POST("/transactions/:id/audit", h.RecordAudit)
	router.GET("/transactions/:id/locks", h.GetLocks)
	router.POST("/transactions/:id/locks", h.PlaceLock)
	router.GET("/actors/:type/:id/audit", h.GetActorAudit)
	return router
}

func TestRecordHandler_Status(t *testing.T) {
	id := uuid.New()

	t.Run("Current", func(t *testing.T) {
		svc := new(MockRecordService)
		svc.On("CurrentStatus", mock.Anything, id).Return(shared.TransactionStatusOnHold, nil).Once()

		rr := serve(newRecordRouter(svc), http.MethodGet, "/transactions/"+id.String()+"/status", nil, nil)

		require.Equal(t, http.StatusOK, rr.Code)
		var resp StatusResponse
		require.NoError(t, json.Unmarshal(decode(rr).Data, &resp))
		assert.Equal(t, "ON_HOLD", resp.Status)
		assert.Equal(t, id.String(), resp.TransactionID)
	})

	t.Run("History", func(t *testing.T) {
		svc := new(MockRecordService)
		history := []*status.Entry{
			{ID: uuid.New(), Sequence: 1, TransactionID: id, Status: shared.TransactionStatusPending},
			{ID: uuid.New(), Sequence: 5, TransactionID: id, Status: shared.TransactionStatusActive},
		}
		svc.On("GetStatusHistory", mock.Anything, id).Return(history, nil).Once()

		rr := serve(newRecordRouter(svc), http.MethodGet, "/transactions/"+id.String()+"/status-history", nil, nil)

		require.Equal(t, http.StatusOK, rr.Code)
		var got []status.Entry
		require.NoError(t, json.Unmarshal(decode(rr).Data, &got))
		require.Len(t, got, 2)
		assert.Equal(t, shared.TransactionStatusActive, got[1].Status)
	})

	t.Run("ChangeAccepted", func(t *testing.T) {
		svc := new(MockRecordService)
		actorID := uuid.New()
		entry := &status.Entry{ID: uuid.New(), Sequence: 9, TransactionID: id, Status: shared.TransactionStatusApproved}
		svc.On("ChangeStatus", mock.Anything, id, shared.TransactionStatusApproved, "checked", shared.Actor{Type: shared.ActorTypeUser, ID: &actorID}).Return(entry, nil).Once()

		rr := serve(newRecordRouter(svc), http.MethodPost, "/transactions/"+id.String()+"/status",
			ChangeStatusRequest{Status: "approved", Reason: "checked"},
			map[string]string{middleware.ActorTypeHeader: "USER", middleware.ActorIDHeader: actorID.String()})

		assert.Equal(t, http.StatusCreated, rr.Code)
		svc.AssertExpectations(t)
	})

	t.Run("ChangeRefused", func(t *testing.T) {
		tests := []struct {
			name     string
			err      error
			wantCode string
		}{
			{"InvalidTransition", shared.ErrInvalidStatusTransition{TransactionID: id, From: shared.TransactionStatusCanceled, To: shared.TransactionStatusActive}, "INVALID_STATUS_TRANSITION"},
			{"Locked", shared.ErrTransactionLocked{TransactionID: id, LockType: shared.LockTypeFraudReview}, "TRANSACTION_LOCKED"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				svc := new(MockRecordService)
				svc.On("ChangeStatus", mock.Anything, id, mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.err).Once()

				rr := serve(newRecordRouter(svc), http.MethodPost, "/transactions/"+id.String()+"/status",
					ChangeStatusRequest{Status: "ACTIVE"}, nil)

				assert.Equal(t, http.StatusConflict, rr.Code)
				assert.Equal(t, tt.wantCode, decode(rr).Error.Code)
			})
		}
	})

	t.Run("ChangeMissingStatus", func(t *testing.T) {
		svc := new(MockRecordService)

		rr := serve(newRecordRouter(svc), http.MethodPost, "/transactions/"+id.String()+"/status",
			map[string]string{"reason": "no status"}, nil)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertNotCalled(t, "ChangeStatus")
	})
}

func TestRecordHandler_Audit(t *testing.T) {
	id := uuid.New()

	t.Run("Trail", func(t *testing.T) {
		svc := new(MockRecordService)
		svc.On("GetAuditTrail", mock.Anything, id).Return([]*audit.Entry{{ID: uuid.New(), TransactionID: id, ActionType: shared.AuditActionCreate}}, nil).Once()

		rr := serve(newRecordRouter(svc), http.MethodGet, "/transactions/"+id.String()+"/audit", nil, nil)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("Record", func(t *testing.T) {
		svc := new(MockRecordService)
		metadata := map[string]any{"source": "back-office"}
		entry := &audit.Entry{ID: uuid.New(), TransactionID: id, ActionType: shared.AuditActionVerifySignature}
		svc.On("RecordAudit", mock.Anything, id, shared.AuditActionVerifySignature, metadata, shared.SystemActor()).Return(entry, nil).Once()

		rr := serve(newRecordRouter(svc), http.MethodPost, "/transactions/"+id.String()+"/audit",
			RecordAuditRequest{ActionType: "verify_signature", Metadata: metadata}, nil)

		assert.Equal(t, http.StatusCreated, rr.Code)
		svc.AssertExpectations(t)
	})

	t.Run("MissingActorID", func(t *testing.T) {
		svc := new(MockRecordService)
		svc.On("RecordAudit", mock.Anything, id, shared.AuditActionApprove, mock.Anything, shared.Actor{Type: shared.ActorTypeUser}).
			Return(nil, shared.NewValidationError(shared.CodeMissingActorID, "Actor id is required for actor type USER")).Once()

		rr := serve(newRecordRouter(svc), http.MethodPost, "/transactions/"+id.String()+"/audit",
			RecordAuditRequest{ActionType: "APPROVE"}, map[string]string{middleware.ActorTypeHeader: "USER"})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "MISSING_ACTOR_ID", decode(rr).Error.Code)
	})
}

func TestRecordHandler_GetActorAudit(t *testing.T) {
	actorID := uuid.New()

	t.Run("Paged", func(t *testing.T) {
		svc := new(MockRecordService)
		actor := shared.Actor{Type: shared.ActorTypeEntity, ID: &actorID}
		entries := []*audit.Entry{{ID: uuid.New(), ActionType: shared.AuditActionApprove, ActorType: shared.ActorTypeEntity, ActorID: &actorID}}
		svc.On("GetActorAudit", mock.Anything, actor, 2, 5).Return(entries, nil).Once()

		rr := serve(newRecordRouter(svc), http.MethodGet, "/actors/entity/"+actorID.String()+"/audit?page=2&per_page=5", nil, nil)

		require.Equal(t, http.StatusOK, rr.Code)
		var got []audit.Entry
		require.NoError(t, json.Unmarshal(decode(rr).Data, &got))
		require.Len(t, got, 1)
		assert.Equal(t, shared.AuditActionApprove, got[0].ActionType)
		svc.AssertExpectations(t)
	})

	t.Run("UnknownActorType", func(t *testing.T) {
		svc := new(MockRecordService)

		rr := serve(newRecordRouter(svc), http.MethodGet, "/actors/robot/"+actorID.String()+"/audit", nil, nil)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertNotCalled(t, "GetActorAudit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("InvalidActorID", func(t *testing.T) {
		svc := new(MockRecordService)

		rr := serve(newRecordRouter(svc), http.MethodGet, "/actors/user/not-a-uuid/audit", nil, nil)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestRecordHandler_Locks(t *testing.T) {
	id := uuid.New()

	t.Run("ActiveOnly", func(t *testing.T) {
		svc := new(MockRecordService)
		svc.On("GetLocks", mock.Anything, id, true).Return([]*lock.Lock{}, nil).Once()

		rr := serve(newRecordRouter(svc), http.MethodGet, "/transactions/"+id.String()+"/locks?active=true", nil, nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		svc.AssertExpectations(t)
	})

	t.Run("All", func(t *testing.T) {
		svc := new(MockRecordService)
		svc.On("GetLocks", mock.Anything, id, false).Return([]*lock.Lock{}, nil).Once()

		rr := serve(newRecordRouter(svc), http.MethodGet, "/transactions/"+id.String()+"/locks", nil, nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		svc.AssertExpectations(t)
	})

	t.Run("Place", func(t *testing.T) {
		svc := new(MockRecordService)
		expiresAt := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
		placed := &lock.Lock{ID: uuid.New(), TransactionID: id, LockType: shared.LockTypeComplianceCheck, ExpiresAt: &expiresAt}
		svc.On("PlaceLock", mock.Anything, id, shared.LockTypeComplianceCheck, "kyc refresh", mock.MatchedBy(func(at *time.Time) bool {
			return at != nil && at.Equal(expiresAt)
		}), shared.SystemActor()).Return(placed, nil).Once()

		rr := serve(newRecordRouter(svc), http.MethodPost, "/transactions/"+id.String()+"/locks",
			map[string]string{"lock_type": "COMPLIANCE_CHECK", "reason": "kyc refresh", "expires_at": "2026-12-01T00:00:00Z"}, nil)

		require.Equal(t, http.StatusCreated, rr.Code)
		var got lock.Lock
		require.NoError(t, json.Unmarshal(decode(rr).Data, &got))
		assert.Equal(t, placed.ID, got.ID)
	})

	t.Run("UnknownLockType", func(t *testing.T) {
		svc := new(MockRecordService)
		svc.On("PlaceLock", mock.Anything, id, shared.LockType("SNOOZE"), "", (*time.Time)(nil), shared.SystemActor()).
			Return(nil, shared.NewValidationError(shared.CodeInvalidLockType, "Unknown lock type: SNOOZE")).Once()

		rr := serve(newRecordRouter(svc), http.MethodPost, "/transactions/"+id.String()+"/locks",
			map[string]string{"lock_type": "snooze"}, nil)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "INVALID_LOCK_TYPE", decode(rr).Error.Code)
	})

	t.Run("UnknownTransaction", func(t *testing.T) {
		svc := new(MockRecordService)
		svc.On("GetLocks", mock.Anything, id, false).Return(nil, shared.ErrTransactionNotFound{TransactionID: id}).Once()

		rr := serve(newRecordRouter(svc), http.MethodGet, "/transactions/"+id.String()+"/locks", nil, nil)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
