package handler

import (
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stl-ledger/internal/api_gateway/middleware"
	"github.com/stl-ledger/internal/api_gateway/service"
	"github.com/stl-ledger/internal/domain/shared"
)

// RecordHandler serves the status history, locks and audit trail of transactions
type RecordHandler struct {
	recordService service.RecordService
	logger        *slog.Logger
}

func NewRecordHandler(logger *slog.Logger, recordService service.RecordService) *RecordHandler {
	registerValidations()
	return &RecordHandler{
		recordService: recordService,
		logger:        logger,
	}
}

func (h *RecordHandler) GetStatus(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	current, err := h.recordService.CurrentStatus(c.Request.Context(), id)
	if err != nil {
		respondWithLedgerError(c, h.logger, err)
		return
	}
	RespondOK(c, StatusResponse{TransactionID: id.String(), Status: string(current)})
}

func (h *RecordHandler) GetStatusHistory(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	history, err := h.recordService.GetStatusHistory(c.Request.Context(), id)
	if err != nil {
		respondWithLedgerError(c, h.logger, err)
		return
	}
	RespondOK(c, history)
}

// ChangeStatus appends a status change, refused with 409 when the transition is not allowed
func (h *RecordHandler) ChangeStatus(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, bindingErrorMessage(err))
		return
	}

	next := shared.TransactionStatus(strings.ToUpper(req.Status))
	entry, err := h.recordService.ChangeStatus(c.Request.Context(), id, next, req.Reason, middleware.GetActor(c))
	if err != nil {
		respondWithLedgerError(c, h.logger, err)
		return
	}
	RespondCreated(c, entry)
}

func (h *RecordHandler) GetAuditTrail(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	entries, err := h.recordService.GetAuditTrail(c.Request.Context(), id)
	if err != nil {
		respondWithLedgerError(c, h.logger, err)
		return
	}
	RespondOK(c, entries)
}

// GetActorAudit lists the audit entries recorded by one actor, newest first
func (h *RecordHandler) GetActorAudit(c *gin.Context) {
	actorType := shared.ActorType(strings.ToUpper(c.Param("type")))
	if !actorType.IsValid() {
		RespondBadRequest(c, "unknown actor type")
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var params PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, bindingErrorMessage(err))
		return
	}

	entries, err := h.recordService.GetActorAudit(c.Request.Context(), shared.Actor{Type: actorType, ID: &id}, params.Page, params.PerPage)
	if err != nil {
		respondWithLedgerError(c, h.logger, err)
		return
	}
	RespondOK(c, entries)
}

func (h *RecordHandler) RecordAudit(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req RecordAuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, bindingErrorMessage(err))
		return
	}

	action := shared.AuditActionType(strings.ToUpper(req.ActionType))
	entry, err := h.recordService.RecordAudit(c.Request.Context(), id, action, req.Metadata, middleware.GetActor(c))
	if err != nil {
		respondWithLedgerError(c, h.logger, err)
		return
	}
	RespondCreated(c, entry)
}

// GetLocks lists the locks of a transaction, only unexpired ones with ?active=true
func (h *RecordHandler) GetLocks(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var params LockListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, bindingErrorMessage(err))
		return
	}

	locks, err := h.recordService.GetLocks(c.Request.Context(), id, params.Active)
	if err != nil {
		respondWithLedgerError(c, h.logger, err)
		return
	}
	RespondOK(c, locks)
}

func (h *RecordHandler) PlaceLock(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req PlaceLockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, bindingErrorMessage(err))
		return
	}

	lockType := shared.LockType(strings.ToUpper(req.LockType))
	placed, err := h.recordService.PlaceLock(c.Request.Context(), id, lockType, req.Reason, req.ExpiresAt, middleware.GetActor(c))
	if err != nil {
		respondWithLedgerError(c, h.logger, err)
		return
	}
	RespondCreated(c, placed)
}
