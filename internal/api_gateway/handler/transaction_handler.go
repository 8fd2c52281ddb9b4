package handler

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stl-ledger/internal/api_gateway/middleware"
	"github.com/stl-ledger/internal/api_gateway/service"
	"github.com/stl-ledger/internal/domain/shared"
	"github.com/stl-ledger/internal/domain/transaction"
)

// IdempotencyKeyHeader overrides the idempotency key of the request body
const IdempotencyKeyHeader = "Idempotency-Key"

// TransactionHandler handles HTTP requests for transaction operations
type TransactionHandler struct {
	transactionService service.TransactionService
	logger             *slog.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(logger *slog.Logger, transactionService service.TransactionService) *TransactionHandler {
	registerValidations()
	return &TransactionHandler{
		transactionService: transactionService,
		logger:             logger,
	}
}

// Create appends a new transaction. A replayed idempotency key answers 200 with the
// original transaction instead of 201.
func (h *TransactionHandler) Create(c *gin.Context) {
	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, bindingErrorMessage(err))
		return
	}

	createReq := toCreateTransactionRequest(req)
	if key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader)); key != "" {
		createReq.IdempotencyKey = key
	}

	tx, created, err := h.transactionService.CreateTransaction(c.Request.Context(), createReq, middleware.GetActor(c))
	if err != nil {
		respondWithLedgerError(c, h.logger, err)
		return
	}

	if !created {
		RespondOK(c, mapTransactionToResponse(tx))
		return
	}
	RespondCreated(c, mapTransactionToResponse(tx))
}

// GetByID retrieves a transaction by its ID
func (h *TransactionHandler) GetByID(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	tx, err := h.transactionService.GetTransaction(c.Request.Context(), id)
	if err != nil {
		respondWithLedgerError(c, h.logger, err)
		return
	}
	RespondOK(c, mapTransactionToResponse(tx))
}

// List returns transactions in append order, filtered by type, currency and creation time
func (h *TransactionHandler) List(c *gin.Context) {
	var params TransactionListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, bindingErrorMessage(err))
		return
	}

	filter := transaction.Filter{CurrencyCode: strings.ToUpper(params.Currency)}
	if params.TypeID != "" {
		typeID := uuid.MustParse(params.TypeID)
		filter.TypeID = &typeID
	}
	var err error
	if filter.From, err = parseTimeParam(params.From); err != nil {
		RespondBadRequest(c, "Invalid from: expected RFC 3339 timestamp")
		return
	}
	if filter.To, err = parseTimeParam(params.To); err != nil {
		RespondBadRequest(c, "Invalid to: expected RFC 3339 timestamp")
		return
	}

	h.respondWithPage(c, filter, params.PaginationParams)
}

// ListByType returns the transactions of one transaction type
func (h *TransactionHandler) ListByType(c *gin.Context) {
	typeID, ok := parseUUIDParam(c, "typeId")
	if !ok {
		return
	}
	var params PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, bindingErrorMessage(err))
		return
	}

	h.respondWithPage(c, transaction.Filter{TypeID: &typeID}, params)
}

// ListByCurrency returns the transactions denominated in one currency
func (h *TransactionHandler) ListByCurrency(c *gin.Context) {
	code := strings.ToUpper(c.Param("code"))
	if len(code) != 3 {
		RespondBadRequest(c, "Invalid currency code")
		return
	}
	var params PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, bindingErrorMessage(err))
		return
	}

	h.respondWithPage(c, transaction.Filter{CurrencyCode: code}, params)
}

// GetParticipants lists the participants of a transaction
func (h *TransactionHandler) GetParticipants(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	participants, err := h.transactionService.GetParticipants(c.Request.Context(), id)
	if err != nil {
		respondWithLedgerError(c, h.logger, err)
		return
	}
	RespondOK(c, participants)
}

// GetByParticipantID lists the projected transactions a participant takes part in
func (h *TransactionHandler) GetByParticipantID(c *gin.Context) {
	participantID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var params PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, bindingErrorMessage(err))
		return
	}

	views, total, err := h.transactionService.GetParticipantTransactions(c.Request.Context(), participantID, params.Page, params.PerPage)
	if err != nil {
		respondWithLedgerError(c, h.logger, err)
		return
	}
	RespondPage(c, views, params.Page, params.PerPage, total)
}

// GetParticipations lists a participant's records straight from the ledger
func (h *TransactionHandler) GetParticipations(c *gin.Context) {
	participantID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	participations, err := h.transactionService.GetParticipations(c.Request.Context(), participantID)
	if err != nil {
		respondWithLedgerError(c, h.logger, err)
		return
	}
	RespondOK(c, participations)
}

func (h *TransactionHandler) respondWithPage(c *gin.Context, filter transaction.Filter, params PaginationParams) {
	txs, total, err := h.transactionService.ListTransactions(c.Request.Context(), filter, params.Page, params.PerPage)
	if err != nil {
		respondWithLedgerError(c, h.logger, err)
		return
	}
	RespondPage(c, mapTransactionsToResponse(txs), params.Page, params.PerPage, total)
}

// toCreateTransactionRequest converts a bound request; its UUIDs are already validated
func toCreateTransactionRequest(req CreateTransactionRequest) *shared.CreateTransactionRequest {
	createReq := &shared.CreateTransactionRequest{
		TypeID:         uuid.MustParse(req.TypeID),
		Amount:         req.Amount,
		CurrencyCode:   strings.ToUpper(req.CurrencyCode),
		Payload:        req.Payload,
		IdempotencyKey: req.IdempotencyKey,
		Participants:   make([]shared.ParticipantRequest, 0, len(req.Participants)),
	}
	for _, p := range req.Participants {
		createReq.Participants = append(createReq.Participants, shared.ParticipantRequest{
			ParticipantType: shared.ParticipantType(p.ParticipantType),
			ParticipantID:   uuid.MustParse(p.ParticipantID),
			Role:            shared.ParticipantRole(p.Role),
			Amount:          p.Amount,
		})
	}
	return createReq
}

// parseUUIDParam answers 400 and returns false when the path parameter is not a UUID
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondBadRequest(c, "Invalid "+name+": expected UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseTimeParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
