package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stl-ledger/internal/api_gateway/service"
	"github.com/stl-ledger/internal/domain/chain"
	"github.com/stl-ledger/internal/domain/shared"
)

// ReferenceHandler serves reference data and on-demand chain verification
type ReferenceHandler struct {
	referenceService service.ReferenceService
	logger           *slog.Logger
}

func NewReferenceHandler(logger *slog.Logger, referenceService service.ReferenceService) *ReferenceHandler {
	registerValidations()
	return &ReferenceHandler{
		referenceService: referenceService,
		logger:           logger,
	}
}

func (h *ReferenceHandler) ListCurrencies(c *gin.Context) {
	currencies, err := h.referenceService.ListCurrencies(c.Request.Context())
	if err != nil {
		respondWithLedgerError(c, h.logger, err)
		return
	}
	RespondOK(c, currencies)
}

func (h *ReferenceHandler) GetCurrency(c *gin.Context) {
	code := strings.ToUpper(c.Param("code"))

	currency, err := h.referenceService.GetCurrency(c.Request.Context(), code)
	if errors.Is(err, shared.ErrReferenceNotFound{}) {
		RespondNotFound(c, "Currency not found: "+code)
		return
	}
	if err != nil {
		respondWithLedgerError(c, h.logger, err)
		return
	}
	RespondOK(c, currency)
}

func (h *ReferenceHandler) ListTransactionTypes(c *gin.Context) {
	types, err := h.referenceService.ListTransactionTypes(c.Request.Context())
	if err != nil {
		respondWithLedgerError(c, h.logger, err)
		return
	}
	RespondOK(c, types)
}

// VerifyChain replays a chain segment. A broken chain answers 500 and halts appends to it.
func (h *ReferenceHandler) VerifyChain(c *gin.Context) {
	id := chain.ID(c.Param("chain"))
	if !id.IsValid() {
		RespondBadRequest(c, "Unknown chain: "+string(id))
		return
	}
	var params VerifyChainParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, bindingErrorMessage(err))
		return
	}
	if params.To > 0 && params.To < params.From {
		RespondBadRequest(c, "Invalid range: to must not be lower than from")
		return
	}

	report, err := h.referenceService.VerifyChain(c.Request.Context(), id, params.From, params.To)
	var violation shared.ErrChainIntegrityViolation
	if errors.As(err, &violation) && report != nil {
		h.logger.Error("Chain verification found a violation",
			"chain", violation.Chain,
			"sequence", violation.Sequence,
			"record_id", violation.RecordID,
			"detail", violation.Detail,
		)
		RespondErrorWithData(c, http.StatusInternalServerError, string(shared.CodeChainIntegrityViolation), violation.Error(), report)
		return
	}
	if err != nil {
		respondWithLedgerError(c, h.logger, err)
		return
	}
	RespondOK(c, report)
}
