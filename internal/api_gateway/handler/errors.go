package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stl-ledger/internal/api_gateway/service"
	"github.com/stl-ledger/internal/domain/shared"
)

// httpStatusForCode maps a ledger error code to the HTTP status returned to clients
func httpStatusForCode(code shared.ErrorCode) int {
	switch code {
	case shared.CodeTransactionNotFound:
		return http.StatusNotFound
	case shared.CodeInvalidStatusTransition, shared.CodeTransactionLocked, shared.CodeConcurrentAppendConflict:
		return http.StatusConflict
	case shared.CodeChainIntegrityViolation:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// respondWithLedgerError writes the response for an error returned by a ledger service.
// Storage errors are logged and never exposed.
func respondWithLedgerError(c *gin.Context, logger *slog.Logger, err error) {
	var violation shared.ErrChainIntegrityViolation
	if errors.As(err, &violation) {
		logger.Error("Chain integrity violation",
			"chain", violation.Chain,
			"sequence", violation.Sequence,
			"detail", violation.Detail,
			"path", c.Request.URL.Path,
		)
		RespondError(c, http.StatusInternalServerError, string(shared.CodeChainIntegrityViolation), "Ledger chain integrity violation detected")
		return
	}

	var coded shared.CodedError
	if errors.As(err, &coded) {
		status := httpStatusForCode(coded.Code())
		logger.Warn("Ledger request refused",
			"code", string(coded.Code()),
			"status", status,
			"error", err,
			"path", c.Request.URL.Path,
		)
		RespondError(c, status, string(coded.Code()), coded.Error())
		return
	}

	if errors.Is(err, service.ErrReadModelUnavailable) {
		RespondServiceUnavailable(c, "Transaction read model is not available")
		return
	}

	logger.Error("Ledger request failed",
		"error", err,
		"path", c.Request.URL.Path,
	)
	RespondInternalError(c)
}
