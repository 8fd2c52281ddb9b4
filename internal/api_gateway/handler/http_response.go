package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stl-ledger/internal/api_gateway/middleware"
)

// Envelope is the body of every ledger API response
type Envelope struct {
	Data          any        `json:"data,omitempty"`
	Error         *ErrorInfo `json:"error,omitempty"`
	CorrelationID string     `json:"correlation_id,omitempty"`
	Meta          *MetaInfo  `json:"meta,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MetaInfo describes the page of a list response
type MetaInfo struct {
	Page       int   `json:"page,omitempty"`
	PerPage    int   `json:"per_page,omitempty"`
	TotalPages int   `json:"total_pages"`
	TotalItems int64 `json:"total_items"`
}

func pageMeta(page, perPage int, total int64) *MetaInfo {
	meta := &MetaInfo{Page: page, PerPage: perPage, TotalItems: total}
	if perPage > 0 {
		meta.TotalPages = int((total + int64(perPage) - 1) / int64(perPage))
	}
	return meta
}

// send stamps the request correlation id on env and writes it
func send(c *gin.Context, status int, env Envelope) {
	env.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(status, env)
}

func RespondOK(c *gin.Context, data any) {
	send(c, http.StatusOK, Envelope{Data: data})
}

func RespondCreated(c *gin.Context, data any) {
	send(c, http.StatusCreated, Envelope{Data: data})
}

// RespondPage writes one page of a list together with its paging metadata
func RespondPage(c *gin.Context, data any, page, perPage int, total int64) {
	send(c, http.StatusOK, Envelope{Data: data, Meta: pageMeta(page, perPage, total)})
}

func RespondError(c *gin.Context, status int, code, message string) {
	send(c, status, Envelope{Error: &ErrorInfo{Code: code, Message: message}})
}

// RespondErrorWithData reports an error while still returning the partial result, as chain verification does
func RespondErrorWithData(c *gin.Context, status int, code, message string, data any) {
	send(c, status, Envelope{Data: data, Error: &ErrorInfo{Code: code, Message: message}})
}

func RespondBadRequest(c *gin.Context, message string) {
	RespondError(c, http.StatusBadRequest, "BAD_REQUEST", message)
}

func RespondNotFound(c *gin.Context, message string) {
	if message == "" {
		message = "Resource not found"
	}
	RespondError(c, http.StatusNotFound, "NOT_FOUND", message)
}

// RespondInternalError hides the cause, callers log it
func RespondInternalError(c *gin.Context) {
	RespondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An internal server error occurred")
}

func RespondServiceUnavailable(c *gin.Context, message string) {
	RespondError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", message)
}
