package api_gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stl-ledger/internal/api_gateway/handler"
	"github.com/stl-ledger/internal/api_gateway/middleware"
	"github.com/stl-ledger/internal/domain/chain"
)

// HaltChecker reports the chains refusing appends after an integrity violation
type HaltChecker interface {
	HaltedChains(ctx context.Context) []chain.ID
}

type routes struct {
	transactions *handler.TransactionHandler
	records      *handler.RecordHandler
	references   *handler.ReferenceHandler
	health       HaltChecker
	metrics      http.Handler
	metricsPath  string
}

// setupRouter configures API routes and middleware for the application
func setupRouter(logger *slog.Logger, r *gin.Engine, rt routes) {
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Actor())

	v1 := r.Group("/api/v1")
	{
		transactions := v1.Group("/transactions")
		{
			transactions.POST("", rt.transactions.Create)
			transactions.GET("", rt.transactions.List)
			transactions.GET("/by-type/:typeId", rt.transactions.ListByType)
			transactions.GET("/by-currency/:code", rt.transactions.ListByCurrency)
			transactions.GET("/:id", rt.transactions.GetByID)
			transactions.GET("/:id/participants", rt.transactions.GetParticipants)

			transactions.GET("/:id/status", rt.records.GetStatus)
			transactions.POST("/:id/status", rt.records.ChangeStatus)
			transactions.GET("/:id/status-history", rt.records.GetStatusHistory)
			transactions.GET("/:id/audit", rt.records.GetAuditTrail)
			transactions.POST("/:id/audit", rt.records.RecordAudit)
			transactions.GET("/:id/locks", rt.records.GetLocks)
			transactions.POST("/:id/locks", rt.records.PlaceLock)
		}

		v1.GET("/participants/:id/transactions", rt.transactions.GetByParticipantID)
		v1.GET("/participants/:id/participations", rt.transactions.GetParticipations)
		v1.GET("/actors/:type/:id/audit", rt.records.GetActorAudit)
		v1.GET("/chains/:chain/verify", rt.references.VerifyChain)
		v1.GET("/currencies", rt.references.ListCurrencies)
		v1.GET("/currencies/:code", rt.references.GetCurrency)
		v1.GET("/transaction-types", rt.references.ListTransactionTypes)
	}

	// A halted chain still serves reads, so health reports degraded instead of failing
	r.GET("/health", func(c *gin.Context) {
		body := gin.H{"status": "ok", "timestamp": time.Now().UTC()}
		if rt.health != nil {
			if halted := rt.health.HaltedChains(c.Request.Context()); len(halted) > 0 {
				body["status"] = "degraded"
				body["halted_chains"] = halted
			}
		}
		c.JSON(http.StatusOK, body)
	})

	if rt.metrics != nil {
		r.GET(rt.metricsPath, gin.WrapH(rt.metrics))
	}

	r.NoRoute(func(c *gin.Context) {
		handler.RespondNotFound(c, "")
	})
}
