package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stl-ledger/internal/domain/shared"
)

const (
	ActorTypeHeader = "X-Actor-Type"
	ActorIDHeader   = "X-Actor-Id"

	// ActorKey is the key used to store the request actor in the context
	ActorKey = "actor"
)

// Actor resolves the authenticated caller from the actor headers set upstream.
// Requests without an actor type act as SYSTEM. Whether the actor id is
// required is decided by the ledger for the action being recorded.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := shared.SystemActor()

		if raw := strings.TrimSpace(c.GetHeader(ActorTypeHeader)); raw != "" {
			actor.Type = shared.ActorType(strings.ToUpper(raw))
			if !actor.Type.IsValid() {
				abortWithError(c, http.StatusBadRequest, string(shared.CodeInvalidActorType), "Unknown actor type: "+raw)
				return
			}
		}

		if raw := strings.TrimSpace(c.GetHeader(ActorIDHeader)); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				abortWithError(c, http.StatusBadRequest, "BAD_REQUEST", "Actor id must be a UUID")
				return
			}
			actor.ID = &id
		}

		c.Set(ActorKey, actor)
		c.Next()
	}
}

// GetActor retrieves the request actor, SYSTEM when the middleware did not run
func GetActor(c *gin.Context) shared.Actor {
	if v, exists := c.Get(ActorKey); exists {
		if actor, ok := v.(shared.Actor); ok {
			return actor
		}
	}
	return shared.SystemActor()
}

func abortWithError(c *gin.Context, status int, code, message string) {
	response := gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
	if correlationID := GetCorrelationID(c); correlationID != "" {
		response["correlation_id"] = correlationID
	}
	c.AbortWithStatusJSON(status, response)
}
