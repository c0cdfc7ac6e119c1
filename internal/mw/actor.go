package mw

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	// ActorHeader names the user performing a write.
	ActorHeader = "X-Actor-ID"

	actorKey = "actor_id"
)

// Actor resolves the acting user id from X-Actor-ID, falling back to
// defaultID when the header is absent.
func Actor(defaultID int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := defaultID
		if raw := c.GetHeader(ActorHeader); raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || parsed <= 0 {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + ActorHeader + " header"})
				return
			}
			id = parsed
		}
		c.Set(actorKey, id)
		c.Next()
	}
}

// ActorID returns the id stored by Actor, or 0 when the middleware did not run.
func ActorID(c *gin.Context) int64 {
	return c.GetInt64(actorKey)
}
