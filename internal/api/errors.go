package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cagerack-backend/internal/allocation"
	"cagerack-backend/internal/grid"
	"cagerack-backend/internal/rack"
	"cagerack-backend/internal/store"
)

// writeError maps domain errors onto HTTP responses. Anything unrecognized
// is a storage failure and is logged rather than echoed to the client.
func (h *Handler) writeError(c *gin.Context, err error) {
	var blocked *rack.ShrinkBlockedError
	switch {
	case errors.As(err, &blocked):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     err.Error(),
			"rows":      blocked.Rows,
			"columns":   blocked.Columns,
			"positions": blocked.Positions,
		})
	case errors.Is(err, store.ErrVersionConflict):
		c.JSON(http.StatusConflict, gin.H{"error": store.ErrVersionConflict.Error()})
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, allocation.ErrUnknownOccupant):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, allocation.ErrNoOpAssignment),
		errors.Is(err, allocation.ErrNotOccupied),
		errors.Is(err, grid.ErrOutOfRange),
		errors.Is(err, rack.ErrRackOccupied),
		errors.Is(err, rack.ErrDuplicateName),
		errors.Is(err, store.ErrProfessorNameTaken),
		errors.Is(err, store.ErrProfessorInUse):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
}

// idParam parses a positive int64 path parameter.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}
