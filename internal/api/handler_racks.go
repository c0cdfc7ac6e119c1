package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cagerack-backend/internal/model"
	"cagerack-backend/internal/rack"
)

// rackResponse represents the API response for a single rack.
type rackResponse struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Rows         int       `json:"rows"`
	Columns      int       `json:"columns"`
	DisplayOrder int       `json:"display_order"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func newRackResponse(r *model.Rack) rackResponse {
	return rackResponse{
		ID:           r.ID,
		Name:         r.Name,
		Rows:         r.Rows,
		Columns:      r.Columns,
		DisplayOrder: r.DisplayOrder,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type createRackRequest struct {
	Name         string `json:"name" binding:"required,max=100"`
	Rows         int    `json:"rows" binding:"required,min=1,max=26"`
	Columns      int    `json:"columns" binding:"required,min=1,max=26"`
	DisplayOrder int    `json:"display_order"`
}

type updateRackRequest struct {
	Name         *string `json:"name" binding:"omitempty,max=100"`
	Rows         *int    `json:"rows" binding:"omitempty,min=1,max=26"`
	Columns      *int    `json:"columns" binding:"omitempty,min=1,max=26"`
	DisplayOrder *int    `json:"display_order"`
}

// ListRacks handles GET /api/racks.
func (h *Handler) ListRacks(c *gin.Context) {
	racks, err := h.racks.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, racks)
}

// CreateRack handles POST /api/racks.
func (h *Handler) CreateRack(c *gin.Context) {
	var req createRackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	r, err := h.racks.Create(c.Request.Context(), rack.CreateRackParams{
		Name:         req.Name,
		Rows:         req.Rows,
		Columns:      req.Columns,
		DisplayOrder: req.DisplayOrder,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newRackResponse(r))
}

// GetRack handles GET /api/racks/:rack_id.
func (h *Handler) GetRack(c *gin.Context) {
	id, ok := idParam(c, "rack_id")
	if !ok {
		return
	}
	r, err := h.store.GetRack(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newRackResponse(r))
}

// UpdateRack handles PUT /api/racks/:rack_id. Changing rows or columns
// resizes the grid.
func (h *Handler) UpdateRack(c *gin.Context) {
	id, ok := idParam(c, "rack_id")
	if !ok {
		return
	}
	var req updateRackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	r, err := h.racks.Update(c.Request.Context(), id, rack.UpdateRackParams{
		Name:         req.Name,
		DisplayOrder: req.DisplayOrder,
		Rows:         req.Rows,
		Columns:      req.Columns,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newRackResponse(r))
}

// DeleteRack handles DELETE /api/racks/:rack_id.
func (h *Handler) DeleteRack(c *gin.Context) {
	id, ok := idParam(c, "rack_id")
	if !ok {
		return
	}
	if err := h.racks.Delete(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
