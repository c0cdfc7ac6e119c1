package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

type occupancyRecordResponse struct {
	ID         int64      `json:"id"`
	CellID     int64      `json:"cell_id"`
	OccupantID int64      `json:"occupant_id"`
	ActorID    int64      `json:"actor_id"`
	AssignedOn string     `json:"assigned_on"`
	AssignedAt time.Time  `json:"assigned_at"`
	ReleasedAt *time.Time `json:"released_at"`
	UnitCost   int        `json:"unit_cost"`
}

// GetOccupancy handles GET /api/occupancy?start=YYYY-MM-DD&end=YYYY-MM-DD.
// Both bounds are billing dates and inclusive.
func (h *Handler) GetOccupancy(c *gin.Context) {
	start, err := time.Parse(dateLayout, c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be a YYYY-MM-DD date"})
		return
	}
	end, err := time.Parse(dateLayout, c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be a YYYY-MM-DD date"})
		return
	}
	if end.Before(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end is before start"})
		return
	}

	records, err := h.store.RecordsInRange(c.Request.Context(), start, end)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]occupancyRecordResponse, 0, len(records))
	for _, r := range records {
		resp = append(resp, occupancyRecordResponse{
			ID:         r.ID,
			CellID:     r.CellID,
			OccupantID: r.OccupantID,
			ActorID:    r.ActorID,
			AssignedOn: r.AssignedOn.Format(dateLayout),
			AssignedAt: r.AssignedAt,
			ReleasedAt: r.ReleasedAt,
			UnitCost:   r.UnitCost,
		})
	}
	c.JSON(http.StatusOK, resp)
}
