package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cagerack-backend/internal/allocation"
	"cagerack-backend/internal/model"
	"cagerack-backend/internal/mw"
)

// cellResponse is one cell of a rack grid.
type cellResponse struct {
	ID           int64   `json:"id"`
	RackID       int64   `json:"rack_id"`
	Row          int     `json:"row"`
	Column       int     `json:"column"`
	Position     string  `json:"position"`
	OccupantID   *int64  `json:"occupant_id"`
	OccupantName *string `json:"occupant_name,omitempty"`
	ColorCode    *string `json:"color_code,omitempty"`
	Version      int64   `json:"version"`
}

func newCellResponse(cell *model.Cell, occupant *model.Professor) cellResponse {
	resp := cellResponse{
		ID:         cell.ID,
		RackID:     cell.RackID,
		Row:        cell.RowIndex,
		Column:     cell.ColIndex,
		Position:   cell.Position,
		OccupantID: cell.OccupantID,
		Version:    cell.Version,
	}
	if occupant != nil {
		resp.OccupantName = &occupant.Name
		resp.ColorCode = &occupant.ColorCode
	}
	return resp
}

type gridResponse struct {
	Rack  rackResponse   `json:"rack"`
	Cells []cellResponse `json:"cells"`
}

type assignRequest struct {
	ProfessorID int64 `json:"professor_id" binding:"required,min=1"`
	Version     int64 `json:"version" binding:"required,min=1"`
}

type releaseRequest struct {
	Version int64 `json:"version" binding:"required,min=1"`
}

type allocationResponse struct {
	Cell               cellResponse `json:"cell"`
	PreviousOccupantID *int64       `json:"previous_occupant_id"`
	Message            string       `json:"message"`
}

// GetRackCells handles GET /api/racks/:rack_id/cells. Missing cells are
// created on the way, so a rack always shows its full grid.
func (h *Handler) GetRackCells(c *gin.Context) {
	id, ok := idParam(c, "rack_id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	r, err := h.store.GetRack(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	cells, err := h.racks.MaterializeGrid(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	occupants, err := h.occupantsOf(ctx, cells)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := gridResponse{Rack: newRackResponse(r), Cells: make([]cellResponse, 0, len(cells))}
	for i := range cells {
		var p *model.Professor
		if cells[i].OccupantID != nil {
			p = occupants[*cells[i].OccupantID]
		}
		resp.Cells = append(resp.Cells, newCellResponse(&cells[i], p))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) occupantsOf(ctx context.Context, cells []model.Cell) (map[int64]*model.Professor, error) {
	out := map[int64]*model.Professor{}
	for _, cell := range cells {
		if cell.OccupantID == nil {
			continue
		}
		if _, seen := out[*cell.OccupantID]; seen {
			continue
		}
		p, err := h.store.GetProfessor(ctx, *cell.OccupantID)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, nil
}

// AssignCell handles POST /api/cells/:cell_id/assign.
func (h *Handler) AssignCell(c *gin.Context) {
	id, ok := idParam(c, "cell_id")
	if !ok {
		return
	}
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.alloc.Assign(c.Request.Context(), allocation.AssignRequest{
		CellID:          id,
		OccupantID:      req.ProfessorID,
		ActorID:         mw.ActorID(c),
		ExpectedVersion: req.Version,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeAllocation(c, res)
}

// ReleaseCell handles POST /api/cells/:cell_id/release.
func (h *Handler) ReleaseCell(c *gin.Context) {
	id, ok := idParam(c, "cell_id")
	if !ok {
		return
	}
	var req releaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.alloc.Release(c.Request.Context(), allocation.ReleaseRequest{
		CellID:          id,
		ActorID:         mw.ActorID(c),
		ExpectedVersion: req.Version,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeAllocation(c, res)
}

func (h *Handler) writeAllocation(c *gin.Context, res *allocation.Result) {
	var occupant *model.Professor
	if res.Cell.OccupantID != nil {
		p, err := h.store.GetProfessor(c.Request.Context(), *res.Cell.OccupantID)
		if err != nil {
			h.log.Warn("loading occupant failed",
				zap.Int64("cell_id", res.Cell.ID), zap.Int64("occupant_id", *res.Cell.OccupantID), zap.Error(err))
		} else {
			occupant = p
		}
	}
	c.JSON(http.StatusOK, allocationResponse{
		Cell:               newCellResponse(res.Cell, occupant),
		PreviousOccupantID: res.PreviousOccupantID,
		Message:            res.Message,
	})
}
