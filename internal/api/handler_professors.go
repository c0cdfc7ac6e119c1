package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cagerack-backend/internal/model"
	"cagerack-backend/internal/store"
)

type professorResponse struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	StudentName   string `json:"student_name"`
	Contact       string `json:"contact"`
	ColorCode     string `json:"color_code"`
	OccupiedCells int64  `json:"occupied_cells"`
}

type createProfessorRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	StudentName string `json:"student_name" binding:"max=100"`
	Contact     string `json:"contact" binding:"max=50"`
	ColorCode   string `json:"color_code" binding:"omitempty,hexcolor,len=7"`
}

type updateProfessorRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=100"`
	StudentName *string `json:"student_name" binding:"omitempty,max=100"`
	Contact     *string `json:"contact" binding:"omitempty,max=50"`
	ColorCode   *string `json:"color_code" binding:"omitempty,hexcolor,len=7"`
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

// ListProfessors handles GET /api/professors.
func (h *Handler) ListProfessors(c *gin.Context) {
	professors, err := h.store.ListProfessors(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	resp := make([]professorResponse, 0, len(professors))
	for _, p := range professors {
		resp = append(resp, professorResponse{
			ID:            p.ID,
			Name:          p.Name,
			StudentName:   p.StudentName,
			Contact:       p.Contact,
			ColorCode:     p.ColorCode,
			OccupiedCells: p.OccupiedCells,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// CreateProfessor handles POST /api/professors.
func (h *Handler) CreateProfessor(c *gin.Context) {
	var req createProfessorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	p := model.Professor{
		Name:        name,
		StudentName: strings.TrimSpace(req.StudentName),
		Contact:     strings.TrimSpace(req.Contact),
		ColorCode:   req.ColorCode,
	}
	if p.ColorCode == "" {
		p.ColorCode = "#3B82F6"
	}
	if err := h.store.CreateProfessor(c.Request.Context(), &p); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, professorResponse{
		ID:          p.ID,
		Name:        p.Name,
		StudentName: p.StudentName,
		Contact:     p.Contact,
		ColorCode:   p.ColorCode,
	})
}

// GetProfessor handles GET /api/professors/:professor_id.
func (h *Handler) GetProfessor(c *gin.Context) {
	id, ok := idParam(c, "professor_id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	p, err := h.store.GetProfessor(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	held, err := h.store.ProfessorOccupiedCells(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, professorResponse{
		ID:            p.ID,
		Name:          p.Name,
		StudentName:   p.StudentName,
		Contact:       p.Contact,
		ColorCode:     p.ColorCode,
		OccupiedCells: held,
	})
}

// UpdateProfessor handles PUT /api/professors/:professor_id.
func (h *Handler) UpdateProfessor(c *gin.Context) {
	id, ok := idParam(c, "professor_id")
	if !ok {
		return
	}
	var req updateProfessorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u := store.ProfessorUpdate{
		Name:        trimmed(req.Name),
		StudentName: trimmed(req.StudentName),
		Contact:     trimmed(req.Contact),
		ColorCode:   req.ColorCode,
	}
	if u.Name != nil && *u.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name must not be empty"})
		return
	}

	ctx := c.Request.Context()
	p, err := h.store.UpdateProfessor(ctx, id, u)
	if err != nil {
		h.writeError(c, err)
		return
	}
	held, err := h.store.ProfessorOccupiedCells(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, professorResponse{
		ID:            p.ID,
		Name:          p.Name,
		StudentName:   p.StudentName,
		Contact:       p.Contact,
		ColorCode:     p.ColorCode,
		OccupiedCells: held,
	})
}

// DeleteProfessor handles DELETE /api/professors/:professor_id.
func (h *Handler) DeleteProfessor(c *gin.Context) {
	id, ok := idParam(c, "professor_id")
	if !ok {
		return
	}
	if err := h.store.DeleteProfessor(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
