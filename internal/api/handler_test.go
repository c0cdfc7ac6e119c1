package api

import (
	"bytes"
	"context"
	"errors"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"

	"cagerack-backend/internal/allocation"
	"cagerack-backend/internal/clock"
	"cagerack-backend/internal/model"
	"cagerack-backend/internal/rack"
	"cagerack-backend/internal/store"
	"cagerack-backend/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	db      *gorm.DB
	handler *Handler
	router  *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gormDB := testutil.NewDB(t)
	st := store.NewGormStore(gormDB)
	clk := &clock.Fixed{At: time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)}

	h := NewHandler(st, rack.NewService(st, nil), allocation.NewService(st, clk, 800, nil), &webpush.Options{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	router := NewRouter(ctx, h, RouterConfig{
		RateLimitPerSec: 1000,
		RateLimitBurst:  1000,
		CacheTTL:        time.Minute,
		DefaultActorID:  1,
	}, nil)
	return &testServer{db: gormDB, handler: h, router: router}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func (ts *testServer) createRack(t *testing.T, name string, rows, columns int) int64 {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/racks", map[string]any{"name": name, "rows": rows, "columns": columns}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var r rackResponse
	decode(t, w, &r)
	return r.ID
}

func (ts *testServer) createProfessor(t *testing.T, name string) int64 {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/professors", map[string]any{"name": name, "color_code": "#10B981"}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var p professorResponse
	decode(t, w, &p)
	return p.ID
}

func (ts *testServer) grid(t *testing.T, rackID int64) map[string]cellResponse {
	t.Helper()
	w := ts.do(t, http.MethodGet, fmt.Sprintf("/api/racks/%d/cells", rackID), nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var g gridResponse
	decode(t, w, &g)
	out := make(map[string]cellResponse, len(g.Cells))
	for _, c := range g.Cells {
		out[c.Position] = c
	}
	return out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRackEndpoints(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createRack(t, "Main", 2, 2)

	w := ts.do(t, http.MethodPost, "/api/racks", map[string]any{"name": "Main", "rows": 1, "columns": 1}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/api/racks", map[string]any{"name": "Huge", "rows": 27, "columns": 1}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, fmt.Sprintf("/api/racks/%d", id), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var r rackResponse
	decode(t, w, &r)
	assert.Equal(t, "Main", r.Name)

	w = ts.do(t, http.MethodGet, "/api/racks/999", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/api/racks/abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, fmt.Sprintf("/api/racks/%d", id), map[string]any{"rows": 3, "columns": 3, "name": "Main 2"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &r)
	assert.Equal(t, 3, r.Rows)
	assert.Equal(t, "Main 2", r.Name)
	assert.Len(t, ts.grid(t, id), 9)

	w = ts.do(t, http.MethodGet, "/api/racks", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []rack.RackSummary
	decode(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, 9, list[0].TotalCells)

	w = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/racks/%d", id), nil, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodGet, "/api/racks", nil, nil)
	decode(t, w, &list)
	assert.Empty(t, list)
}

func TestCellAllocationFlow(t *testing.T) {
	ts := newTestServer(t)
	rackID := ts.createRack(t, "Flow", 1, 2)
	tanaka := ts.createProfessor(t, "Prof. Tanaka")
	sato := ts.createProfessor(t, "Prof. Sato")

	cells := ts.grid(t, rackID)
	require.Len(t, cells, 2)
	a1 := cells["A1"]
	assert.Equal(t, int64(1), a1.Version)
	assert.Nil(t, a1.OccupantID)

	assignPath := fmt.Sprintf("/api/cells/%d/assign", a1.ID)
	releasePath := fmt.Sprintf("/api/cells/%d/release", a1.ID)

	w := ts.do(t, http.MethodPost, assignPath, map[string]any{"professor_id": tanaka, "version": 1}, map[string]string{"X-Actor-ID": "12"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res allocationResponse
	decode(t, w, &res)
	assert.Equal(t, "Cell A1 assigned to Prof. Tanaka", res.Message)
	assert.Equal(t, int64(2), res.Cell.Version)
	require.NotNil(t, res.Cell.OccupantName)
	assert.Equal(t, "Prof. Tanaka", *res.Cell.OccupantName)

	// The cached grid must reflect the write.
	a1 = ts.grid(t, rackID)["A1"]
	assert.Equal(t, int64(2), a1.Version)
	require.NotNil(t, a1.ColorCode)
	assert.Equal(t, "#10B981", *a1.ColorCode)

	w = ts.do(t, http.MethodPost, assignPath, map[string]any{"professor_id": sato, "version": 1}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodPost, assignPath, map[string]any{"professor_id": tanaka, "version": 2}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, assignPath, map[string]any{"professor_id": 999, "version": 2}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPost, assignPath, map[string]any{"version": 2}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/api/cells/999/assign", map[string]any{"professor_id": tanaka, "version": 1}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/professors/%d", tanaka), nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/racks/%d", rackID), nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, releasePath, map[string]any{"version": 2}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &res)
	assert.Equal(t, "Cell A1 released (was assigned to Prof. Tanaka)", res.Message)
	assert.Equal(t, int64(3), res.Cell.Version)
	assert.Nil(t, res.Cell.OccupantID)
	require.NotNil(t, res.PreviousOccupantID)
	assert.Equal(t, tanaka, *res.PreviousOccupantID)

	w = ts.do(t, http.MethodPost, releasePath, map[string]any{"version": 3}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var records []model.OccupancyRecord
	require.NoError(t, ts.db.Find(&records).Error)
	require.Len(t, records, 1)
	assert.Equal(t, int64(12), records[0].ActorID)
	assert.NotNil(t, records[0].ReleasedAt)
}

func TestResizeBlockedResponse(t *testing.T) {
	ts := newTestServer(t)
	rackID := ts.createRack(t, "Shrink", 3, 3)
	prof := ts.createProfessor(t, "Prof. Abe")
	c3 := ts.grid(t, rackID)["C3"]

	w := ts.do(t, http.MethodPost, fmt.Sprintf("/api/cells/%d/assign", c3.ID), map[string]any{"professor_id": prof, "version": 1}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPut, fmt.Sprintf("/api/racks/%d", rackID), map[string]any{"rows": 2, "columns": 2}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	var body struct {
		Rows      []string `json:"rows"`
		Columns   []int    `json:"columns"`
		Positions []string `json:"positions"`
	}
	decode(t, w, &body)
	assert.Equal(t, []string{"C"}, body.Rows)
	assert.Equal(t, []int{3}, body.Columns)
	assert.Equal(t, []string{"C3"}, body.Positions)
	assert.Len(t, ts.grid(t, rackID), 9)

	w = ts.do(t, http.MethodPut, fmt.Sprintf("/api/racks/%d", rackID), map[string]any{"rows": 0}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProfessorEndpoints(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createProfessor(t, "Prof. Ito")

	w := ts.do(t, http.MethodPost, "/api/professors", map[string]any{"name": "Prof. Ito"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/api/professors", map[string]any{"name": "Prof. Color", "color_code": "blue"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/api/professors", map[string]any{"name": "Prof. Default"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var created professorResponse
	decode(t, w, &created)
	assert.Equal(t, "#3B82F6", created.ColorCode)

	w = ts.do(t, http.MethodGet, "/api/professors", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []professorResponse
	decode(t, w, &list)
	require.Len(t, list, 2)
	assert.Equal(t, "Prof. Default", list[0].Name)

	w = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/professors/%d", id), nil, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/professors/%d", id), nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProfessorGetAndUpdate(t *testing.T) {
	ts := newTestServer(t)
	rackID := ts.createRack(t, "Lab", 1, 2)
	id := ts.createProfessor(t, "Prof. Ota")
	ts.createProfessor(t, "Prof. Endo")
	a1 := ts.grid(t, rackID)["A1"]

	w := ts.do(t, http.MethodPost, fmt.Sprintf("/api/cells/%d/assign", a1.ID), map[string]any{"professor_id": id, "version": 1}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	path := fmt.Sprintf("/api/professors/%d", id)
	w = ts.do(t, http.MethodGet, path, nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got professorResponse
	decode(t, w, &got)
	assert.Equal(t, "Prof. Ota", got.Name)
	assert.Equal(t, int64(1), got.OccupiedCells)

	w = ts.do(t, http.MethodPut, path, map[string]any{"name": "Prof. Endo"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, path, map[string]any{"color_code": "red"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, path, map[string]any{"name": "  "}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, path, map[string]any{
		"name":         " Prof. Ota-Sato ",
		"student_name": "Yui",
		"contact":      "x1234",
		"color_code":   "#F59E0B",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &got)
	assert.Equal(t, "Prof. Ota-Sato", got.Name)
	assert.Equal(t, "Yui", got.StudentName)
	assert.Equal(t, "x1234", got.Contact)
	assert.Equal(t, "#F59E0B", got.ColorCode)
	assert.Equal(t, int64(1), got.OccupiedCells)

	// The cached GET was flushed by the PUT.
	w = ts.do(t, http.MethodGet, path, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &got)
	assert.Equal(t, "Prof. Ota-Sato", got.Name)

	w = ts.do(t, http.MethodGet, "/api/professors/9999", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = ts.do(t, http.MethodPut, "/api/professors/9999", map[string]any{"contact": "x"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetOccupancy(t *testing.T) {
	ts := newTestServer(t)
	rackID := ts.createRack(t, "Ledger", 1, 1)
	prof := ts.createProfessor(t, "Prof. Mori")
	a1 := ts.grid(t, rackID)["A1"]

	w := ts.do(t, http.MethodPost, fmt.Sprintf("/api/cells/%d/assign", a1.ID), map[string]any{"professor_id": prof, "version": 1}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/api/occupancy?start=2026-06-01&end=2026-06-30", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var records []occupancyRecordResponse
	decode(t, w, &records)
	require.Len(t, records, 1)
	assert.Equal(t, "2026-06-15", records[0].AssignedOn)
	assert.Equal(t, 800, records[0].UnitCost)
	assert.Equal(t, int64(1), records[0].ActorID)
	assert.Nil(t, records[0].ReleasedAt)

	w = ts.do(t, http.MethodGet, "/api/occupancy?start=2026-07-01&end=2026-07-31", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &records)
	assert.Empty(t, records)

	w = ts.do(t, http.MethodGet, "/api/occupancy?start=2026-07-01&end=2026-06-01", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/api/occupancy?start=June", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type occupantLookupFails struct {
	store.Store
}

func (occupantLookupFails) GetProfessor(context.Context, int64) (*model.Professor, error) {
	return nil, errors.New("connection reset")
}

func TestWriteAllocation_LogsOccupantLookupFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	h := NewHandler(occupantLookupFails{}, nil, nil, &webpush.Options{}, zap.New(core))

	occupant := int64(7)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/cells/3/assign", nil)

	h.writeAllocation(c, &allocation.Result{
		Cell:    &model.Cell{ID: 3, RackID: 1, Position: "A3", OccupantID: &occupant, Version: 2},
		Message: "assigned",
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp allocationResponse
	decode(t, w, &resp)
	assert.Nil(t, resp.Cell.OccupantName)
	assert.Equal(t, &occupant, resp.Cell.OccupantID)

	entries := logs.FilterMessage("loading occupant failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(7), entries[0].ContextMap()["occupant_id"])
	assert.Equal(t, "connection reset", entries[0].ContextMap()["error"])
}
