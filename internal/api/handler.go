package api

import (
	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"cagerack-backend/internal/allocation"
	"cagerack-backend/internal/rack"
	"cagerack-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	racks   *rack.Service
	alloc   *allocation.Service
	webpush *webpush.Options
	log     *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, racks *rack.Service, alloc *allocation.Service, webpushOptions *webpush.Options, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		store:   s,
		racks:   racks,
		alloc:   alloc,
		webpush: webpushOptions,
		log:     log,
	}
}
