package notification

import (
	"context"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cagerack-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// FreedCell identifies a cell that has just been released.
type FreedCell struct {
	RackID   int64
	CellID   int64
	Position string
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan FreedCell
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
	log     *zap.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options, log *zap.Logger) *WorkerPool {
	if log == nil {
		log = zap.NewNop()
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan FreedCell, size*16), // Buffered channel
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
		log:     log,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debug("notification worker started", zap.Int("worker", id))
	for {
		select {
		case job := <-wp.jobs:
			wp.log.Debug("processing freed cell",
				zap.Int("worker", id), zap.Int64("rack_id", job.RackID), zap.Int64("cell_id", job.CellID))
			wp.sendNotificationsForCell(ctx, job)
		case <-ctx.Done():
			wp.log.Debug("notification worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Dispatch queues a job without blocking; when the queue is full the job
// is dropped, since a missed "now available" push is harmless.
func (wp *WorkerPool) Dispatch(job FreedCell) {
	select {
	case wp.jobs <- job:
	default:
		wp.log.Warn("notification queue full, dropping job",
			zap.Int64("rack_id", job.RackID), zap.Int64("cell_id", job.CellID))
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan FreedCell {
	return wp.jobs
}

// sendNotificationsForCell pushes to every subscription watching the rack.
func (wp *WorkerPool) sendNotificationsForCell(ctx context.Context, job FreedCell) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_rack_mapping srm ON srm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("srm.rack_id = ?", job.RackID).
		Find(&subscriptions).Error
	if err != nil {
		wp.log.Error("fetching subscriptions failed", zap.Int64("rack_id", job.RackID), zap.Error(err))
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	wp.log.Info("sending availability notifications",
		zap.Int("count", len(subscriptions)), zap.Int64("rack_id", job.RackID))

	var rack model.Rack
	rackLabel := fmt.Sprintf("%d", job.RackID)
	if err := wp.db.WithContext(ctx).
		Select("name").
		First(&rack, job.RackID).Error; err != nil {
		wp.log.Warn("fetching rack name failed", zap.Int64("rack_id", job.RackID), zap.Error(err))
	} else if rack.Name != "" {
		rackLabel = rack.Name
	}

	message := fmt.Sprintf("Cage %s in rack %s is now available", job.Position, rackLabel)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, []byte(message))
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	// Manually construct the webpush.Subscription object
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.log.Warn("sending notification failed", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		wp.log.Info("subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			wp.log.Warn("deleting expired subscription failed", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}
}
