package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"seat-allocation-backend/internal/model"
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

// Payload is the JSON body delivered to the service worker.
type Payload struct {
	Title        string `json:"title"`
	Body         string `json:"body"`
	AllocationID string `json:"allocationId"`
	Tier         string `json:"tier"`
}

// WorkerPool pushes escalation alerts to the devices of the allocation's F&B manager.
type WorkerPool struct {
	size    int
	jobs    chan model.EscalationAlert
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
	logger  *zap.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size, queueSize int, db *gorm.DB, webpushOptions *webpush.Options, logger *zap.Logger) *WorkerPool {
	if queueSize < size {
		queueSize = size
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan model.EscalationAlert, queueSize),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		logger:  logger.With(zap.String("component", "notification")),
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log := wp.logger.With(zap.Int("worker", id))
	log.Debug("worker started")
	for {
		select {
		case alert := <-wp.jobs:
			log.Debug("processing alert", zap.String("allocation_id", alert.AllocationID))
			wp.notifyManager(ctx, alert)
		case <-ctx.Done():
			log.Debug("worker shutting down")
			return
		}
	}
}

// Dispatch queues an alert without blocking. It reports false when the queue
// is full and the alert was dropped.
func (wp *WorkerPool) Dispatch(alert model.EscalationAlert) bool {
	select {
	case wp.jobs <- alert:
		return true
	default:
		wp.logger.Warn("notification queue full, dropping alert", zap.String("allocation_id", alert.AllocationID))
		return false
	}
}

// Alert queues the alert for delivery.
func (wp *WorkerPool) Alert(_ context.Context, alert model.EscalationAlert) error {
	if !wp.Dispatch(alert) {
		return fmt.Errorf("%w: notification queue full", model.ErrOperation)
	}
	return nil
}

func buildPayload(alert model.EscalationAlert) ([]byte, error) {
	title := fmt.Sprintf("Room %s needs attention", alert.RoomNumber)
	if alert.CallingFlag == model.CallingForCheckout {
		title = fmt.Sprintf("Room %s is waiting to check out", alert.RoomNumber)
	}
	body := fmt.Sprintf("%s has been calling for %ds", alert.GuestName, alert.ElapsedSeconds)
	if len(alert.SeatNumbers) > 0 {
		body = fmt.Sprintf("%s at %s has been calling for %ds", alert.GuestName, strings.Join(alert.SeatNumbers, ", "), alert.ElapsedSeconds)
	}
	return json.Marshal(Payload{Title: title, Body: body, AllocationID: alert.AllocationID, Tier: alert.Tier})
}

func (wp *WorkerPool) notifyManager(ctx context.Context, alert model.EscalationAlert) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Where("staff_id = ?", alert.FBManagerID).
		Find(&subscriptions).Error
	if err != nil {
		wp.logger.Error("failed to fetch subscriptions", zap.String("staff_id", alert.FBManagerID), zap.Error(err))
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := buildPayload(alert)
	if err != nil {
		wp.logger.Error("failed to build payload", zap.Error(err))
		return
	}

	wp.logger.Info("sending escalation notifications",
		zap.String("allocation_id", alert.AllocationID),
		zap.Int("subscriptions", len(subscriptions)))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.logger.Warn("failed to send notification", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		wp.logger.Info("subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			wp.logger.Warn("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}
}
