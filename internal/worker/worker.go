package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bernarddwumfour/estore-backend/internal/broker"
	"github.com/bernarddwumfour/estore-backend/internal/mailer"
	"github.com/bernarddwumfour/estore-backend/internal/models"
	"github.com/bernarddwumfour/estore-backend/internal/service"
	"github.com/bernarddwumfour/estore-backend/internal/store"
	"github.com/bernarddwumfour/estore-backend/internal/util"
)

// NotificationWorker consumes order events and sends customer emails.
// Email failures are logged and never retried; the order itself is already
// committed, notifications are best effort.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	mailer       *mailer.Mailer
	store        *store.Store
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, m *mailer.Mailer, st *store.Store) *NotificationWorker {
	w := &NotificationWorker{
		consumer: consumer,
		mailer:   m,
		store:    st,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderCreated(w.handleOrderCreated)
	eventHandler.OnOrderCancelled(w.handleOrderCancelled)
	eventHandler.OnOrderStatusChanged(w.handleStatusChanged)
	eventHandler.OnOrderPaymentUpdated(w.handlePaymentUpdated)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}

func (w *NotificationWorker) handleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	if err := w.mailer.SendOrderConfirmation(ctx, event); err != nil {
		w.logger.Error("Failed to send order confirmation",
			zap.String("order_number", event.OrderNumber), zap.Error(err))
		return nil
	}
	if err := w.store.MarkEmailSent(ctx, event.OrderID); err != nil {
		w.logger.Warn("Failed to mark confirmation email sent",
			zap.String("order_id", event.OrderID), zap.Error(err))
	}
	return nil
}

func (w *NotificationWorker) handleOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	if err := w.mailer.SendOrderCancelled(ctx, event); err != nil {
		w.logger.Error("Failed to send cancellation email",
			zap.String("order_number", event.OrderNumber), zap.Error(err))
	}
	return nil
}

func (w *NotificationWorker) handleStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	// Cancellations already get their own email.
	if event.NewStatus == models.OrderStatusCancelled {
		return nil
	}
	if err := w.mailer.SendStatusUpdate(ctx, event); err != nil {
		w.logger.Error("Failed to send status update email",
			zap.String("order_number", event.OrderNumber), zap.Error(err))
	}
	return nil
}

func (w *NotificationWorker) handlePaymentUpdated(ctx context.Context, event *models.OrderPaymentUpdatedEvent) error {
	if err := w.mailer.SendPaymentUpdate(ctx, event); err != nil {
		w.logger.Error("Failed to send payment update email",
			zap.String("order_number", event.OrderNumber), zap.Error(err))
	}
	return nil
}

// StockSnapshotWorker refreshes the Redis stock snapshot on an interval so
// storefront availability badges stay close to the database truth.
type StockSnapshotWorker struct {
	catalog  *service.CatalogService
	interval time.Duration
	logger   *zap.Logger
}

// NewStockSnapshotWorker creates a new snapshot worker
func NewStockSnapshotWorker(catalog *service.CatalogService, interval time.Duration) *StockSnapshotWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &StockSnapshotWorker{
		catalog:  catalog,
		interval: interval,
		logger:   util.GetLogger(),
	}
}

// Start syncs once immediately, then on every tick until ctx is cancelled.
func (w *StockSnapshotWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting stock snapshot worker",
		zap.Duration("interval", w.interval))

	if err := w.catalog.SyncStockSnapshot(ctx); err != nil {
		w.logger.Error("Initial stock snapshot sync failed", zap.Error(err))
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopping stock snapshot worker")
			return ctx.Err()
		case <-ticker.C:
			if err := w.catalog.SyncStockSnapshot(ctx); err != nil {
				w.logger.Error("Stock snapshot sync failed", zap.Error(err))
			}
		}
	}
}
