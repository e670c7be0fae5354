package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bernarddwumfour/estore-backend/internal/models"
	"github.com/bernarddwumfour/estore-backend/internal/redisclient"
	"github.com/bernarddwumfour/estore-backend/internal/store"
	"github.com/bernarddwumfour/estore-backend/internal/util"
)

// orderNumberRetries bounds how many times checkout retries the whole
// transaction when the generated order number collides.
const orderNumberRetries = 5

// statsCacheKey and statsCacheTTL control dashboard statistics caching.
const (
	statsCacheKey = "orders:statistics"
	statsCacheTTL = 60 * time.Second
)

// EventPublisher publishes order lifecycle events. The broker package
// provides the Kafka-backed implementation.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishOrderPaymentUpdated(ctx context.Context, event *models.OrderPaymentUpdatedEvent) error
}

// OrderConfig carries the business defaults applied when a checkout request
// leaves them out.
type OrderConfig struct {
	DefaultTaxRate      decimal.Decimal
	DefaultShippingCost decimal.Decimal
	DefaultCurrency     string
}

// OrderService handles checkout and order lifecycle business logic
type OrderService struct {
	store     *store.Store
	addresses *AddressService
	redis     *redisclient.Client
	events    EventPublisher
	cfg       OrderConfig
	logger    *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	st *store.Store,
	addresses *AddressService,
	redis *redisclient.Client,
	events EventPublisher,
	cfg OrderConfig,
) *OrderService {
	return &OrderService{
		store:     st,
		addresses: addresses,
		redis:     redis,
		events:    events,
		cfg:       cfg,
		logger:    util.GetLogger(),
	}
}

// CreateOrderRequest is the checkout payload.
type CreateOrderRequest struct {
	Items              []OrderItemRequest `json:"items"`
	ShippingAddress    *AddressData       `json:"shipping_address"`
	BillingAddress     *AddressData       `json:"billing_address"`
	UseSeparateBilling bool               `json:"use_separate_billing"`
	PaymentMethod      string             `json:"payment_method"`
	ShippingMethod     string             `json:"shipping_method"`
	CustomerNote       string             `json:"customer_note"`
	Currency           string             `json:"currency"`
	ShippingCost       *decimal.Decimal   `json:"shipping_cost"`
	TaxRate            *decimal.Decimal   `json:"tax_rate"`
	DiscountAmount     *decimal.Decimal   `json:"discount_amount"`

	GuestEmail     string `json:"guest_email"`
	GuestFirstName string `json:"guest_first_name"`
	GuestLastName  string `json:"guest_last_name"`
	GuestPhone     string `json:"guest_phone"`
}

// OrderItemRequest names a variant and quantity. UnitPrice exists only so a
// client that sends one gets rejected; prices are always looked up server-side.
type OrderItemRequest struct {
	VariantID string           `json:"variant_id"`
	Quantity  int              `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

func (s *OrderService) validateCreateRequest(req *CreateOrderRequest, user *models.User) error {
	fields := map[string]string{}

	if len(req.Items) == 0 {
		fields["items"] = "At least one item is required"
	}
	for i, item := range req.Items {
		if item.VariantID == "" {
			fields[fmt.Sprintf("items[%d].variant_id", i)] = "This field is required"
		}
		if item.Quantity < 1 {
			fields[fmt.Sprintf("items[%d].quantity", i)] = "Quantity must be at least 1"
		}
		if item.UnitPrice != nil {
			fields[fmt.Sprintf("items[%d].unit_price", i)] = "Prices are set by the server and cannot be supplied"
		}
	}

	if req.ShippingAddress == nil {
		fields["shipping_address"] = "This field is required"
	}
	if req.UseSeparateBilling && req.BillingAddress == nil {
		fields["billing_address"] = "Required when use_separate_billing is set"
	}

	if req.PaymentMethod == "" {
		fields["payment_method"] = "This field is required"
	} else if !models.IsValidPaymentMethod(req.PaymentMethod) {
		fields["payment_method"] = fmt.Sprintf("Invalid payment method: %s", req.PaymentMethod)
	}

	hasGuestFields := req.GuestEmail != "" || req.GuestFirstName != "" ||
		req.GuestLastName != "" || req.GuestPhone != ""

	if user != nil {
		if hasGuestFields {
			fields["guest_email"] = "Guest fields are not allowed on authenticated orders"
		}
	} else {
		guest := map[string]string{
			"guest_email":      req.GuestEmail,
			"guest_first_name": req.GuestFirstName,
			"guest_last_name":  req.GuestLastName,
			"guest_phone":      req.GuestPhone,
		}
		for name, value := range guest {
			if value == "" {
				fields[name] = "This field is required for guest checkout"
			}
		}
	}

	if len(fields) > 0 {
		return NewFieldErrors(fields)
	}
	return nil
}

// CreateOrder runs the whole checkout in one transaction: resolve addresses,
// price every line from the database, write the order and its items, and
// decrement stock. Any failure rolls everything back. A collision on the
// generated order number retries the transaction with a fresh number.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest, user *models.User) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.OrderCreateLatency.Observe(time.Since(start).Seconds())
	}()

	if err := s.validateCreateRequest(req, user); err != nil {
		util.OrdersFailedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	var order *models.Order
	var err error
	for attempt := 0; attempt < orderNumberRetries; attempt++ {
		order, err = s.createOrderTx(ctx, req, user)
		if err == nil {
			break
		}
		if store.IsUniqueViolation(err) {
			s.logger.Warn("Order number collision, retrying",
				zap.Int("attempt", attempt+1))
			continue
		}
		s.countCreateFailure(err)
		return nil, err
	}
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("order_number_exhausted").Inc()
		return nil, fmt.Errorf("generate unique order number: %w", err)
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("total", order.Total.String()),
		zap.Int("items", order.ItemCount()),
		zap.Bool("guest", order.IsGuest()))

	s.invalidateStatsCache(ctx)
	s.publishCreated(ctx, order, user)
	return order, nil
}

func (s *OrderService) countCreateFailure(err error) {
	var stockErr *InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		util.StockRejectionsTotal.Inc()
		util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
	default:
		var notFound *NotFoundError
		var validation *ValidationError
		switch {
		case errors.As(err, &notFound):
			util.OrdersFailedTotal.WithLabelValues("variant_not_found").Inc()
		case errors.As(err, &validation):
			util.OrdersFailedTotal.WithLabelValues("validation").Inc()
		default:
			util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		}
	}
}

func (s *OrderService) createOrderTx(ctx context.Context, req *CreateOrderRequest, user *models.User) (*models.Order, error) {
	order := &models.Order{
		ID:            uuid.New().String(),
		OrderNumber:   generateOrderNumber(),
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		PaymentMethod: req.PaymentMethod,

		ShippingMethod: req.ShippingMethod,
		CustomerNote:   req.CustomerNote,

		Currency:       s.cfg.DefaultCurrency,
		ShippingCost:   s.cfg.DefaultShippingCost,
		TaxRate:        s.cfg.DefaultTaxRate,
		DiscountAmount: decimal.Zero,
	}
	if req.Currency != "" {
		order.Currency = req.Currency
	}
	if req.ShippingCost != nil {
		order.ShippingCost = *req.ShippingCost
	}
	if req.TaxRate != nil {
		order.TaxRate = *req.TaxRate
	}
	if req.DiscountAmount != nil {
		order.DiscountAmount = *req.DiscountAmount
	}

	if user != nil {
		order.UserID = &user.ID
	} else {
		order.GuestEmail = req.GuestEmail
		order.GuestFirstName = req.GuestFirstName
		order.GuestLastName = req.GuestLastName
		order.GuestPhone = req.GuestPhone
	}

	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		shipping, err := s.addresses.ResolveTx(ctx, tx, req.ShippingAddress, user, models.AddressTypeShipping)
		if err != nil {
			return err
		}
		order.ShippingAddressID = shipping.ID
		order.ShippingAddress = shipping

		billing := shipping
		if req.UseSeparateBilling {
			billing, err = s.addresses.ResolveTx(ctx, tx, req.BillingAddress, user, models.AddressTypeBilling)
			if err != nil {
				return err
			}
		}
		order.BillingAddressID = billing.ID
		order.BillingAddress = billing

		subtotal := decimal.Zero
		items := make([]models.OrderItem, 0, len(req.Items))
		variants := make([]*store.VariantForOrder, 0, len(req.Items))

		for _, line := range req.Items {
			variant, err := s.store.GetVariantForOrderTx(ctx, tx, line.VariantID)
			if err != nil {
				if errors.Is(err, store.ErrVariantNotFound) {
					return NewNotFoundError(fmt.Sprintf("Product variant %s", line.VariantID))
				}
				return err
			}

			if line.Quantity > variant.Stock {
				return &InsufficientStockError{
					SKU:       variant.SKU,
					Available: variant.Stock,
					Requested: line.Quantity,
				}
			}

			item := models.OrderItem{
				ID:                uuid.New().String(),
				OrderID:           order.ID,
				VariantID:         &variant.ID,
				ProductTitle:      variant.ProductTitle,
				ProductSlug:       variant.ProductSlug,
				SKU:               variant.SKU,
				VariantAttributes: variant.Attributes,
				UnitPrice:         variant.DiscountedPrice(),
				DiscountAmount:    decimal.Zero,
				Quantity:          line.Quantity,
			}
			item.ComputeTotalPrice()

			subtotal = subtotal.Add(item.TotalPrice)
			items = append(items, item)
			variants = append(variants, variant)
		}

		order.Subtotal = subtotal
		order.TaxAmount = subtotal.Mul(order.TaxRate).Div(decimal.NewFromInt(100))

		if err := s.store.InsertOrderTx(ctx, tx, order); err != nil {
			return err
		}

		for i := range items {
			if err := s.store.InsertOrderItemTx(ctx, tx, &items[i]); err != nil {
				return err
			}
			if err := s.store.DecrementStockTx(ctx, tx, *items[i].VariantID, items[i].Quantity); err != nil {
				if errors.Is(err, store.ErrInsufficientStock) {
					return &InsufficientStockError{
						SKU:       variants[i].SKU,
						Available: variants[i].Stock,
						Requested: items[i].Quantity,
					}
				}
				return err
			}
		}

		order.Items = items
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// generateOrderNumber builds a human-readable order number such as
// ORD202608301234. Uniqueness is enforced by the database; the caller
// retries on collision.
func generateOrderNumber() string {
	return fmt.Sprintf("ORD%s%04d", time.Now().Format("20060102"), 1000+rand.Intn(9000))
}

// GetOrder retrieves an order by ID or order number, enforcing ownership.
// Guest orders are matched by the email supplied with the lookup.
func (s *OrderService) GetOrder(ctx context.Context, idOrNumber string, user *models.User, guestEmail string) (*models.Order, error) {
	order, err := s.store.GetOrderByIDOrNumber(ctx, idOrNumber)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			return nil, NewNotFoundError("Order")
		}
		return nil, err
	}

	if user != nil {
		if user.IsStaff() {
			return order, nil
		}
		if order.UserID != nil && *order.UserID != user.ID {
			return nil, NewPermissionDenied("You don't have permission to view this order")
		}
		return order, nil
	}

	if order.IsGuest() {
		if guestEmail == "" || guestEmail != order.GuestEmail {
			return nil, NewPermissionDenied("Email verification required for guest orders")
		}
		return order, nil
	}

	return nil, NewPermissionDenied("Authentication required to view this order")
}

// ListUserOrders retrieves the authenticated user's orders, newest first.
func (s *OrderService) ListUserOrders(ctx context.Context, user *models.User, filter store.OrderFilter) ([]models.Order, int, error) {
	filter.UserID = user.ID
	return s.store.ListOrders(ctx, filter)
}

// ListOrders retrieves any orders matching the filter (admin listing).
func (s *OrderService) ListOrders(ctx context.Context, filter store.OrderFilter) ([]models.Order, int, error) {
	if filter.Status != "" && !models.IsValidOrderStatus(filter.Status) {
		return nil, 0, NewValidationError("Invalid status: %s", filter.Status)
	}
	if filter.PaymentStatus != "" && !models.IsValidPaymentStatus(filter.PaymentStatus) {
		return nil, 0, NewValidationError("Invalid payment status: %s", filter.PaymentStatus)
	}
	return s.store.ListOrders(ctx, filter)
}

// GetStatistics returns dashboard aggregates, cached briefly in Redis.
func (s *OrderService) GetStatistics(ctx context.Context) (*store.OrderStats, error) {
	var cached store.OrderStats
	if ok, _ := s.redis.GetJSON(ctx, statsCacheKey, &cached); ok {
		return &cached, nil
	}

	stats, err := s.store.GetOrderStatistics(ctx)
	if err != nil {
		return nil, err
	}
	s.redis.SetJSON(ctx, statsCacheKey, stats, statsCacheTTL)
	return stats, nil
}

func (s *OrderService) invalidateStatsCache(ctx context.Context) {
	s.redis.Delete(ctx, statsCacheKey)
}

// CancelOrder cancels a pending or confirmed order and restores the stock it
// held, both inside one transaction. A second cancel fails the state check.
func (s *OrderService) CancelOrder(ctx context.Context, idOrNumber string, actor *models.User, reason string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CancelOrder")
	defer span.End()

	order, err := s.store.GetOrderByIDOrNumber(ctx, idOrNumber)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			return nil, NewNotFoundError("Order")
		}
		return nil, err
	}

	if actor != nil && !actor.IsStaff() {
		if order.UserID == nil || *order.UserID != actor.ID {
			return nil, NewPermissionDenied("You don't have permission to cancel this order")
		}
	}

	if !order.CanCancel() {
		return nil, NewInvalidState("Order %s cannot be cancelled in status %s", order.OrderNumber, order.Status)
	}

	now := time.Now()
	order.Status = models.OrderStatusCancelled
	order.CancelledAt = &now
	appendAdminNote(order, cancelNote(actor, reason))

	err = s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		// The guarded claim serializes concurrent cancels; only the
		// transaction that flips the status gets to restock.
		if err := s.store.ClaimCancellationTx(ctx, tx, order.ID); err != nil {
			return err
		}
		for _, item := range order.Items {
			if item.VariantID == nil {
				continue
			}
			if err := s.store.IncrementStockTx(ctx, tx, *item.VariantID, item.Quantity); err != nil {
				return err
			}
		}
		return s.store.UpdateOrderTx(ctx, tx, order)
	})
	if err != nil {
		if errors.Is(err, store.ErrOrderNotCancellable) {
			return nil, NewInvalidState("Order %s cannot be cancelled in its current status", order.OrderNumber)
		}
		return nil, err
	}

	util.OrdersCancelledTotal.Inc()
	s.logger.Info("Order cancelled",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("reason", reason))

	s.invalidateStatsCache(ctx)
	s.publishCancelled(ctx, order, reason)
	return order, nil
}

func cancelNote(actor *models.User, reason string) string {
	by := "customer"
	if actor != nil && actor.IsStaff() {
		by = fmt.Sprintf("staff (%s)", actor.Email)
	}
	if reason == "" {
		return fmt.Sprintf("Cancelled by %s", by)
	}
	return fmt.Sprintf("Cancelled by %s: %s", by, reason)
}

// UpdateStatus sets the order status (admin operation). Any recognized status
// is accepted regardless of the current one so support staff can correct
// mistakes; stock only moves through CancelOrder.
func (s *OrderService) UpdateStatus(ctx context.Context, idOrNumber, status, adminNote, carrier string) (*models.Order, error) {
	if !models.IsValidOrderStatus(status) {
		return nil, NewValidationError("Invalid status: %s", status)
	}

	order, err := s.store.GetOrderByIDOrNumber(ctx, idOrNumber)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			return nil, NewNotFoundError("Order")
		}
		return nil, err
	}

	oldStatus := order.Status
	order.Status = status
	if carrier != "" {
		order.Carrier = carrier
	}
	if adminNote != "" {
		appendAdminNote(order, adminNote)
	}

	now := time.Now()
	switch status {
	case models.OrderStatusConfirmed:
		if order.ConfirmedAt == nil {
			order.ConfirmedAt = &now
		}
	case models.OrderStatusShipped:
		if order.ShippedAt == nil {
			order.ShippedAt = &now
		}
	case models.OrderStatusDelivered:
		if order.DeliveredAt == nil {
			order.DeliveredAt = &now
		}
	case models.OrderStatusCancelled:
		if order.CancelledAt == nil {
			order.CancelledAt = &now
		}
	}

	if err := s.store.UpdateOrder(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info("Order status updated",
		zap.String("order_number", order.OrderNumber),
		zap.String("old_status", oldStatus),
		zap.String("new_status", status))

	s.invalidateStatsCache(ctx)
	s.publishStatusChanged(ctx, order, oldStatus)
	return order, nil
}

// UpdatePaymentStatus sets the payment status (admin or payment-webhook
// operation). A payment arriving while the order is still pending confirms it.
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, idOrNumber, paymentStatus, intentID, receiptURL string) (*models.Order, error) {
	if !models.IsValidPaymentStatus(paymentStatus) {
		return nil, NewValidationError("Invalid payment status: %s", paymentStatus)
	}

	order, err := s.store.GetOrderByIDOrNumber(ctx, idOrNumber)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			return nil, NewNotFoundError("Order")
		}
		return nil, err
	}

	order.PaymentStatus = paymentStatus
	if intentID != "" {
		order.PaymentIntentID = intentID
	}
	if receiptURL != "" {
		order.PaymentReceiptURL = receiptURL
	}

	if paymentStatus == models.PaymentStatusPaid {
		now := time.Now()
		if order.PaidAt == nil {
			order.PaidAt = &now
		}
		if order.Status == models.OrderStatusPending {
			order.Status = models.OrderStatusConfirmed
			if order.ConfirmedAt == nil {
				order.ConfirmedAt = &now
			}
		}
	}

	if err := s.store.UpdateOrder(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info("Order payment updated",
		zap.String("order_number", order.OrderNumber),
		zap.String("payment_status", paymentStatus),
		zap.String("order_status", order.Status))

	s.invalidateStatsCache(ctx)
	s.publishPaymentUpdated(ctx, order)
	return order, nil
}

// appendAdminNote appends a timestamped line to the order's admin note.
func appendAdminNote(order *models.Order, note string) {
	line := fmt.Sprintf("[%s] %s", time.Now().Format("2006-01-02 15:04"), note)
	if order.AdminNote == "" {
		order.AdminNote = line
		return
	}
	order.AdminNote += "\n" + line
}

// customerContact resolves the recipient for order notifications.
func (s *OrderService) customerContact(ctx context.Context, order *models.Order) (name, email string) {
	if order.UserID != nil {
		user, err := s.store.GetUserByID(ctx, *order.UserID)
		if err != nil {
			s.logger.Warn("Failed to load order customer",
				zap.String("order_id", order.ID), zap.Error(err))
			return "", ""
		}
		return user.FullName(), user.Email
	}
	return order.GuestFirstName + " " + order.GuestLastName, order.GuestEmail
}

func (s *OrderService) publishCreated(ctx context.Context, order *models.Order, user *models.User) {
	if s.events == nil {
		return
	}

	var name, email string
	if user != nil {
		name, email = user.FullName(), user.Email
	} else {
		name, email = s.customerContact(ctx, order)
	}

	items := make([]models.OrderItemData, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, models.OrderItemData{
			SKU:          item.SKU,
			ProductTitle: item.ProductTitle,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
		})
	}

	event := &models.OrderCreatedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeOrderCreated),
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerName:  name,
		CustomerEmail: email,
		Total:         order.Total,
		Currency:      order.Currency,
		Items:         items,
	}
	if err := s.events.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}
}

func (s *OrderService) publishCancelled(ctx context.Context, order *models.Order, reason string) {
	if s.events == nil {
		return
	}
	_, email := s.customerContact(ctx, order)
	event := &models.OrderCancelledEvent{
		BaseEvent:     newBaseEvent(models.EventTypeOrderCancelled),
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerEmail: email,
		Reason:        reason,
	}
	if err := s.events.PublishOrderCancelled(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
	}
}

func (s *OrderService) publishStatusChanged(ctx context.Context, order *models.Order, oldStatus string) {
	if s.events == nil {
		return
	}
	_, email := s.customerContact(ctx, order)
	event := &models.OrderStatusChangedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerEmail: email,
		OldStatus:     oldStatus,
		NewStatus:     order.Status,
	}
	if err := s.events.PublishOrderStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderStatusChanged event", zap.Error(err))
	}
}

func (s *OrderService) publishPaymentUpdated(ctx context.Context, order *models.Order) {
	if s.events == nil {
		return
	}
	_, email := s.customerContact(ctx, order)
	event := &models.OrderPaymentUpdatedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeOrderPaymentUpdated),
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerEmail: email,
		PaymentStatus: order.PaymentStatus,
		OrderStatus:   order.Status,
	}
	if err := s.events.PublishOrderPaymentUpdated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPaymentUpdated event", zap.Error(err))
	}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
