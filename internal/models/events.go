package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderCreated        = "ORDER_CREATED"
	EventTypeOrderCancelled      = "ORDER_CANCELLED"
	EventTypeOrderStatusChanged  = "ORDER_STATUS_CHANGED"
	EventTypeOrderPaymentUpdated = "ORDER_PAYMENT_UPDATED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderItemData represents item data carried in events
type OrderItemData struct {
	SKU          string          `json:"sku"`
	ProductTitle string          `json:"product_title"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
}

// OrderCreatedEvent published when an order is created
type OrderCreatedEvent struct {
	BaseEvent
	OrderID       string          `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency"`
	Items         []OrderItemData `json:"items"`
}

// OrderCancelledEvent published when an order is cancelled
type OrderCancelledEvent struct {
	BaseEvent
	OrderID       string `json:"order_id"`
	OrderNumber   string `json:"order_number"`
	CustomerEmail string `json:"customer_email"`
	Reason        string `json:"reason"`
}

// OrderStatusChangedEvent published on admin status updates
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID       string `json:"order_id"`
	OrderNumber   string `json:"order_number"`
	CustomerEmail string `json:"customer_email"`
	OldStatus     string `json:"old_status"`
	NewStatus     string `json:"new_status"`
}

// OrderPaymentUpdatedEvent published when payment status changes
type OrderPaymentUpdatedEvent struct {
	BaseEvent
	OrderID       string `json:"order_id"`
	OrderNumber   string `json:"order_number"`
	CustomerEmail string `json:"customer_email"`
	PaymentStatus string `json:"payment_status"`
	OrderStatus   string `json:"order_status"`
}
