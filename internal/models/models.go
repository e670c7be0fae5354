package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// User roles
const (
	RoleAdmin    = "admin"
	RoleStaff    = "staff"
	RoleCustomer = "customer"
)

// Product statuses
const (
	ProductStatusDraft     = "draft"
	ProductStatusPublished = "published"
	ProductStatusArchived  = "archived"
)

// Address types
const (
	AddressTypeShipping = "shipping"
	AddressTypeBilling  = "billing"
)

// Order statuses
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRefunded   = "refunded"
)

// Payment statuses
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// Payment methods
const (
	PaymentMethodCreditCard     = "credit_card"
	PaymentMethodMobileMoney    = "mobile_money"
	PaymentMethodBankTransfer   = "bank_transfer"
	PaymentMethodCashOnDelivery = "cash_on_delivery"
)

var orderStatuses = map[string]bool{
	OrderStatusPending:    true,
	OrderStatusConfirmed:  true,
	OrderStatusProcessing: true,
	OrderStatusShipped:    true,
	OrderStatusDelivered:  true,
	OrderStatusCancelled:  true,
	OrderStatusRefunded:   true,
}

var paymentStatuses = map[string]bool{
	PaymentStatusPending:  true,
	PaymentStatusPaid:     true,
	PaymentStatusFailed:   true,
	PaymentStatusRefunded: true,
}

var paymentMethods = map[string]bool{
	PaymentMethodCreditCard:     true,
	PaymentMethodMobileMoney:    true,
	PaymentMethodBankTransfer:   true,
	PaymentMethodCashOnDelivery: true,
}

// IsValidOrderStatus reports whether s is a recognized order status.
func IsValidOrderStatus(s string) bool { return orderStatuses[s] }

// IsValidPaymentStatus reports whether s is a recognized payment status.
func IsValidPaymentStatus(s string) bool { return paymentStatuses[s] }

// IsValidPaymentMethod reports whether s is a recognized payment method.
func IsValidPaymentMethod(s string) bool { return paymentMethods[s] }

// Attributes is a schemaless string-to-string map stored as a JSON column
// (variant attributes such as {"color": "Black", "condition": "New"}).
type Attributes map[string]string

func (a Attributes) Value() (driver.Value, error) {
	if a == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(a)
}

func (a *Attributes) Scan(src interface{}) error {
	if src == nil {
		*a = Attributes{}
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("attributes: cannot scan %T", src)
	}
	return json.Unmarshal(b, a)
}

// OptionMap maps an option key to its allowed values
// (e.g. {"color": ["Black", "White"]}). Stored as a JSON column.
type OptionMap map[string][]string

func (o OptionMap) Value() (driver.Value, error) {
	if o == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(o)
}

func (o *OptionMap) Scan(src interface{}) error {
	if src == nil {
		*o = OptionMap{}
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("options: cannot scan %T", src)
	}
	return json.Unmarshal(b, o)
}

// User is the authenticated principal. Password hash never leaves the server.
type User struct {
	ID            string     `db:"id" json:"id"`
	Email         string     `db:"email" json:"email"`
	PasswordHash  string     `db:"password_hash" json:"-"`
	FirstName     string     `db:"first_name" json:"first_name"`
	LastName      string     `db:"last_name" json:"last_name"`
	Phone         string     `db:"phone" json:"phone"`
	Role          string     `db:"role" json:"role"`
	EmailVerified bool       `db:"email_verified" json:"email_verified"`
	IsActive      bool       `db:"is_active" json:"is_active"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
	LastLoginAt   *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
}

// FullName returns the display name, falling back to the email local part.
func (u *User) FullName() string {
	if u.FirstName != "" && u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	for i := 0; i < len(u.Email); i++ {
		if u.Email[i] == '@' {
			return u.Email[:i]
		}
	}
	return u.Email
}

// IsStaff reports whether the user may act on any order.
func (u *User) IsStaff() bool {
	return u.Role == RoleAdmin || u.Role == RoleStaff
}

// Address is reusable for both shipping and billing. UserID is nil for
// guest-order addresses.
type Address struct {
	ID           string    `db:"id" json:"id"`
	UserID       *string   `db:"user_id" json:"user_id,omitempty"`
	AddressType  string    `db:"address_type" json:"address_type"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	Company      string    `db:"company" json:"company,omitempty"`
	Phone        string    `db:"phone" json:"phone"`
	Email        string    `db:"email" json:"email"`
	AddressLine1 string    `db:"address_line1" json:"address_line1"`
	AddressLine2 string    `db:"address_line2" json:"address_line2,omitempty"`
	City         string    `db:"city" json:"city"`
	State        string    `db:"state" json:"state"`
	PostalCode   string    `db:"postal_code" json:"postal_code"`
	Country      string    `db:"country" json:"country"`
	Instructions string    `db:"instructions" json:"instructions,omitempty"`
	IsDefault    bool      `db:"is_default" json:"is_default"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

func (a *Address) FullName() string {
	return a.FirstName + " " + a.LastName
}

// Category groups products.
type Category struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Slug        string    `db:"slug" json:"slug"`
	Description string    `db:"description" json:"description,omitempty"`
	ParentID    *string   `db:"parent_id" json:"parent_id,omitempty"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Product is a product group; purchasable units are its variants.
type Product struct {
	ID           string     `db:"id" json:"id"`
	Title        string     `db:"title" json:"title"`
	Slug         string     `db:"slug" json:"slug"`
	Description  string     `db:"description" json:"description"`
	CategoryID   *string    `db:"category_id" json:"category_id,omitempty"`
	Options      OptionMap  `db:"options" json:"options"`
	Status       string     `db:"status" json:"status"`
	IsFeatured   bool       `db:"is_featured" json:"is_featured"`
	IsBestseller bool       `db:"is_bestseller" json:"is_bestseller"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	PublishedAt  *time.Time `db:"published_at" json:"published_at,omitempty"`

	Variants []ProductVariant `db:"-" json:"variants,omitempty"`
}

// ProductVariant is the purchasable SKU: it owns price, discount and stock.
// Stock is mutated only through the store's ledger operations.
type ProductVariant struct {
	ID                string          `db:"id" json:"id"`
	ProductID         string          `db:"product_id" json:"product_id"`
	SKU               string          `db:"sku" json:"sku"`
	Attributes        Attributes      `db:"attributes" json:"attributes"`
	Price             decimal.Decimal `db:"price" json:"price"`
	DiscountAmount    decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	Stock             int             `db:"stock" json:"stock"`
	LowStockThreshold int             `db:"low_stock_threshold" json:"low_stock_threshold"`
	IsDefault         bool            `db:"is_default" json:"is_default"`
	IsActive          bool            `db:"is_active" json:"is_active"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// DiscountedPrice is the effective unit price: price - discount.
func (v *ProductVariant) DiscountedPrice() decimal.Decimal {
	return v.Price.Sub(v.DiscountAmount)
}

// DiscountPercentage returns discount/price*100, or zero when price is zero.
func (v *ProductVariant) DiscountPercentage() decimal.Decimal {
	if v.Price.IsPositive() && v.DiscountAmount.IsPositive() {
		return v.DiscountAmount.Div(v.Price).Mul(decimal.NewFromInt(100))
	}
	return decimal.Zero
}

// IsInStock reports whether the variant has any stock left.
func (v *ProductVariant) IsInStock() bool { return v.Stock > 0 }

// IsLowStock reports whether stock is at or below the alert threshold.
func (v *ProductVariant) IsLowStock() bool {
	return v.Stock > 0 && v.Stock <= v.LowStockThreshold
}

// Order is the persisted order header. Either UserID is set (customer order)
// or the Guest* contact fields are (guest order), never both.
type Order struct {
	ID             string  `db:"id" json:"id"`
	UserID         *string `db:"user_id" json:"user_id,omitempty"`
	GuestEmail     string  `db:"guest_email" json:"guest_email,omitempty"`
	GuestFirstName string  `db:"guest_first_name" json:"guest_first_name,omitempty"`
	GuestLastName  string  `db:"guest_last_name" json:"guest_last_name,omitempty"`
	GuestPhone     string  `db:"guest_phone" json:"guest_phone,omitempty"`

	OrderNumber   string `db:"order_number" json:"order_number"`
	Status        string `db:"status" json:"status"`
	PaymentStatus string `db:"payment_status" json:"payment_status"`
	PaymentMethod string `db:"payment_method" json:"payment_method"`

	ShippingAddressID string `db:"shipping_address_id" json:"shipping_address_id"`
	BillingAddressID  string `db:"billing_address_id" json:"billing_address_id"`

	Subtotal       decimal.Decimal `db:"subtotal" json:"subtotal"`
	ShippingCost   decimal.Decimal `db:"shipping_cost" json:"shipping_cost"`
	TaxAmount      decimal.Decimal `db:"tax_amount" json:"tax_amount"`
	TaxRate        decimal.Decimal `db:"tax_rate" json:"tax_rate"`
	DiscountAmount decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	Total          decimal.Decimal `db:"total" json:"total"`
	Currency       string          `db:"currency" json:"currency"`

	ShippingMethod    string `db:"shipping_method" json:"shipping_method,omitempty"`
	Carrier           string `db:"carrier" json:"carrier,omitempty"`
	PaymentIntentID   string `db:"payment_intent_id" json:"payment_intent_id,omitempty"`
	PaymentReceiptURL string `db:"payment_receipt_url" json:"payment_receipt_url,omitempty"`
	CustomerNote      string `db:"customer_note" json:"customer_note,omitempty"`
	AdminNote         string `db:"admin_note" json:"admin_note,omitempty"`
	EmailSent         bool   `db:"email_sent" json:"email_sent"`

	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	PaidAt      *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	ConfirmedAt *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`
	ShippedAt   *time.Time `db:"shipped_at" json:"shipped_at,omitempty"`
	DeliveredAt *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
	CancelledAt *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`

	Items []OrderItem `db:"-" json:"items,omitempty"`

	ShippingAddress *Address `db:"-" json:"shipping_address,omitempty"`
	BillingAddress  *Address `db:"-" json:"billing_address,omitempty"`
}

// IsGuest reports whether the order has no authenticated owner.
func (o *Order) IsGuest() bool { return o.UserID == nil }

// CanCancel reports whether the order is still in a cancellable state.
func (o *Order) CanCancel() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusConfirmed
}

// ComputeTotal recomputes the order total from its monetary components.
// Called on every persist so the stored total is never stale.
func (o *Order) ComputeTotal() {
	o.Total = o.Subtotal.Add(o.ShippingCost).Add(o.TaxAmount).Sub(o.DiscountAmount)
}

// ItemCount is the total quantity across all items.
func (o *Order) ItemCount() int {
	n := 0
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}

// OrderItem snapshots the product at order time; later variant or product
// edits never change what the customer bought.
type OrderItem struct {
	ID        string  `db:"id" json:"id"`
	OrderID   string  `db:"order_id" json:"order_id"`
	VariantID *string `db:"variant_id" json:"variant_id,omitempty"`

	ProductTitle      string     `db:"product_title" json:"product_title"`
	ProductSlug       string     `db:"product_slug" json:"product_slug"`
	SKU               string     `db:"sku" json:"sku"`
	VariantAttributes Attributes `db:"variant_attributes" json:"variant_attributes"`

	UnitPrice      decimal.Decimal `db:"unit_price" json:"unit_price"`
	DiscountAmount decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	Quantity       int             `db:"quantity" json:"quantity"`
	TotalPrice     decimal.Decimal `db:"total_price" json:"total_price"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ComputeTotalPrice sets total_price = (unit_price - discount) * quantity.
func (i *OrderItem) ComputeTotalPrice() {
	i.TotalPrice = i.DiscountedUnitPrice().Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// DiscountedUnitPrice is the per-unit price after the item-level discount.
func (i *OrderItem) DiscountedUnitPrice() decimal.Decimal {
	return i.UnitPrice.Sub(i.DiscountAmount)
}
