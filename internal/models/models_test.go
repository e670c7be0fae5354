package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestComputeTotal(t *testing.T) {
	order := &Order{
		Subtotal:       dec("100.00"),
		ShippingCost:   dec("10.00"),
		TaxAmount:      dec("8.25"),
		DiscountAmount: dec("5.00"),
	}

	order.ComputeTotal()

	assert.True(t, order.Total.Equal(dec("113.25")), "got %s", order.Total)
}

func TestComputeTotalPrice(t *testing.T) {
	item := &OrderItem{
		UnitPrice:      dec("25.50"),
		DiscountAmount: dec("0.50"),
		Quantity:       3,
	}

	item.ComputeTotalPrice()

	assert.True(t, item.DiscountedUnitPrice().Equal(dec("25.00")), "got %s", item.DiscountedUnitPrice())
	assert.True(t, item.TotalPrice.Equal(dec("75.00")), "got %s", item.TotalPrice)
}

func TestItemCount(t *testing.T) {
	order := &Order{Items: []OrderItem{{Quantity: 2}, {Quantity: 3}}}
	assert.Equal(t, 5, order.ItemCount())
	assert.Equal(t, 0, (&Order{}).ItemCount())
}

func TestDiscountedPrice(t *testing.T) {
	v := &ProductVariant{Price: dec("199.99"), DiscountAmount: dec("20.00")}
	assert.True(t, v.DiscountedPrice().Equal(dec("179.99")))

	pct := v.DiscountPercentage()
	assert.True(t, pct.GreaterThan(dec("10")) && pct.LessThan(dec("10.01")), "got %s", pct)

	free := &ProductVariant{Price: decimal.Zero, DiscountAmount: dec("5")}
	assert.True(t, free.DiscountPercentage().IsZero())
}

func TestCanCancel(t *testing.T) {
	cases := map[string]bool{
		OrderStatusPending:    true,
		OrderStatusConfirmed:  true,
		OrderStatusProcessing: false,
		OrderStatusShipped:    false,
		OrderStatusDelivered:  false,
		OrderStatusCancelled:  false,
		OrderStatusRefunded:   false,
	}

	for status, want := range cases {
		order := &Order{Status: status}
		assert.Equal(t, want, order.CanCancel(), "status %s", status)
	}
}

func TestIsGuest(t *testing.T) {
	userID := "u-1"
	assert.False(t, (&Order{UserID: &userID}).IsGuest())
	assert.True(t, (&Order{GuestEmail: "g@example.com"}).IsGuest())
}

func TestUserFullName(t *testing.T) {
	u := &User{FirstName: "Ama", LastName: "Mensah", Email: "ama@example.com"}
	assert.Equal(t, "Ama Mensah", u.FullName())

	noName := &User{Email: "ama@example.com"}
	assert.Equal(t, "ama", noName.FullName())
}

func TestIsLowStock(t *testing.T) {
	v := &ProductVariant{Stock: 3, LowStockThreshold: 5}
	assert.True(t, v.IsLowStock())
	assert.True(t, v.IsInStock())

	v.Stock = 0
	assert.False(t, v.IsLowStock())
	assert.False(t, v.IsInStock())

	v.Stock = 6
	assert.False(t, v.IsLowStock())
}

func TestStatusValidation(t *testing.T) {
	assert.True(t, IsValidOrderStatus(OrderStatusShipped))
	assert.False(t, IsValidOrderStatus("shiped"))

	assert.True(t, IsValidPaymentStatus(PaymentStatusPaid))
	assert.False(t, IsValidPaymentStatus("completed"))

	assert.True(t, IsValidPaymentMethod(PaymentMethodMobileMoney))
	assert.False(t, IsValidPaymentMethod("paypal"))
}
