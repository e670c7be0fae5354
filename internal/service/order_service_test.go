package service

import (
	"regexp"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/bernarddwumfour/estore-backend/internal/models"
)

func validAddressData() *AddressData {
	return &AddressData{
		FirstName:    "Kofi",
		LastName:     "Owusu",
		Phone:        "+233201234567",
		Email:        "kofi@example.com",
		AddressLine1: "12 Ring Road",
		City:         "Accra",
		State:        "Greater Accra",
		PostalCode:   "GA-123",
		Country:      "GH",
	}
}

func validGuestRequest() *CreateOrderRequest {
	return &CreateOrderRequest{
		Items:           []OrderItemRequest{{VariantID: "v-1", Quantity: 2}},
		ShippingAddress: validAddressData(),
		PaymentMethod:   models.PaymentMethodMobileMoney,
		GuestEmail:      "kofi@example.com",
		GuestFirstName:  "Kofi",
		GuestLastName:   "Owusu",
		GuestPhone:      "+233201234567",
	}
}

func TestValidateCreateRequestGuest(t *testing.T) {
	s := &OrderService{}

	assert.NoError(t, s.validateCreateRequest(validGuestRequest(), nil))
}

func TestValidateCreateRequestGuestMissingContact(t *testing.T) {
	s := &OrderService{}

	req := validGuestRequest()
	req.GuestEmail = ""
	req.GuestPhone = ""

	err := s.validateCreateRequest(req, nil)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "guest_email")
	assert.Contains(t, verr.Fields, "guest_phone")
	assert.NotContains(t, verr.Fields, "guest_first_name")
}

func TestValidateCreateRequestAuthenticatedRejectsGuestFields(t *testing.T) {
	s := &OrderService{}
	user := &models.User{ID: "u-1", Role: models.RoleCustomer}

	req := validGuestRequest()

	err := s.validateCreateRequest(req, user)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "guest_email")
}

func TestValidateCreateRequestRejectsClientPrice(t *testing.T) {
	s := &OrderService{}
	user := &models.User{ID: "u-1", Role: models.RoleCustomer}

	price := decimal.NewFromInt(1)
	req := &CreateOrderRequest{
		Items:           []OrderItemRequest{{VariantID: "v-1", Quantity: 1, UnitPrice: &price}},
		ShippingAddress: validAddressData(),
		PaymentMethod:   models.PaymentMethodCreditCard,
	}

	err := s.validateCreateRequest(req, user)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "items[0].unit_price")
}

func TestValidateCreateRequestBadItems(t *testing.T) {
	s := &OrderService{}
	user := &models.User{ID: "u-1"}

	req := &CreateOrderRequest{
		Items:           []OrderItemRequest{{VariantID: "", Quantity: 0}},
		ShippingAddress: validAddressData(),
		PaymentMethod:   "paypal",
	}

	err := s.validateCreateRequest(req, user)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "items[0].variant_id")
	assert.Contains(t, verr.Fields, "items[0].quantity")
	assert.Contains(t, verr.Fields, "payment_method")
}

func TestValidateCreateRequestEmptyOrder(t *testing.T) {
	s := &OrderService{}

	err := s.validateCreateRequest(&CreateOrderRequest{}, &models.User{ID: "u-1"})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "items")
	assert.Contains(t, verr.Fields, "shipping_address")
}

func TestGenerateOrderNumber(t *testing.T) {
	pattern := regexp.MustCompile(`^ORD\d{8}\d{4}$`)

	for i := 0; i < 20; i++ {
		number := generateOrderNumber()
		assert.Regexp(t, pattern, number)
	}
}

func TestInsufficientStockMessage(t *testing.T) {
	err := &InsufficientStockError{SKU: "TSHIRT-BLK-M", Available: 2, Requested: 5}
	assert.Equal(t, "Insufficient stock for TSHIRT-BLK-M. Available: 2, Requested: 5", err.Error())
}

// Mirrors a full checkout price computation: two lines with a per-variant
// discount, 8.5% tax and flat shipping.
func TestCheckoutMoneyMath(t *testing.T) {
	lineOne := &models.OrderItem{UnitPrice: dec("45.00"), Quantity: 2}
	lineOne.ComputeTotalPrice()
	lineTwo := &models.OrderItem{UnitPrice: dec("30.00"), Quantity: 1}
	lineTwo.ComputeTotalPrice()

	subtotal := lineOne.TotalPrice.Add(lineTwo.TotalPrice)
	assert.True(t, subtotal.Equal(dec("120.00")))

	order := &models.Order{
		Subtotal:     subtotal,
		TaxRate:      dec("8.5"),
		ShippingCost: dec("10.00"),
	}
	order.TaxAmount = order.Subtotal.Mul(order.TaxRate).Div(decimal.NewFromInt(100))
	order.ComputeTotal()

	assert.True(t, order.TaxAmount.Equal(dec("10.20")), "tax %s", order.TaxAmount)
	assert.True(t, order.Total.Equal(dec("140.20")), "total %s", order.Total)
}

func TestAppendAdminNote(t *testing.T) {
	order := &models.Order{}

	appendAdminNote(order, "first note")
	assert.Contains(t, order.AdminNote, "first note")

	appendAdminNote(order, "second note")
	assert.Contains(t, order.AdminNote, "first note")
	assert.Contains(t, order.AdminNote, "second note")
	assert.Contains(t, order.AdminNote, "\n")
}

func TestCancelNote(t *testing.T) {
	staff := &models.User{Role: models.RoleStaff, Email: "ops@example.com"}
	assert.Equal(t, "Cancelled by staff (ops@example.com): damaged stock", cancelNote(staff, "damaged stock"))

	customer := &models.User{Role: models.RoleCustomer}
	assert.Equal(t, "Cancelled by customer", cancelNote(customer, ""))
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}
