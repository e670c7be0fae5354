package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/bernarddwumfour/estore-backend/internal/models"
)

// InsertOrderTx inserts the order header inside the checkout transaction.
// The total is recomputed immediately before the write so the stored value
// always satisfies total = subtotal + shipping + tax - discount.
func (s *Store) InsertOrderTx(ctx context.Context, tx *sqlx.Tx, order *models.Order) error {
	order.ComputeTotal()
	return tx.QueryRowxContext(ctx,
		`INSERT INTO orders (
			id, user_id, guest_email, guest_first_name, guest_last_name, guest_phone,
			order_number, status, payment_status, payment_method,
			shipping_address_id, billing_address_id,
			subtotal, shipping_cost, tax_amount, tax_rate, discount_amount, total,
			currency, shipping_method, customer_note)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		         $13, $14, $15, $16, $17, $18, $19, $20, $21)
		 RETURNING created_at, updated_at`,
		order.ID, order.UserID, order.GuestEmail, order.GuestFirstName,
		order.GuestLastName, order.GuestPhone, order.OrderNumber, order.Status,
		order.PaymentStatus, order.PaymentMethod, order.ShippingAddressID,
		order.BillingAddressID, order.Subtotal, order.ShippingCost,
		order.TaxAmount, order.TaxRate, order.DiscountAmount, order.Total,
		order.Currency, order.ShippingMethod, order.CustomerNote,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
}

// InsertOrderItemTx inserts an order item inside the checkout transaction.
// The item total is recomputed here for the same reason as the header total.
func (s *Store) InsertOrderItemTx(ctx context.Context, tx *sqlx.Tx, item *models.OrderItem) error {
	item.ComputeTotalPrice()
	return tx.QueryRowxContext(ctx,
		`INSERT INTO order_items (
			id, order_id, variant_id, product_title, product_slug, sku,
			variant_attributes, unit_price, discount_amount, quantity, total_price)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING created_at`,
		item.ID, item.OrderID, item.VariantID, item.ProductTitle,
		item.ProductSlug, item.SKU, item.VariantAttributes, item.UnitPrice,
		item.DiscountAmount, item.Quantity, item.TotalPrice,
	).Scan(&item.CreatedAt)
}

// GetOrderByIDOrNumber looks an order up by primary key or by its
// human-readable order number; a miss on both is a single not-found.
func (s *Store) GetOrderByIDOrNumber(ctx context.Context, idOrNumber string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE id::text = $1 OR order_number = $1", idOrNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadOrderRelations(ctx, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Store) loadOrderRelations(ctx context.Context, order *models.Order) error {
	if err := s.db.SelectContext(ctx, &order.Items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY created_at", order.ID); err != nil {
		return err
	}

	shipping, err := s.GetAddressByID(ctx, order.ShippingAddressID)
	if err != nil && !errors.Is(err, ErrAddressNotFound) {
		return err
	}
	order.ShippingAddress = shipping

	if order.BillingAddressID == order.ShippingAddressID {
		order.BillingAddress = shipping
		return nil
	}
	billing, err := s.GetAddressByID(ctx, order.BillingAddressID)
	if err != nil && !errors.Is(err, ErrAddressNotFound) {
		return err
	}
	order.BillingAddress = billing
	return nil
}

// GetOrderItems retrieves all items for an order
func (s *Store) GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY created_at", orderID)
	return items, err
}

// ClaimCancellationTx flips the order to cancelled only while it is still in
// a cancellable status. The WHERE guard makes the check-and-flip a single
// statement, so two concurrent cancels can never both pass and restock twice;
// the loser sees zero rows and gets ErrOrderNotCancellable.
func (s *Store) ClaimCancellationTx(ctx context.Context, tx *sqlx.Tx, orderID string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status IN ($3, $4)`,
		models.OrderStatusCancelled, orderID,
		models.OrderStatusPending, models.OrderStatusConfirmed)
	if err != nil {
		return fmt.Errorf("claim cancellation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("claim cancellation rows affected: %w", err)
	}
	if n == 0 {
		return ErrOrderNotCancellable
	}
	return nil
}

// UpdateOrderTx writes back the order's mutable lifecycle fields inside a
// transaction (cancellation pairs this with stock restoration).
func (s *Store) UpdateOrderTx(ctx context.Context, tx *sqlx.Tx, order *models.Order) error {
	order.ComputeTotal()
	_, err := tx.ExecContext(ctx, orderUpdateQuery, orderUpdateArgs(order)...)
	return err
}

// UpdateOrder writes back the order's mutable lifecycle fields.
func (s *Store) UpdateOrder(ctx context.Context, order *models.Order) error {
	order.ComputeTotal()
	_, err := s.db.ExecContext(ctx, orderUpdateQuery, orderUpdateArgs(order)...)
	return err
}

const orderUpdateQuery = `
	UPDATE orders SET
		status = $1, payment_status = $2, carrier = $3,
		payment_intent_id = $4, payment_receipt_url = $5, admin_note = $6,
		subtotal = $7, shipping_cost = $8, tax_amount = $9, tax_rate = $10,
		discount_amount = $11, total = $12, email_sent = $13,
		paid_at = $14, confirmed_at = $15, shipped_at = $16,
		delivered_at = $17, cancelled_at = $18, updated_at = NOW()
	WHERE id = $19`

func orderUpdateArgs(order *models.Order) []interface{} {
	return []interface{}{
		order.Status, order.PaymentStatus, order.Carrier,
		order.PaymentIntentID, order.PaymentReceiptURL, order.AdminNote,
		order.Subtotal, order.ShippingCost, order.TaxAmount, order.TaxRate,
		order.DiscountAmount, order.Total, order.EmailSent,
		order.PaidAt, order.ConfirmedAt, order.ShippedAt,
		order.DeliveredAt, order.CancelledAt, order.ID,
	}
}

// MarkEmailSent flags the order's confirmation email as delivered
func (s *Store) MarkEmailSent(ctx context.Context, orderID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET email_sent = TRUE, updated_at = NOW() WHERE id = $1", orderID)
	return err
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	UserID        string
	Status        string
	PaymentStatus string
	Search        string
	DateFrom      *time.Time
	DateTo        *time.Time
	Page          int
	PerPage       int
}

// ListOrders retrieves a filtered, paginated order page plus total count.
// Items are loaded per order; list pages are small enough that this stays
// cheaper than a wide join.
func (s *Store) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, int, error) {
	conds := []string{"1=1"}
	args := []interface{}{}

	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.PaymentStatus != "" {
		args = append(args, filter.PaymentStatus)
		conds = append(conds, fmt.Sprintf("payment_status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conds = append(conds, fmt.Sprintf("(order_number ILIKE $%d OR guest_email ILIKE $%d)", len(args), len(args)))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		conds = append(conds, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	where := strings.Join(conds, " AND ")

	var total int
	if err := s.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM orders WHERE "+where, args...); err != nil {
		return nil, 0, err
	}

	limit := filter.PerPage
	if limit <= 0 {
		limit = 10
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}
	args = append(args, limit, offset)

	query := fmt.Sprintf(
		"SELECT * FROM orders WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		where, len(args)-1, len(args))

	var orders []models.Order
	if err := s.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, 0, err
	}

	for i := range orders {
		items, err := s.GetOrderItems(ctx, orders[i].ID)
		if err != nil {
			return nil, 0, err
		}
		orders[i].Items = items
	}
	return orders, total, nil
}

// OrderStats aggregates counts and revenue for the admin dashboard.
type OrderStats struct {
	TodayOrders   int             `json:"today_orders"`
	TodayRevenue  decimal.Decimal `json:"today_revenue"`
	MonthOrders   int             `json:"month_orders"`
	MonthRevenue  decimal.Decimal `json:"month_revenue"`
	TotalOrders   int             `json:"total_orders"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	StatusCounts  map[string]int  `json:"status_counts"`
	PaymentCounts map[string]int  `json:"payment_status_counts"`
}

// GetOrderStatistics computes dashboard aggregates in the database
func (s *Store) GetOrderStatistics(ctx context.Context) (*OrderStats, error) {
	stats := &OrderStats{
		StatusCounts:  make(map[string]int),
		PaymentCounts: make(map[string]int),
	}

	row := struct {
		Count   int             `db:"count"`
		Revenue decimal.Decimal `db:"revenue"`
	}{}

	if err := s.db.GetContext(ctx, &row,
		`SELECT COUNT(*) AS count, COALESCE(SUM(total), 0) AS revenue
		 FROM orders WHERE created_at::date = CURRENT_DATE`); err != nil {
		return nil, err
	}
	stats.TodayOrders, stats.TodayRevenue = row.Count, row.Revenue

	if err := s.db.GetContext(ctx, &row,
		`SELECT COUNT(*) AS count, COALESCE(SUM(total), 0) AS revenue
		 FROM orders WHERE created_at >= date_trunc('month', CURRENT_DATE)`); err != nil {
		return nil, err
	}
	stats.MonthOrders, stats.MonthRevenue = row.Count, row.Revenue

	if err := s.db.GetContext(ctx, &row,
		`SELECT COUNT(*) AS count, COALESCE(SUM(total), 0) AS revenue FROM orders`); err != nil {
		return nil, err
	}
	stats.TotalOrders, stats.TotalRevenue = row.Count, row.Revenue

	type bucket struct {
		Key   string `db:"key"`
		Count int    `db:"count"`
	}

	var statusRows []bucket
	if err := s.db.SelectContext(ctx, &statusRows,
		"SELECT status AS key, COUNT(*) AS count FROM orders GROUP BY status"); err != nil {
		return nil, err
	}
	for _, b := range statusRows {
		stats.StatusCounts[b.Key] = b.Count
	}

	var paymentRows []bucket
	if err := s.db.SelectContext(ctx, &paymentRows,
		"SELECT payment_status AS key, COUNT(*) AS count FROM orders GROUP BY payment_status"); err != nil {
		return nil, err
	}
	for _, b := range paymentRows {
		stats.PaymentCounts[b.Key] = b.Count
	}

	return stats, nil
}
