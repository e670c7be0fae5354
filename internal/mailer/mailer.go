package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/bernarddwumfour/estore-backend/internal/models"
	"github.com/bernarddwumfour/estore-backend/internal/util"
)

// Config carries SMTP connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// BaseURL is the storefront URL used in links (verification, order pages).
	BaseURL string
}

// Mailer sends plain-text transactional email over SMTP.
type Mailer struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a new mailer
func New(cfg Config) *Mailer {
	return &Mailer{cfg: cfg, logger: util.GetLogger()}
}

func (m *Mailer) send(ctx context.Context, kind, to, subject, body string) error {
	msg := strings.Builder{}
	fmt.Fprintf(&msg, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(msg.String()))
	}()

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case err = <-done:
	}

	if err != nil {
		util.EmailsFailedTotal.WithLabelValues(kind).Inc()
		return fmt.Errorf("send %s email: %w", kind, err)
	}

	util.EmailsSentTotal.WithLabelValues(kind).Inc()
	m.logger.Info("Email sent", zap.String("kind", kind), zap.String("to", to))
	return nil
}

// SendVerificationEmail sends the address-verification link after signup.
func (m *Mailer) SendVerificationEmail(ctx context.Context, to, name, token string) error {
	body := fmt.Sprintf(
		"Hi %s,\n\nWelcome! Please verify your email address by opening the link below:\n\n%s/verify-email?token=%s\n\nThe link expires in 48 hours.\n",
		name, m.cfg.BaseURL, token)
	return m.send(ctx, "verification", to, "Verify your email address", body)
}

// SendOrderConfirmation sends the receipt after checkout.
func (m *Mailer) SendOrderConfirmation(ctx context.Context, event *models.OrderCreatedEvent) error {
	if event.CustomerEmail == "" {
		return nil
	}

	var lines strings.Builder
	for _, item := range event.Items {
		fmt.Fprintf(&lines, "  %d x %s (%s) @ %s\n",
			item.Quantity, item.ProductTitle, item.SKU, item.UnitPrice.StringFixed(2))
	}

	body := fmt.Sprintf(
		"Hi %s,\n\nThanks for your order %s.\n\nItems:\n%s\nTotal: %s %s\n\nTrack your order at %s/orders/%s\n",
		event.CustomerName, event.OrderNumber, lines.String(),
		event.Total.StringFixed(2), event.Currency,
		m.cfg.BaseURL, event.OrderNumber)
	return m.send(ctx, "order_confirmation", event.CustomerEmail,
		fmt.Sprintf("Order %s confirmed", event.OrderNumber), body)
}

// SendOrderCancelled notifies the customer their order was cancelled.
func (m *Mailer) SendOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	if event.CustomerEmail == "" {
		return nil
	}

	body := fmt.Sprintf("Your order %s has been cancelled.\n", event.OrderNumber)
	if event.Reason != "" {
		body += fmt.Sprintf("Reason: %s\n", event.Reason)
	}
	body += "\nAny payment made will be refunded to the original payment method.\n"
	return m.send(ctx, "order_cancelled", event.CustomerEmail,
		fmt.Sprintf("Order %s cancelled", event.OrderNumber), body)
}

// SendStatusUpdate notifies the customer of a fulfilment status change.
func (m *Mailer) SendStatusUpdate(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	if event.CustomerEmail == "" {
		return nil
	}

	body := fmt.Sprintf(
		"Your order %s is now %s.\n\nTrack it at %s/orders/%s\n",
		event.OrderNumber, event.NewStatus, m.cfg.BaseURL, event.OrderNumber)
	return m.send(ctx, "status_update", event.CustomerEmail,
		fmt.Sprintf("Order %s update: %s", event.OrderNumber, event.NewStatus), body)
}

// SendPaymentUpdate notifies the customer of a payment status change.
func (m *Mailer) SendPaymentUpdate(ctx context.Context, event *models.OrderPaymentUpdatedEvent) error {
	if event.CustomerEmail == "" {
		return nil
	}

	body := fmt.Sprintf(
		"Payment for your order %s is now %s.\nOrder status: %s\n",
		event.OrderNumber, event.PaymentStatus, event.OrderStatus)
	return m.send(ctx, "payment_update", event.CustomerEmail,
		fmt.Sprintf("Order %s payment %s", event.OrderNumber, event.PaymentStatus), body)
}
