// Package notify delivers invoice notifications to customers. A disabled
// notifier is a valid configuration: sending then degrades to a navigate
// signal instead of an email.
package notify

import (
	"context"
	"fmt"

	"invoice-assistant/internal/common/aws"
	"invoice-assistant/internal/common/config"
	"invoice-assistant/internal/common/logger"
	"invoice-assistant/internal/models"
)

// Notifier sends an issued invoice to its customer.
type Notifier interface {
	Enabled() bool
	SendInvoice(ctx context.Context, customer models.Customer, invoice models.Invoice, currency string) error
}

// AWSNotifier emails the invoice through SES and, when SMS is enabled and
// the customer has a phone number, texts a short notice through SNS.
type AWSNotifier struct {
	ses    *aws.SESClient
	sns    *aws.SNSClient
	cfg    config.NotificationConfig
	logger logger.Logger
}

func NewAWSNotifier(ctx context.Context, cfg config.NotificationConfig, log logger.Logger) (*AWSNotifier, error) {
	n := &AWSNotifier{cfg: cfg, logger: log}

	if cfg.Email.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.AWS.Region, cfg.Email.FromEmail)
		if err != nil {
			return nil, fmt.Errorf("init ses: %w", err)
		}
		n.ses = sesClient
	}
	if cfg.SMS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("init sns: %w", err)
		}
		n.sns = snsClient
	}
	return n, nil
}

func (n *AWSNotifier) Enabled() bool {
	return n.ses != nil
}

func (n *AWSNotifier) SendInvoice(ctx context.Context, customer models.Customer, invoice models.Invoice, currency string) error {
	if n.ses == nil {
		return fmt.Errorf("email notifications disabled")
	}
	if customer.Email == "" {
		return fmt.Errorf("customer %s has no email address", customer.ID)
	}

	subject := fmt.Sprintf("Invoice %s", invoice.Number)
	body := fmt.Sprintf(
		"Hello %s,\n\nInvoice %s for %s %.2f is due by %s.\n\nThank you.",
		customer.Name, invoice.Number, currency, invoice.Total,
		invoice.DueAt.Format("2006-01-02"),
	)
	if err := n.ses.SendEmail(ctx, customer.Email, subject, body); err != nil {
		return err
	}

	// SMS is best-effort: a text failure never undoes a delivered email.
	if n.sns != nil && customer.Phone != "" {
		sms := fmt.Sprintf("Invoice %s (%s %.2f) was sent to %s", invoice.Number, currency, invoice.Total, customer.Email)
		if err := n.sns.PublishSMS(ctx, customer.Phone, sms); err != nil {
			n.logger.WithError(err).Warn("invoice sms notification failed",
				map[string]interface{}{"invoice_id": invoice.ID})
		}
	}
	return nil
}

// NoopNotifier reports disabled and refuses to send; the executor turns
// this into a navigate-only reply.
type NoopNotifier struct{}

func (NoopNotifier) Enabled() bool { return false }

func (NoopNotifier) SendInvoice(context.Context, models.Customer, models.Invoice, string) error {
	return fmt.Errorf("notifications are not configured")
}
