package billing

import (
	"context"

	"github.com/accumanager/backend/internal/domain/billing"
	"github.com/accumanager/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// BillingActivityLogger records billing lifecycle events to the structured
// log so operators can trace invoice and schedule activity per tenant.
type BillingActivityLogger struct {
	logger *zap.Logger
}

// NewBillingActivityLogger creates a new billing activity logger
func NewBillingActivityLogger(logger *zap.Logger) *BillingActivityLogger {
	return &BillingActivityLogger{logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *BillingActivityLogger) EventTypes() []string {
	return []string{
		billing.EventTypeInvoiceCreated,
		billing.EventTypeInvoiceConfirmed,
		billing.EventTypeInvoiceCancelled,
		billing.EventTypeInvoicePaymentRecorded,
		billing.EventTypeScheduleCreated,
		billing.EventTypeSchedulePaused,
		billing.EventTypeScheduleResumed,
		billing.EventTypeScheduleCancelled,
		billing.EventTypeScheduleFired,
		billing.EventTypeScheduleCompleted,
	}
}

// Handle logs the billing event with its most relevant fields
func (h *BillingActivityLogger) Handle(ctx context.Context, event shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_type", event.EventType()),
		zap.String("tenant_id", event.TenantID().String()),
		zap.String("aggregate_id", event.AggregateID().String()),
	}

	switch e := event.(type) {
	case *billing.InvoiceCreatedEvent:
		fields = append(fields,
			zap.String("invoice_number", e.InvoiceNumber),
			zap.Bool("cross_border", e.CrossBorder),
		)
	case *billing.InvoiceConfirmedEvent:
		fields = append(fields,
			zap.String("invoice_number", e.InvoiceNumber),
			zap.String("grand_total", e.GrandTotal.String()),
		)
	case *billing.InvoiceCancelledEvent:
		fields = append(fields,
			zap.String("invoice_number", e.InvoiceNumber),
			zap.String("reason", e.Reason),
		)
	case *billing.InvoicePaymentRecordedEvent:
		fields = append(fields,
			zap.String("invoice_number", e.InvoiceNumber),
			zap.String("amount", e.Amount.String()),
			zap.String("payment_method", string(e.PaymentMethod)),
			zap.String("payment_status", string(e.PaymentStatus)),
		)
	case *billing.ScheduleFiredEvent:
		fields = append(fields,
			zap.String("schedule_name", e.Name),
			zap.Int("fired_count", e.FiredCount),
			zap.Time("next_run_at", e.NextRunAt),
		)
	case *billing.ScheduleCompletedEvent:
		fields = append(fields,
			zap.String("schedule_name", e.Name),
			zap.Int("fired_count", e.FiredCount),
		)
	}

	h.logger.Info("billing activity", fields...)
	return nil
}

// Ensure BillingActivityLogger implements shared.EventHandler
var _ shared.EventHandler = (*BillingActivityLogger)(nil)
