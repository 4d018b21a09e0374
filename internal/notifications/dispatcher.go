package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gpuforge/gpuforge-backend/internal/orders"
	"github.com/gpuforge/gpuforge-backend/pkg/config"
	"github.com/gpuforge/gpuforge-backend/pkg/db/models"
	"github.com/gpuforge/gpuforge-backend/pkg/enums"
	"github.com/gpuforge/gpuforge-backend/pkg/invoice"
	"github.com/gpuforge/gpuforge-backend/pkg/logger"
	"github.com/gpuforge/gpuforge-backend/pkg/mailer"
	"github.com/gpuforge/gpuforge-backend/pkg/metrics"
	"github.com/gpuforge/gpuforge-backend/pkg/outbox"
)

type outboxSource interface {
	FetchUnpublished(limit int) ([]models.OutboxEvent, error)
	MarkPublished(id uuid.UUID) error
	MarkFailed(id uuid.UUID, err error) error
}

// Dispatcher drains the outbox and turns order events into customer emails.
// Delivery is at-least-once; the mail provider deduplicates nothing, so a
// crash between send and MarkPublished can resend an email.
type Dispatcher struct {
	cfg     config.OutboxConfig
	source  outboxSource
	sender  mailer.Sender
	invoice *invoice.Renderer
	metrics *metrics.DispatcherMetrics
	logg    *logger.Logger
}

type DispatcherParams struct {
	Config  config.OutboxConfig
	Source  outboxSource
	Sender  mailer.Sender
	Invoice *invoice.Renderer
	Metrics *metrics.DispatcherMetrics
	Logger  *logger.Logger
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Source == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if params.Sender == nil {
		return nil, fmt.Errorf("mail sender required")
	}
	if params.Invoice == nil {
		return nil, fmt.Errorf("invoice renderer required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Config.BatchSize <= 0 {
		params.Config.BatchSize = 50
	}
	if params.Config.PollIntervalMS <= 0 {
		params.Config.PollIntervalMS = 500
	}
	if params.Config.MaxAttempts <= 0 {
		params.Config.MaxAttempts = 10
	}
	return &Dispatcher{
		cfg:     params.Config,
		source:  params.Source,
		sender:  params.Sender,
		invoice: params.Invoice,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

// Run polls until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(d.cfg.PollIntervalMS) * time.Millisecond)
	defer ticker.Stop()

	d.logg.Info(ctx, "outbox dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.logg.Info(ctx, "outbox dispatcher stopped")
			return
		case <-ticker.C:
			if _, err := d.DispatchPending(ctx); err != nil {
				d.logg.Error(ctx, "outbox fetch failed", err)
			}
		}
	}
}

// DispatchPending delivers one batch and reports how many events were
// handled. Events that exhausted their attempts are skipped.
func (d *Dispatcher) DispatchPending(ctx context.Context) (int, error) {
	events, err := d.source.FetchUnpublished(d.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	handled := 0
	for _, event := range events {
		if event.AttemptCount >= d.cfg.MaxAttempts {
			continue
		}

		start := time.Now()
		err := d.deliver(ctx, event)
		d.metrics.ObserveDuration(event.EventType.String(), time.Since(start))
		if err != nil {
			d.metrics.IncFailure(event.EventType.String())
			logCtx := d.logg.WithFields(ctx, map[string]any{
				"event_id":   event.ID.String(),
				"event_type": event.EventType.String(),
				"attempt":    event.AttemptCount + 1,
			})
			d.logg.Error(logCtx, "outbox event delivery failed", err)
			if markErr := d.source.MarkFailed(event.ID, err); markErr != nil {
				d.logg.Error(ctx, "outbox mark failed errored", markErr)
			}
			continue
		}

		d.metrics.IncSuccess(event.EventType.String())
		if markErr := d.source.MarkPublished(event.ID); markErr != nil {
			d.logg.Error(ctx, "outbox mark published errored", markErr)
			continue
		}
		handled++
	}
	return handled, nil
}

func (d *Dispatcher) deliver(ctx context.Context, event models.OutboxEvent) error {
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	var data orders.OrderEventData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return fmt.Errorf("decode order event: %w", err)
	}
	if data.CustomerEmail == "" {
		return fmt.Errorf("event %s has no customer email", event.ID)
	}

	switch event.EventType {
	case enums.EventOrderConfirmation:
		return d.sendConfirmation(ctx, envelope, data)
	case enums.EventOrderPaid:
		return d.sendPaidNotice(ctx, envelope, data)
	default:
		return fmt.Errorf("unknown event type %q", event.EventType)
	}
}

func (d *Dispatcher) sendConfirmation(ctx context.Context, envelope outbox.PayloadEnvelope, data orders.OrderEventData) error {
	doc, err := invoiceDocument(envelope, data)
	if err != nil {
		return err
	}
	pdf, err := d.invoice.Render(doc)
	if err != nil {
		return fmt.Errorf("render invoice: %w", err)
	}

	return d.sender.Send(ctx, mailer.Message{
		To:       data.CustomerEmail,
		Subject:  fmt.Sprintf("Order confirmation %s", shortOrderRef(data.OrderID)),
		HTMLBody: confirmationHTML(data),
		TextBody: confirmationText(data),
		Attachments: []mailer.Attachment{{
			Name:    fmt.Sprintf("invoice-%s.pdf", shortOrderRef(data.OrderID)),
			Content: pdf,
		}},
	})
}

func (d *Dispatcher) sendPaidNotice(ctx context.Context, envelope outbox.PayloadEnvelope, data orders.OrderEventData) error {
	doc, err := invoiceDocument(envelope, data)
	if err != nil {
		return err
	}
	pdf, err := d.invoice.Render(doc)
	if err != nil {
		return fmt.Errorf("render invoice: %w", err)
	}

	return d.sender.Send(ctx, mailer.Message{
		To:      data.CustomerEmail,
		Subject: fmt.Sprintf("Payment received for order %s", shortOrderRef(data.OrderID)),
		HTMLBody: fmt.Sprintf(
			"<p>Hi %s,</p><p>we received your payment for order <strong>%s</strong>. Total charged: %s EUR.</p>",
			data.Username, shortOrderRef(data.OrderID), data.TotalAmount),
		TextBody: fmt.Sprintf(
			"Hi %s, we received your payment for order %s. Total charged: %s EUR.",
			data.Username, shortOrderRef(data.OrderID), data.TotalAmount),
		Attachments: []mailer.Attachment{{
			Name:    fmt.Sprintf("invoice-%s.pdf", shortOrderRef(data.OrderID)),
			Content: pdf,
		}},
	})
}

func invoiceDocument(envelope outbox.PayloadEnvelope, data orders.OrderEventData) (invoice.Document, error) {
	total, err := decimal.NewFromString(data.TotalAmount)
	if err != nil {
		return invoice.Document{}, fmt.Errorf("parse total: %w", err)
	}
	lines := make([]invoice.Line, 0, len(data.Items))
	for _, item := range data.Items {
		unit, err := decimal.NewFromString(item.UnitPrice)
		if err != nil {
			return invoice.Document{}, fmt.Errorf("parse unit price: %w", err)
		}
		lineTotal, err := decimal.NewFromString(item.LineTotal)
		if err != nil {
			return invoice.Document{}, fmt.Errorf("parse line total: %w", err)
		}
		lines = append(lines, invoice.Line{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: unit,
			LineTotal: lineTotal,
		})
	}
	return invoice.Document{
		OrderID:       data.OrderID.String(),
		OrderDate:     envelope.OccurredAt,
		Status:        data.Status,
		CustomerName:  data.Username,
		CustomerEmail: data.CustomerEmail,
		Lines:         lines,
		Total:         total,
	}, nil
}

func confirmationHTML(data orders.OrderEventData) string {
	body := fmt.Sprintf("<p>Hi %s,</p><p>thanks for your order <strong>%s</strong>.</p><ul>",
		data.Username, shortOrderRef(data.OrderID))
	for _, item := range data.Items {
		body += fmt.Sprintf("<li>%d x %s @ %s EUR</li>", item.Quantity, item.Name, item.UnitPrice)
	}
	body += fmt.Sprintf("</ul><p>Total: <strong>%s EUR</strong>. The invoice is attached.</p>", data.TotalAmount)
	return body
}

func confirmationText(data orders.OrderEventData) string {
	body := fmt.Sprintf("Hi %s, thanks for your order %s.\n", data.Username, shortOrderRef(data.OrderID))
	for _, item := range data.Items {
		body += fmt.Sprintf("- %d x %s @ %s EUR\n", item.Quantity, item.Name, item.UnitPrice)
	}
	body += fmt.Sprintf("Total: %s EUR. The invoice is attached.", data.TotalAmount)
	return body
}

func shortOrderRef(id uuid.UUID) string {
	return id.String()[:8]
}
