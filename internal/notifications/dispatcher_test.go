package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpuforge/gpuforge-backend/internal/orders"
	"github.com/gpuforge/gpuforge-backend/pkg/config"
	"github.com/gpuforge/gpuforge-backend/pkg/db/models"
	"github.com/gpuforge/gpuforge-backend/pkg/enums"
	"github.com/gpuforge/gpuforge-backend/pkg/invoice"
	"github.com/gpuforge/gpuforge-backend/pkg/logger"
	"github.com/gpuforge/gpuforge-backend/pkg/mailer"
	"github.com/gpuforge/gpuforge-backend/pkg/outbox"
)

type fakeOutboxSource struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
}

func (f *fakeOutboxSource) FetchUnpublished(limit int) ([]models.OutboxEvent, error) {
	if len(f.events) > limit {
		return f.events[:limit], nil
	}
	return f.events, nil
}

func (f *fakeOutboxSource) MarkPublished(id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeOutboxSource) MarkFailed(id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakeSender struct {
	sent []mailer.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg mailer.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func confirmationEvent(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()

	orderID := uuid.New()
	data := orders.OrderEventData{
		OrderID:       orderID,
		UserID:        uuid.New(),
		Username:      "gpubuyer",
		CustomerEmail: "buyer@example.com",
		Status:        "pending",
		TotalAmount:   "1199.98",
		Items: []orders.OrderEventItem{{
			GraphicCardID: uuid.New(),
			Name:          "RTX 4070 SUPER",
			Quantity:      2,
			UnitPrice:     "599.99",
			LineTotal:     "1199.98",
		}},
	}
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       raw,
	})
	require.NoError(t, err)

	return models.OutboxEvent{
		ID:           uuid.New(),
		EventType:    enums.EventOrderConfirmation,
		AggregateID:  orderID,
		Payload:      payload,
		AttemptCount: attempts,
	}
}

func paidEvent(t *testing.T) models.OutboxEvent {
	t.Helper()

	event := confirmationEvent(t, 0)
	event.EventType = enums.EventOrderPaid
	return event
}

func newDispatcher(t *testing.T, source *fakeOutboxSource, sender *fakeSender) *Dispatcher {
	t.Helper()

	d, err := NewDispatcher(DispatcherParams{
		Config:  config.OutboxConfig{BatchSize: 10, PollIntervalMS: 50, MaxAttempts: 3},
		Source:  source,
		Sender:  sender,
		Invoice: invoice.NewRenderer(""),
		Logger:  logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled}),
	})
	require.NoError(t, err)
	return d
}

func TestDispatchSendsConfirmationWithInvoice(t *testing.T) {
	source := &fakeOutboxSource{events: []models.OutboxEvent{confirmationEvent(t, 0)}}
	sender := &fakeSender{}
	d := newDispatcher(t, source, sender)

	handled, err := d.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, handled)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "buyer@example.com", msg.To)
	assert.Contains(t, msg.Subject, "Order confirmation")
	assert.Contains(t, msg.TextBody, "RTX 4070 SUPER")
	assert.Contains(t, msg.TextBody, "1199.98")
	require.Len(t, msg.Attachments, 1)
	assert.True(t, strings.HasPrefix(string(msg.Attachments[0].Content), "%PDF"))
	assert.Len(t, source.published, 1)
	assert.Empty(t, source.failed)
}

func TestDispatchSendsPaidNoticeWithInvoice(t *testing.T) {
	source := &fakeOutboxSource{events: []models.OutboxEvent{paidEvent(t)}}
	sender := &fakeSender{}
	d := newDispatcher(t, source, sender)

	handled, err := d.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, handled)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Contains(t, msg.Subject, "Payment received")
	assert.Contains(t, msg.TextBody, "1199.98")
	require.Len(t, msg.Attachments, 1)
	assert.True(t, strings.HasPrefix(string(msg.Attachments[0].Content), "%PDF"))
}

func TestDispatchMarksFailedOnSendError(t *testing.T) {
	event := confirmationEvent(t, 0)
	source := &fakeOutboxSource{events: []models.OutboxEvent{event}}
	sender := &fakeSender{err: errors.New("smtp unavailable")}
	d := newDispatcher(t, source, sender)

	handled, err := d.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, handled)
	assert.Empty(t, source.published)
	require.Len(t, source.failed, 1)
	assert.Equal(t, event.ID, source.failed[0])
}

func TestDispatchSkipsExhaustedEvents(t *testing.T) {
	source := &fakeOutboxSource{events: []models.OutboxEvent{confirmationEvent(t, 3)}}
	sender := &fakeSender{}
	d := newDispatcher(t, source, sender)

	handled, err := d.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, handled)
	assert.Empty(t, sender.sent)
	assert.Empty(t, source.failed)
}

func TestDispatchMarksMalformedPayloadFailed(t *testing.T) {
	event := models.OutboxEvent{
		ID:          uuid.New(),
		EventType:   enums.EventOrderConfirmation,
		AggregateID: uuid.New(),
		Payload:     []byte("not json"),
	}
	source := &fakeOutboxSource{events: []models.OutboxEvent{event}}
	sender := &fakeSender{}
	d := newDispatcher(t, source, sender)

	handled, err := d.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, handled)
	require.Len(t, source.failed, 1)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	source := &fakeOutboxSource{}
	d := newDispatcher(t, source, &fakeSender{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop on cancel")
	}
}
