package enums

// OutboxEventType names the domain events emitted through the outbox table.
type OutboxEventType string

const (
	EventOrderConfirmation OutboxEventType = "order.confirmation"
	EventOrderPaid         OutboxEventType = "order.paid"
)

// String implements fmt.Stringer.
func (t OutboxEventType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known OutboxEventType.
func (t OutboxEventType) IsValid() bool {
	switch t {
	case EventOrderConfirmation, EventOrderPaid:
		return true
	}
	return false
}
