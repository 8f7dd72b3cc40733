package enums

// PaymentEventType names the domain events emitted on payment transitions.
type PaymentEventType string

const (
	EventPaymentCreated   PaymentEventType = "payment.created"
	EventPaymentCompleted PaymentEventType = "payment.completed"
	EventPaymentFailed    PaymentEventType = "payment.failed"
	EventPaymentCancelled PaymentEventType = "payment.cancelled"
)

// String implements fmt.Stringer.
func (e PaymentEventType) String() string {
	return string(e)
}

// EventForStatus maps a terminal status onto its transition event.
func EventForStatus(status PaymentStatus) (PaymentEventType, bool) {
	switch status {
	case PaymentStatusCompleted:
		return EventPaymentCompleted, true
	case PaymentStatusFailed:
		return EventPaymentFailed, true
	case PaymentStatusCancelled:
		return EventPaymentCancelled, true
	default:
		return "", false
	}
}
