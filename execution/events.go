package execution

import "time"

// EventKind enumerates venue acknowledgements.
type EventKind uint8

const (
	EventAccepted EventKind = iota
	EventRejected
	EventFilled
	EventCancelled
	EventExpired
)

func (k EventKind) String() string {
	switch k {
	case EventAccepted:
		return "ACCEPTED"
	case EventRejected:
		return "REJECTED"
	case EventFilled:
		return "FILLED"
	case EventCancelled:
		return "CANCELLED"
	case EventExpired:
		return "EXPIRED"
	}
	return "unknown"
}

// OrderEvent is a venue acknowledgement message. Fill is set only for
// EventFilled. The venue constructs these; the Engine applies them to the
// order it owns.
type OrderEvent struct {
	Kind    EventKind
	OrderID string
	Symbol  string
	Time    time.Time
	Reason  string
	Fill    *Fill
	// Status is the order status after the Engine applied the event;
	// informational for strategies and reporting.
	Status Status
}
