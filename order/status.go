package order

import "strings"

// Status is the lifecycle state of an order.
type Status string

const (
	StatusProcessing Status = "Processing"
	StatusPaid       Status = "Paid"
	StatusShipped    Status = "Shipped"
	StatusDelivered  Status = "Delivered"
	StatusCancelled  Status = "Cancelled"
)

// transitions is the customer-facing state machine. Statuses absent as keys
// are terminal.
var transitions = map[Status][]Status{
	StatusProcessing: {StatusPaid, StatusShipped, StatusCancelled},
	StatusPaid:       {StatusShipped, StatusDelivered, StatusCancelled},
	StatusShipped:    {StatusDelivered},
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusProcessing, StatusPaid, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further customer-path transition exists.
func (s Status) IsTerminal() bool {
	_, ok := transitions[s]
	return !ok
}

// CanTransitionTo reports whether the customer-facing state machine allows s -> next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Cancellable reports whether a customer may cancel an order in this status.
func (s Status) Cancellable() bool {
	return s.CanTransitionTo(StatusCancelled)
}

// AdminOverride is the administrative entry point into the state machine.
// It accepts any known target status regardless of the current one; the
// transition table above does not apply to it.
func AdminOverride(current, next Status) (Status, bool) {
	if !next.Valid() {
		return current, false
	}
	return next, true
}

// ParseStatus accepts a status name case-insensitively.
func ParseStatus(s string) (Status, bool) {
	for _, st := range []Status{StatusProcessing, StatusPaid, StatusShipped, StatusDelivered, StatusCancelled} {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, true
		}
	}
	return "", false
}
