package order

import "fmt"

// Status is an order lifecycle state.
type Status string

const (
	StatusPlaced         Status = "OrderPlaced"
	StatusProcessing     Status = "OrderProcessing"
	StatusShipped        Status = "Shipped"
	StatusOutForDelivery Status = "OutForDelivery"
	StatusDelivered      Status = "Delivered"
	StatusCompleted      Status = "OrderCompleted"
	StatusCanceled       Status = "OrderCanceled"
	StatusReturned       Status = "OrderReturned"
)

// validNext fixes each state's legal successors. The happy path moves
// forward one step at a time; cancellation is possible only before shipping
// and return only after delivery. Canceled and Returned are terminal.
var validNext = map[Status]map[Status]bool{
	StatusPlaced:         {StatusProcessing: true, StatusCanceled: true},
	StatusProcessing:     {StatusShipped: true, StatusCanceled: true},
	StatusShipped:        {StatusOutForDelivery: true},
	StatusOutForDelivery: {StatusDelivered: true},
	StatusDelivered:      {StatusCompleted: true, StatusReturned: true},
	StatusCompleted:      {StatusReturned: true},
	StatusCanceled:       {},
	StatusReturned:       {},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return len(validNext[s]) == 0
}

// ParseStatus validates a status received from outside the package.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := validNext[st]; !ok {
		return "", fmt.Errorf("unknown order status %q", s)
	}
	return st, nil
}

// InvalidTransitionError reports a transition the table does not allow.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}
