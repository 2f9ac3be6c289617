package orders

import (
	"strings"
	"time"

	"github.com/imrishuroy/lbvp-storefront/internal/apperr"
)

// Sequence is the fixed order of fulfillment states.
var Sequence = []Status{StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered}

var stageText = map[Status]struct{ title, description string }{
	StatusConfirmed:  {"Order Placed", "Your order has been successfully placed"},
	StatusProcessing: {"Processing", "Your order is being prepared"},
	StatusShipped:    {"Shipped", "Your order has been handed to the courier"},
	StatusDelivered:  {"Delivered", "Your order has been delivered"},
}

// ParseStatus accepts exactly one of the four status values.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if st.index() < 0 {
		return "", apperr.Newf(apperr.CodeInvalidStatus, "unknown order status %q", s)
	}
	return st, nil
}

// ParsePaymentStatus accepts pending, paid or failed.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch ps := PaymentStatus(strings.ToLower(strings.TrimSpace(s))); ps {
	case PaymentPending, PaymentPaid, PaymentFailed:
		return ps, nil
	default:
		return "", apperr.Newf(apperr.CodeInvalidStatus, "unknown payment status %q", s)
	}
}

func (s Status) index() int {
	for i, st := range Sequence {
		if st == s {
			return i
		}
	}
	return -1
}

// Text is the display form of the status, e.g. "Shipped".
func (s Status) Text() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// CanTransition reports whether next is the immediate successor of current.
func CanTransition(current, next Status) bool {
	i, j := current.index(), next.index()
	return i >= 0 && j == i+1
}

// Progress maps a status to a completion percentage.
func Progress(s Status) int {
	switch s {
	case StatusConfirmed:
		return 10
	case StatusProcessing:
		return 30
	case StatusShipped:
		return 70
	case StatusDelivered:
		return 100
	default:
		return 0
	}
}

// Apply returns o moved to next at the given time: status set, a timeline
// entry appended, and payment forced to paid on delivery. o is not modified.
func Apply(o Order, next Status, at time.Time) Order {
	o.Timeline = append(append([]TimelineEntry(nil), o.Timeline...), timelineEntry(next, at))
	o.Status = next
	if next == StatusDelivered {
		o.PaymentStatus = PaymentPaid
	}
	o.UpdatedAt = at
	return o
}

func timelineEntry(s Status, at time.Time) TimelineEntry {
	text := stageText[s]
	return TimelineEntry{Status: s, Title: text.title, Description: text.description, At: at}
}
