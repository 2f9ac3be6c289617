package orders

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/imrishuroy/lbvp-storefront/internal/apperr"
)

// DefaultDeliveryETA is added to CreatedAt when no estimate is stored.
const DefaultDeliveryETA = 5 * 24 * time.Hour

// TrackingStep is one of the four stages as shown to the shopper.
type TrackingStep struct {
	Status      Status     `json:"status"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	At          *time.Time `json:"at,omitempty"`
	Completed   bool       `json:"completed"`
	Active      bool       `json:"active"`
}

// CourierView is the courier block, with placeholders before hand-off.
type CourierView struct {
	Name        string `json:"name"`
	AWB         string `json:"awb"`
	TrackingURL string `json:"tracking_url"`
}

// TrackingView is the read-only projection of an order for tracking.
type TrackingView struct {
	Order             Order           `json:"order"`
	StatusText        string          `json:"status_text"`
	Progress          int             `json:"progress"`
	EstimatedDelivery time.Time       `json:"estimated_delivery"`
	Remaining         time.Duration   `json:"remaining"`
	Courier           CourierView     `json:"courier"`
	CurrentLocation   string          `json:"current_location"`
	Destination       string          `json:"destination"`
	Timeline          []TrackingStep  `json:"timeline"`
	Updates           []CourierUpdate `json:"updates"`
}

// Tracker resolves order ids and courier tracking numbers.
type Tracker struct {
	store   *Store
	eta     time.Duration
	nowFunc func() time.Time
}

// NewTracker returns a Tracker. eta <= 0 uses DefaultDeliveryETA.
func NewTracker(store *Store, eta time.Duration) *Tracker {
	if eta <= 0 {
		eta = DefaultDeliveryETA
	}
	return &Tracker{store: store, eta: eta, nowFunc: time.Now}
}

// FindOrder looks query up as an order id, then as an AWB (any case).
func (t *Tracker) FindOrder(ctx context.Context, query string) (*TrackingView, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, apperr.NewInvalidArgument("enter an order id or tracking number")
	}

	o, err := t.store.Get(ctx, strings.ToUpper(q))
	if err != nil {
		return nil, err
	}
	if o == nil {
		if o, err = t.store.FindByAWB(ctx, q); err != nil {
			return nil, err
		}
	}
	if o == nil {
		return nil, apperr.NewNotFound("no order matches %q", q)
	}
	view := t.View(*o)
	return &view, nil
}

// View projects o at the tracker's current time.
func (t *Tracker) View(o Order) TrackingView {
	now := t.nowFunc()

	eta := o.CreatedAt.Add(t.eta)
	if o.EstimatedDelivery != nil {
		eta = *o.EstimatedDelivery
	}
	remaining := eta.Sub(now)
	if remaining < 0 || o.Status == StatusDelivered {
		remaining = 0
	}

	courier := CourierView{Name: "Awaiting Shipment", AWB: "-", TrackingURL: "#"}
	if o.Shipment != nil {
		courier = CourierView{Name: o.Shipment.Courier, AWB: o.Shipment.AWB, TrackingURL: o.Shipment.TrackingURL}
		if courier.TrackingURL == "" {
			courier.TrackingURL = "#"
		}
	}
	location := o.CurrentLocation
	if location == "" {
		location = "Processing"
	}
	destination := o.Customer.City
	if destination == "" {
		destination = "-"
	}

	updates := append([]CourierUpdate(nil), o.Updates...)
	sort.SliceStable(updates, func(i, j int) bool { return updates[i].At.After(updates[j].At) })

	return TrackingView{
		Order:             o,
		StatusText:        o.Status.Text(),
		Progress:          Progress(o.Status),
		EstimatedDelivery: eta,
		Remaining:         remaining,
		Courier:           courier,
		CurrentLocation:   location,
		Destination:       destination,
		Timeline:          steps(o),
		Updates:           updates,
	}
}

// steps covers every stage: reached stages are completed with their stored
// time, the next stage is active.
func steps(o Order) []TrackingStep {
	reached := map[Status]time.Time{}
	for _, e := range o.Timeline {
		reached[e.Status] = e.At
	}
	if _, ok := reached[StatusConfirmed]; !ok {
		reached[StatusConfirmed] = o.CreatedAt
	}

	current := o.Status.index()
	out := make([]TrackingStep, 0, len(Sequence))
	for i, st := range Sequence {
		text := stageText[st]
		step := TrackingStep{
			Status:      st,
			Title:       text.title,
			Description: text.description,
			Completed:   i <= current,
			Active:      i == current+1,
		}
		if at, ok := reached[st]; ok && step.Completed {
			at := at
			step.At = &at
		}
		out = append(out, step)
	}
	return out
}
