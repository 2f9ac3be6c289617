// Package orders models an order's fulfillment lifecycle and the tracking
// view shoppers see.
package orders

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/imrishuroy/lbvp-storefront/internal/apperr"
	"github.com/imrishuroy/lbvp-storefront/internal/events"
	"github.com/imrishuroy/lbvp-storefront/internal/logging"
)

// Service applies lifecycle changes to stored orders.
type Service struct {
	store     *Store
	publisher events.Publisher
	logger    *zap.Logger
	nowFunc   func() time.Time
}

func NewService(store *Store, publisher events.Publisher, logger *zap.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		store:     store,
		publisher: publisher,
		logger:    logging.OrNop(logger),
		nowFunc:   time.Now,
	}
}

func (s *Service) load(ctx context.Context, id string) (*Order, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, apperr.NewNotFound("order %s not found", id)
	}
	return o, nil
}

// ChangeStatus moves an order to next. Without override only the immediate
// successor is allowed; asking for the current status is a no-op, except
// that re-applying delivered settles a payment that is not yet paid.
func (s *Service) ChangeStatus(ctx context.Context, id string, next Status, override bool) (*Order, error) {
	if next.index() < 0 {
		return nil, apperr.Newf(apperr.CodeInvalidStatus, "unknown order status %q", next)
	}
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	settle := next == StatusDelivered && o.PaymentStatus != PaymentPaid
	if o.Status == next && !settle {
		return o, nil
	}
	if o.Status != next && !override && !CanTransition(o.Status, next) {
		return nil, apperr.Newf(apperr.CodeInvalidTransition, "cannot move order %s from %s to %s", id, o.Status, next)
	}

	var updated Order
	if o.Status == next {
		// already delivered: settle payment without another timeline entry
		updated = *o
		updated.PaymentStatus = PaymentPaid
		updated.UpdatedAt = s.nowFunc().UTC()
	} else {
		updated = Apply(*o, next, s.nowFunc().UTC())
	}
	if err := s.store.UpdateStatus(ctx, updated, o.Status); err != nil {
		if errors.Is(err, ErrStatusMismatch) {
			return nil, apperr.Wrap(apperr.CodeConflict, err, "order "+id+" changed concurrently")
		}
		return nil, err
	}
	s.logger.Info("order status changed",
		zap.String("order_id", id),
		zap.String("from", string(o.Status)),
		zap.String("to", string(next)),
		zap.Bool("override", override))

	s.publish(ctx, events.Event{
		Type:          events.OrderStatusChanged,
		OrderID:       id,
		Status:        string(updated.Status),
		PaymentStatus: string(updated.PaymentStatus),
		OccurredAt:    updated.UpdatedAt,
	})
	return &updated, nil
}

// SetPaymentStatus records the payment outcome of an order.
func (s *Service) SetPaymentStatus(ctx context.Context, id string, ps PaymentStatus) (*Order, error) {
	if _, err := ParsePaymentStatus(string(ps)); err != nil {
		return nil, err
	}
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.PaymentStatus == ps {
		return o, nil
	}
	if o.Status == StatusDelivered && ps != PaymentPaid {
		return nil, apperr.Newf(apperr.CodeInvalidTransition, "order %s is delivered; payment stays %s", id, PaymentPaid)
	}
	if err := s.store.UpdatePayment(ctx, id, ps, o.Status); err != nil {
		if errors.Is(err, ErrStatusMismatch) {
			return nil, apperr.Wrap(apperr.CodeConflict, err, "order "+id+" changed concurrently")
		}
		return nil, err
	}
	o.PaymentStatus = ps
	s.logger.Info("payment status changed", zap.String("order_id", id), zap.String("payment_status", string(ps)))
	s.publish(ctx, events.Event{
		Type:          events.OrderPaymentChanged,
		OrderID:       id,
		PaymentStatus: string(ps),
		PaymentMethod: string(o.PaymentMethod),
		Total:         o.Total,
		OccurredAt:    s.nowFunc().UTC(),
	})
	return o, nil
}

// AssignShipment attaches the courier and tracking number to an order.
func (s *Service) AssignShipment(ctx context.Context, id string, sh Shipment) (*Order, error) {
	sh.Courier = strings.TrimSpace(sh.Courier)
	sh.AWB = strings.TrimSpace(sh.AWB)
	sh.TrackingURL = strings.TrimSpace(sh.TrackingURL)
	if sh.Courier == "" || sh.AWB == "" {
		return nil, apperr.NewInvalidArgument("courier and AWB are required")
	}
	if existing, err := s.store.FindByAWB(ctx, sh.AWB); err != nil {
		return nil, err
	} else if existing != nil && existing.ID != id {
		return nil, apperr.Newf(apperr.CodeConflict, "AWB %s already assigned to order %s", sh.AWB, existing.ID)
	}

	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Shipment = &sh
	o.AWBKey = strings.ToUpper(sh.AWB)
	o.UpdatedAt = s.nowFunc().UTC()
	if err := s.store.UpdateTracking(ctx, *o); err != nil {
		return nil, err
	}
	s.logger.Info("shipment assigned", zap.String("order_id", id), zap.String("courier", sh.Courier))
	return o, nil
}

// AddCourierUpdate appends a scan to the order's feed. The latest location
// becomes the current location.
func (s *Service) AddCourierUpdate(ctx context.Context, id string, u CourierUpdate) (*Order, error) {
	u.Location = strings.TrimSpace(u.Location)
	u.Message = strings.TrimSpace(u.Message)
	if u.Message == "" {
		return nil, apperr.NewInvalidArgument("update message is required")
	}
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.nowFunc().UTC()
	if u.At.IsZero() {
		u.At = now
	}
	o.Updates = append(o.Updates, u)
	if u.Location != "" {
		o.CurrentLocation = u.Location
	}
	o.UpdatedAt = now
	if err := s.store.UpdateTracking(ctx, *o); err != nil {
		return nil, err
	}
	return o, nil
}

// SetEstimatedDelivery overrides the delivery estimate.
func (s *Service) SetEstimatedDelivery(ctx context.Context, id string, eta time.Time) (*Order, error) {
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	eta = eta.UTC()
	o.EstimatedDelivery = &eta
	o.UpdatedAt = s.nowFunc().UTC()
	if err := s.store.UpdateTracking(ctx, *o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("publish order event failed",
			zap.String("order_id", e.OrderID),
			zap.String("event_type", string(e.Type)),
			zap.Error(err))
	}
}
