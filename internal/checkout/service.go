package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/imrishuroy/lbvp-storefront/internal/apperr"
	"github.com/imrishuroy/lbvp-storefront/internal/cart"
	"github.com/imrishuroy/lbvp-storefront/internal/events"
	"github.com/imrishuroy/lbvp-storefront/internal/idempotency"
	"github.com/imrishuroy/lbvp-storefront/internal/logging"
	"github.com/imrishuroy/lbvp-storefront/internal/orders"
	"github.com/imrishuroy/lbvp-storefront/internal/validation"
)

// ValidationFailure is returned by Submit when the cart does not validate.
type ValidationFailure struct {
	Report *Report
}

func (e *ValidationFailure) Error() string {
	if len(e.Report.Errors) == 0 {
		return "cart is not valid"
	}
	return "cart is not valid: " + e.Report.Errors[0].Message
}

// SubmitRequest carries everything needed to place an order. The payment
// method is part of the customer form.
type SubmitRequest struct {
	Cart           *cart.Engine
	Customer       validation.CustomerForm
	IdempotencyKey string
}

// Options tune order creation.
type Options struct {
	IDPrefix    string
	DeliveryETA time.Duration
}

// Service places orders and receives payment callbacks.
type Service struct {
	validator   *Validator
	orders      *orders.Store
	lifecycle   *orders.Service
	idempotency *idempotency.Store
	publisher   events.Publisher
	logger      *zap.Logger
	opts        Options
	nowFunc     func() time.Time
}

// NewService wires the submission flow. idem may be nil, in which case
// idempotency keys are ignored.
func NewService(v *Validator, store *orders.Store, lifecycle *orders.Service, idem *idempotency.Store, pub events.Publisher, logger *zap.Logger, opts Options) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	if opts.IDPrefix == "" {
		opts.IDPrefix = "LBVP"
	}
	if opts.DeliveryETA <= 0 {
		opts.DeliveryETA = orders.DefaultDeliveryETA
	}
	return &Service{
		validator:   v,
		orders:      store,
		lifecycle:   lifecycle,
		idempotency: idem,
		publisher:   pub,
		logger:      logging.OrNop(logger),
		opts:        opts,
		nowFunc:     time.Now,
	}
}

// Submit revalidates the cart and the form, stores the order and then
// clears the cart. A failure before the order is stored leaves the cart as
// it was. Resubmitting with a used idempotency key returns the original
// order and does not touch the cart.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*orders.Order, error) {
	if req.Cart == nil {
		return nil, apperr.NewInvalidArgument("cart is required")
	}
	key := req.IdempotencyKey
	if s.idempotency == nil {
		key = ""
	}
	if key != "" {
		if err := idempotency.ValidateKey(key); err != nil {
			return nil, err
		}
		if o, err := s.replay(ctx, key); err != nil || o != nil {
			return o, err
		}
	}

	report, items, err := s.validator.run(ctx, req.Cart.Lines())
	if err != nil {
		return nil, err
	}
	if !report.Valid {
		return nil, &ValidationFailure{Report: report}
	}
	form, err := validation.ValidateCustomer(req.Customer)
	if err != nil {
		return nil, err
	}

	now := s.nowFunc().UTC()
	order := orders.Order{
		ID:            orders.NewOrderID(s.opts.IDPrefix, now),
		Customer:      customerOf(form),
		PaymentMethod: orders.PaymentMethod(form.PaymentMethod),
		PaymentStatus: orders.PaymentPending,
		Status:        orders.StatusConfirmed,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	order = orders.Apply(order, orders.StatusConfirmed, now)
	for _, l := range report.Snapshot {
		item := items[l.ItemID]
		order.Items = append(order.Items, orders.LineItem{
			ItemID:   l.ItemID,
			Name:     item.Name,
			Size:     l.Size,
			Quantity: l.Quantity,
			Price:    item.Price,
			Image:    item.Image,
		})
	}
	q := QuoteFor(report.Subtotal)
	order.Subtotal, order.Shipping, order.Total = q.Subtotal, q.Shipping, q.Total
	eta := now.Add(s.opts.DeliveryETA)
	order.EstimatedDelivery = &eta

	if key != "" {
		rec := s.idempotency.NewRecord(key, order.ID)
		err = s.orders.CreateWithIdempotencyTransaction(ctx, s.idempotency.TableName(), rec, order, s.idempotency.TTL())
		if errors.Is(err, orders.ErrDuplicateKey) {
			// lost a race with a concurrent submit using the same key
			o, rerr := s.replay(ctx, key)
			if rerr != nil {
				return nil, rerr
			}
			if o != nil {
				return o, nil
			}
			return nil, apperr.Wrap(apperr.CodeConflict, err, "idempotency key in use")
		}
	} else {
		err = s.orders.Create(ctx, order)
	}
	if err != nil {
		return nil, fmt.Errorf("store order: %w", err)
	}

	log := s.logger.With(zap.String("order_id", order.ID))
	if err := req.Cart.Clear(ctx); err != nil {
		log.Warn("order stored but cart not cleared", zap.Error(err))
	}
	if key != "" {
		if err := s.idempotency.MarkDone(ctx, key, http.StatusCreated); err != nil {
			log.Warn("mark idempotency key done", zap.Error(err))
		}
	}
	log.Info("order submitted",
		zap.String("payment_method", string(order.PaymentMethod)),
		zap.Int64("total", order.Total),
		zap.Int("items", order.ItemCount()))

	if err := s.publisher.Publish(ctx, events.Event{
		Type:          events.OrderSubmitted,
		OrderID:       order.ID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		PaymentMethod: string(order.PaymentMethod),
		Total:         order.Total,
		ItemCount:     order.ItemCount(),
		OccurredAt:    now,
	}); err != nil {
		log.Warn("publish order event failed", zap.Error(err))
	}
	return &order, nil
}

// replay returns the order recorded under key, or nil if the key is unused.
func (s *Service) replay(ctx context.Context, key string) (*orders.Order, error) {
	rec, err := s.idempotency.Get(ctx, key)
	if err != nil || rec == nil {
		return nil, err
	}
	o, err := s.orders.Get(ctx, rec.OrderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, apperr.Newf(apperr.CodeConflict, "idempotency key %s refers to a missing order", key)
	}
	s.logger.Info("replayed order submission", zap.String("order_id", o.ID))
	return o, nil
}

// ConfirmPayment records the payment collaborator's outcome for an order.
func (s *Service) ConfirmPayment(ctx context.Context, orderID string, ps orders.PaymentStatus) (*orders.Order, error) {
	if ps != orders.PaymentPaid && ps != orders.PaymentFailed {
		return nil, apperr.Newf(apperr.CodeInvalidStatus, "payment outcome must be paid or failed, got %q", ps)
	}
	return s.lifecycle.SetPaymentStatus(ctx, orderID, ps)
}

func customerOf(f validation.CustomerForm) orders.Customer {
	return orders.Customer{
		Name:    f.FullName,
		Email:   f.Email,
		Phone:   f.Phone,
		Address: f.Address,
		City:    f.City,
		Pincode: f.Pincode,
	}
}
