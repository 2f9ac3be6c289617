package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/lbvp-storefront/internal/apperr"
	"github.com/imrishuroy/lbvp-storefront/internal/events"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func newTestService(t *testing.T) (*Service, *Store, *recordingPublisher) {
	t.Helper()
	store := NewStore(newTestDynamo(), "orders")
	pub := &recordingPublisher{}
	svc := NewService(store, pub, nil)
	clock := time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)
	svc.nowFunc = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	require.NoError(t, store.Create(context.Background(), sampleOrder("LBVP1", time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))))
	return svc, store, pub
}

func TestChangeStatus_WalksSequence(t *testing.T) {
	svc, store, pub := newTestService(t)
	ctx := context.Background()

	for _, next := range []Status{StatusProcessing, StatusShipped, StatusDelivered} {
		o, err := svc.ChangeStatus(ctx, "LBVP1", next, false)
		require.NoError(t, err)
		assert.Equal(t, next, o.Status)
	}

	got, err := store.Get(ctx, "LBVP1")
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, got.Status)
	assert.Equal(t, PaymentPaid, got.PaymentStatus)
	assert.Len(t, got.Timeline, 4)
	assert.Len(t, pub.events, 3)
	assert.Equal(t, events.OrderStatusChanged, pub.events[2].Type)
	assert.Equal(t, "paid", pub.events[2].PaymentStatus)
}

func TestChangeStatus_RejectsSkipsUnlessOverridden(t *testing.T) {
	svc, _, pub := newTestService(t)
	ctx := context.Background()

	_, err := svc.ChangeStatus(ctx, "LBVP1", StatusShipped, false)
	assert.Equal(t, apperr.CodeInvalidTransition, apperr.CodeOf(err))

	_, err = svc.ChangeStatus(ctx, "LBVP1", "printed", true)
	assert.Equal(t, apperr.CodeInvalidStatus, apperr.CodeOf(err))

	o, err := svc.ChangeStatus(ctx, "LBVP1", StatusShipped, true)
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, o.Status)

	// backwards with override is allowed too
	o, err = svc.ChangeStatus(ctx, "LBVP1", StatusConfirmed, true)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, o.Status)
	assert.Len(t, pub.events, 2)
}

func TestChangeStatus_SameStatusIsNoop(t *testing.T) {
	svc, _, pub := newTestService(t)
	o, err := svc.ChangeStatus(context.Background(), "LBVP1", StatusConfirmed, false)
	require.NoError(t, err)
	assert.Len(t, o.Timeline, 1)
	assert.Empty(t, pub.events)
}

func TestChangeStatus_MissingOrder(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.ChangeStatus(context.Background(), "LBVP404", StatusProcessing, false)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestChangeStatus_PublishFailureIsNotFatal(t *testing.T) {
	svc, _, pub := newTestService(t)
	pub.err = errors.New("queue down")
	_, err := svc.ChangeStatus(context.Background(), "LBVP1", StatusProcessing, false)
	assert.NoError(t, err)
}

func TestSetPaymentStatus(t *testing.T) {
	svc, store, pub := newTestService(t)
	ctx := context.Background()

	o, err := svc.SetPaymentStatus(ctx, "LBVP1", PaymentPaid)
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, o.PaymentStatus)

	got, _ := store.Get(ctx, "LBVP1")
	assert.Equal(t, PaymentPaid, got.PaymentStatus)
	require.Len(t, pub.events, 1)
	assert.Equal(t, events.OrderPaymentChanged, pub.events[0].Type)

	_, err = svc.SetPaymentStatus(ctx, "LBVP1", "refunded")
	assert.Equal(t, apperr.CodeInvalidStatus, apperr.CodeOf(err))
}

func TestSetPaymentStatus_DeliveredStaysPaid(t *testing.T) {
	svc, store, pub := newTestService(t)
	ctx := context.Background()

	_, err := svc.ChangeStatus(ctx, "LBVP1", StatusDelivered, true)
	require.NoError(t, err)

	for _, ps := range []PaymentStatus{PaymentFailed, PaymentPending} {
		_, err = svc.SetPaymentStatus(ctx, "LBVP1", ps)
		assert.Equal(t, apperr.CodeInvalidTransition, apperr.CodeOf(err), ps)
	}
	o, err := svc.SetPaymentStatus(ctx, "LBVP1", PaymentPaid)
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, o.PaymentStatus)

	got, _ := store.Get(ctx, "LBVP1")
	assert.Equal(t, PaymentPaid, got.PaymentStatus)
	assert.Len(t, pub.events, 1)
}

func TestChangeStatus_ReapplyingDeliveredSettlesPayment(t *testing.T) {
	svc, store, pub := newTestService(t)
	ctx := context.Background()

	_, err := svc.SetPaymentStatus(ctx, "LBVP1", PaymentFailed)
	require.NoError(t, err)
	o, err := svc.ChangeStatus(ctx, "LBVP1", StatusDelivered, true)
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, o.PaymentStatus)

	// a delivered row written with a failed payment before the guard existed
	stale := *o
	stale.PaymentStatus = PaymentFailed
	require.NoError(t, store.UpdateStatus(ctx, stale, StatusDelivered))

	o, err = svc.ChangeStatus(ctx, "LBVP1", StatusDelivered, false)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, o.Status)
	assert.Equal(t, PaymentPaid, o.PaymentStatus)

	got, err := store.Get(ctx, "LBVP1")
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, got.PaymentStatus)
	assert.Len(t, got.Timeline, 2)
	require.Len(t, pub.events, 3)
	assert.Equal(t, "paid", pub.events[2].PaymentStatus)

	// settled: another delivered is a no-op again
	_, err = svc.ChangeStatus(ctx, "LBVP1", StatusDelivered, false)
	require.NoError(t, err)
	assert.Len(t, pub.events, 3)
}

func TestShipmentAndCourierUpdates(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AssignShipment(ctx, "LBVP1", Shipment{Courier: " ", AWB: "x"})
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))

	o, err := svc.AssignShipment(ctx, "LBVP1", Shipment{Courier: "Delhivery", AWB: "dl777", TrackingURL: "https://track.example/dl777"})
	require.NoError(t, err)
	assert.Equal(t, "DL777", o.AWBKey)

	require.NoError(t, store.Create(ctx, sampleOrder("LBVP2", time.Now().UTC())))
	_, err = svc.AssignShipment(ctx, "LBVP2", Shipment{Courier: "Delhivery", AWB: "DL777"})
	assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))

	_, err = svc.AddCourierUpdate(ctx, "LBVP1", CourierUpdate{Location: "Bhiwandi Hub", Message: "Picked up"})
	require.NoError(t, err)
	o, err = svc.AddCourierUpdate(ctx, "LBVP1", CourierUpdate{Location: "Andheri", Message: "Out for delivery"})
	require.NoError(t, err)
	assert.Equal(t, "Andheri", o.CurrentLocation)

	got, err := store.Get(ctx, "LBVP1")
	require.NoError(t, err)
	assert.Len(t, got.Updates, 2)
	assert.Equal(t, "Delhivery", got.Shipment.Courier)
	assert.Equal(t, "Andheri", got.CurrentLocation)
	// frozen fields survive annotation writes
	assert.Equal(t, int64(299800), got.Total)
	assert.Equal(t, StatusConfirmed, got.Status)
}

func TestSetEstimatedDelivery(t *testing.T) {
	svc, store, _ := newTestService(t)
	eta := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)

	_, err := svc.SetEstimatedDelivery(context.Background(), "LBVP1", eta)
	require.NoError(t, err)

	got, _ := store.Get(context.Background(), "LBVP1")
	require.NotNil(t, got.EstimatedDelivery)
	assert.True(t, got.EstimatedDelivery.Equal(eta))
}
