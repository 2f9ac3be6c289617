package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/lbvp-storefront/internal/apperr"
	"github.com/imrishuroy/lbvp-storefront/internal/events"
	"github.com/imrishuroy/lbvp-storefront/internal/orders"
	"github.com/imrishuroy/lbvp-storefront/internal/validation"
)

func TestSubmit_PlacesOrderAndClearsCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kurta := f.addProduct(t, "Cotton Kurta", 49900, 10, "M", "L")
	c := f.openCart(t, "cart-1")
	require.NoError(t, c.AddLine(ctx, kurta, "M", 1))

	o, err := f.service.Submit(ctx, SubmitRequest{Cart: c, Customer: validCustomer()})
	require.NoError(t, err)

	assert.Regexp(t, `^LBVP[0-9A-Z]+$`, o.ID)
	assert.Equal(t, orders.StatusConfirmed, o.Status)
	assert.Equal(t, orders.PaymentPending, o.PaymentStatus)
	assert.Equal(t, orders.PaymentUPI, o.PaymentMethod)
	assert.Equal(t, int64(49900), o.Subtotal)
	assert.Equal(t, ShippingFee, o.Shipping)
	assert.Equal(t, int64(59800), o.Total)
	require.Len(t, o.Timeline, 1)
	assert.Equal(t, "Order Placed", o.Timeline[0].Title)
	require.NotNil(t, o.EstimatedDelivery)
	assert.Equal(t, 5*24*time.Hour, o.EstimatedDelivery.Sub(o.CreatedAt))
	assert.Equal(t, "Priya Patel", o.Customer.Name)

	stored, err := f.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, o.Total, stored.Total)

	assert.Empty(t, c.Lines())
	assert.Empty(t, f.openCart(t, "cart-1").Lines())
	assert.Equal(t, 1, f.published.count(events.OrderSubmitted))
}

func TestSubmit_FreezesCatalogValues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kurta := f.addProduct(t, "Cotton Kurta", 149900, 10, "M")
	c := f.openCart(t, "cart-1")
	require.NoError(t, c.AddLine(ctx, kurta, "M", 2))

	kurta.Price = 99900
	kurta.Name = "Cotton Kurta (New Season)"
	_, err := f.catalog.Upsert(ctx, kurta)
	require.NoError(t, err)

	o, err := f.service.Submit(ctx, SubmitRequest{Cart: c, Customer: validCustomer()})
	require.NoError(t, err)
	require.Len(t, o.Items, 1)
	assert.Equal(t, int64(99900), o.Items[0].Price)
	assert.Equal(t, "Cotton Kurta (New Season)", o.Items[0].Name)
	assert.Equal(t, int64(199800), o.Subtotal)
	assert.Zero(t, o.Shipping)

	// later catalog edits do not reach the stored order
	kurta.Price = 10000
	_, err = f.catalog.Upsert(ctx, kurta)
	require.NoError(t, err)
	stored, err := f.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(99900), stored.Items[0].Price)
}

func TestSubmit_InvalidCartKeepsCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kurta := f.addProduct(t, "Cotton Kurta", 49900, 10, "M")
	c := f.openCart(t, "cart-1")
	require.NoError(t, c.AddLine(ctx, kurta, "M", 1))
	require.NoError(t, f.catalog.Delete(ctx, kurta.ID))

	_, err := f.service.Submit(ctx, SubmitRequest{Cart: c, Customer: validCustomer()})
	var vf *ValidationFailure
	require.True(t, errors.As(err, &vf))
	assert.Equal(t, KindItemUnavailable, vf.Report.Errors[0].Kind)
	assert.Len(t, c.Lines(), 1)
	assert.Equal(t, 0, f.dynamo.Len("orders"))
}

func TestSubmit_InvalidFormListsFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kurta := f.addProduct(t, "Cotton Kurta", 49900, 10, "M")
	c := f.openCart(t, "cart-1")
	require.NoError(t, c.AddLine(ctx, kurta, "M", 1))

	form := validCustomer()
	form.Phone = "12345"
	form.Pincode = "ABCDEF"
	_, err := f.service.Submit(ctx, SubmitRequest{Cart: c, Customer: form})
	var fe *validation.FormError
	require.True(t, errors.As(err, &fe))
	assert.Len(t, fe.Fields, 2)
	assert.Len(t, c.Lines(), 1)
	assert.Equal(t, 0, f.dynamo.Len("orders"))
}

func TestSubmit_PersistFailureLeavesCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kurta := f.addProduct(t, "Cotton Kurta", 49900, 10, "M")
	c := f.openCart(t, "cart-1")
	require.NoError(t, c.AddLine(ctx, kurta, "M", 1))
	puts := f.carts.puts

	f.dynamo.FailNext("PutItem", errors.New("throttled"))
	_, err := f.service.Submit(ctx, SubmitRequest{Cart: c, Customer: validCustomer()})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeExternalService, apperr.CodeOf(err))
	assert.Len(t, c.Lines(), 1)
	assert.Equal(t, puts, f.carts.puts)
	assert.Zero(t, f.published.count(events.OrderSubmitted))
}

func TestSubmit_IdempotentReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kurta := f.addProduct(t, "Cotton Kurta", 49900, 10, "M")
	c := f.openCart(t, "cart-1")
	require.NoError(t, c.AddLine(ctx, kurta, "M", 1))

	first, err := f.service.Submit(ctx, SubmitRequest{Cart: c, Customer: validCustomer(), IdempotencyKey: "key-1"})
	require.NoError(t, err)
	clears := f.carts.puts

	// the shopper refills the cart; a retried submit must not touch it
	require.NoError(t, c.AddLine(ctx, kurta, "M", 3))
	clears++
	second, err := f.service.Submit(ctx, SubmitRequest{Cart: c, Customer: validCustomer(), IdempotencyKey: "key-1"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.dynamo.Len("orders"))
	assert.Len(t, c.Lines(), 1)
	assert.Equal(t, clears, f.carts.puts)
	assert.Equal(t, 1, f.published.count(events.OrderSubmitted))

	rec, err := f.idem.Get(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "DONE", rec.Status)
}

func TestSubmit_ExpiredKeyPlacesNewOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kurta := f.addProduct(t, "Cotton Kurta", 49900, 10, "M")
	c := f.openCart(t, "cart-1")
	require.NoError(t, c.AddLine(ctx, kurta, "M", 1))

	// expired long ago but not yet swept by the table TTL
	_, err := f.dynamo.PutItem(ctx, &dyn.PutItemInput{
		TableName: aws.String("idempotency"),
		Item: map[string]types.AttributeValue{
			"idempotency_key": &types.AttributeValueMemberS{Value: "key-1"},
			"order_id":        &types.AttributeValueMemberS{Value: "LBVPOLD"},
			"status":          &types.AttributeValueMemberS{Value: "DONE"},
			"expires_at":      &types.AttributeValueMemberN{Value: "1000"},
		},
	})
	require.NoError(t, err)

	o, err := f.service.Submit(ctx, SubmitRequest{Cart: c, Customer: validCustomer(), IdempotencyKey: "key-1"})
	require.NoError(t, err)
	assert.NotEqual(t, "LBVPOLD", o.ID)
	assert.Equal(t, 1, f.dynamo.Len("orders"))

	rec, err := f.idem.Get(ctx, "key-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, o.ID, rec.OrderID)
	assert.Equal(t, "DONE", rec.Status)
}

func TestSubmit_CartClearedExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kurta := f.addProduct(t, "Cotton Kurta", 49900, 10, "M")
	c := f.openCart(t, "cart-1")
	require.NoError(t, c.AddLine(ctx, kurta, "M", 1))
	before := f.carts.puts

	_, err := f.service.Submit(ctx, SubmitRequest{Cart: c, Customer: validCustomer()})
	require.NoError(t, err)
	assert.Equal(t, before+1, f.carts.puts)
}

func TestSubmit_ClearFailureStillReturnsOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kurta := f.addProduct(t, "Cotton Kurta", 49900, 10, "M")
	c := f.openCart(t, "cart-1")
	require.NoError(t, c.AddLine(ctx, kurta, "M", 1))

	f.carts.failPut = true
	o, err := f.service.Submit(ctx, SubmitRequest{Cart: c, Customer: validCustomer()})
	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, 1, f.dynamo.Len("orders"))
}

func TestConfirmPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kurta := f.addProduct(t, "Cotton Kurta", 49900, 10, "M")
	c := f.openCart(t, "cart-1")
	require.NoError(t, c.AddLine(ctx, kurta, "M", 1))
	o, err := f.service.Submit(ctx, SubmitRequest{Cart: c, Customer: validCustomer()})
	require.NoError(t, err)

	_, err = f.service.ConfirmPayment(ctx, o.ID, orders.PaymentPending)
	assert.Equal(t, apperr.CodeInvalidStatus, apperr.CodeOf(err))

	paid, err := f.service.ConfirmPayment(ctx, o.ID, orders.PaymentPaid)
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentPaid, paid.PaymentStatus)
	assert.Equal(t, 1, f.published.count(events.OrderPaymentChanged))
}
