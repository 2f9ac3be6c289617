package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/lbvp-storefront/internal/cart"
	"github.com/imrishuroy/lbvp-storefront/internal/catalog"
	"github.com/imrishuroy/lbvp-storefront/internal/dynamotest"
	"github.com/imrishuroy/lbvp-storefront/internal/events"
	"github.com/imrishuroy/lbvp-storefront/internal/idempotency"
	"github.com/imrishuroy/lbvp-storefront/internal/localstore"
	"github.com/imrishuroy/lbvp-storefront/internal/orders"
	"github.com/imrishuroy/lbvp-storefront/internal/validation"
)

// fixture is a storefront wired to in-memory DynamoDB tables.
type fixture struct {
	dynamo    *dynamotest.Fake
	catalog   *catalog.Store
	orders    *orders.Store
	lifecycle *orders.Service
	idem      *idempotency.Store
	carts     *flakyCarts
	published *recorder
	service   *Service
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) count(t events.Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

// flakyCarts counts snapshot writes and can fail them.
type flakyCarts struct {
	*localstore.Memory
	mu      sync.Mutex
	puts    int
	failPut bool
}

func (f *flakyCarts) Put(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	f.puts++
	fail := f.failPut
	f.mu.Unlock()
	if fail {
		return errors.New("storage full")
	}
	return f.Memory.Put(ctx, key, value)
}

func newFixture(t testing.TB) *fixture {
	fake := dynamotest.New().
		CreateTable("products", "id").
		CreateTable("orders", "order_id").
		CreateTable("idempotency", "idempotency_key")

	f := &fixture{
		dynamo:    fake,
		catalog:   catalog.NewStore(fake, "products"),
		orders:    orders.NewStore(fake, "orders"),
		idem:      idempotency.NewStore(fake, "idempotency", 24*time.Hour),
		carts:     &flakyCarts{Memory: localstore.NewMemory()},
		published: &recorder{},
	}
	f.lifecycle = orders.NewService(f.orders, f.published, nil)
	f.service = NewService(NewValidator(f.catalog), f.orders, f.lifecycle, f.idem, f.published, nil, Options{})
	return f
}

func (f *fixture) addProduct(t testing.TB, name string, price int64, stock int, sizes ...string) catalog.Item {
	it, err := f.catalog.Upsert(context.Background(), catalog.Item{Name: name, Category: "Kurtas", Price: price, Stock: stock, Sizes: sizes})
	require.NoError(t, err)
	return *it
}

func (f *fixture) openCart(t testing.TB, id string) *cart.Engine {
	e, err := cart.Open(context.Background(), f.carts, id)
	require.NoError(t, err)
	return e
}

func validCustomer() validation.CustomerForm {
	return validation.CustomerForm{
		FullName:      "Priya Patel",
		Email:         "priya@example.com",
		Phone:         "9876543211",
		Address:       "456 Park Street, Salt Lake",
		City:          "Kolkata",
		Pincode:       "700091",
		PaymentMethod: "upi",
	}
}
