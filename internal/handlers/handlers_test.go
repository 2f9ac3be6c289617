package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/lbvp-storefront/internal/admin"
	"github.com/imrishuroy/lbvp-storefront/internal/catalog"
	"github.com/imrishuroy/lbvp-storefront/internal/checkout"
	"github.com/imrishuroy/lbvp-storefront/internal/dynamotest"
	"github.com/imrishuroy/lbvp-storefront/internal/identity"
	"github.com/imrishuroy/lbvp-storefront/internal/idempotency"
	"github.com/imrishuroy/lbvp-storefront/internal/localstore"
	"github.com/imrishuroy/lbvp-storefront/internal/orders"
)

const callbackToken = "gateway-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router  *gin.Engine
	catalog *catalog.Store
	admins  *admin.Store
	dynamo  *dynamotest.Fake
	cookie  *http.Cookie
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	fake := dynamotest.New().
		CreateTable("products", "id").
		CreateTable("orders", "order_id").
		CreateTable("admins", "principal_id").
		CreateTable("idempotency", "idempotency_key")

	cat := catalog.NewStore(fake, "products")
	orderStore := orders.NewStore(fake, "orders")
	lifecycle := orders.NewService(orderStore, nil, nil)
	validator := checkout.NewValidator(cat)
	admins := admin.NewStore(fake, "admins")

	cfg := HandlerConfig{
		Catalog:   cat,
		Carts:     localstore.NewMemory(),
		Validator: validator,
		Checkout: checkout.NewService(validator, orderStore, lifecycle,
			idempotency.NewStore(fake, "idempotency", time.Hour), nil, nil, checkout.Options{}),
		Tracker:              orders.NewTracker(orderStore, 0),
		Admin:                admin.NewService(identity.ContextSource{}, admins, cat, orderStore, lifecycle, nil, nil),
		PaymentCallbackToken: callbackToken,
	}

	r := gin.New()
	r.Use(identity.Middleware(true))
	RegisterRoutes(r, cfg)

	_, err := admins.Grant(context.Background(), "owner", "owner@lbvp.in", "")
	require.NoError(t, err)
	return &testServer{router: r, catalog: cat, admins: admins, dynamo: fake}
}

func (s *testServer) addProduct(t *testing.T, name string, price int64, sizes ...string) catalog.Item {
	t.Helper()
	it, err := s.catalog.Upsert(context.Background(), catalog.Item{Name: name, Category: "kurtas", Price: price, Stock: 10, Sizes: sizes})
	require.NoError(t, err)
	return *it
}

// do sends a request carrying the cart cookie issued earlier, if any.
func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if s.cookie != nil {
		req.AddCookie(s.cookie)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	for _, ck := range w.Result().Cookies() {
		if ck.Name == cartCookie {
			s.cookie = ck
		}
	}
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

func asAdmin(id string) map[string]string {
	return map[string]string{identity.HeaderPrincipalID: id}
}

func customerBody() map[string]string {
	return map[string]string{
		"full_name":      "Rahul Sharma",
		"email":          "rahul@example.com",
		"phone":          "9876543210",
		"address":        "123 MG Road, Andheri West",
		"city":           "Mumbai",
		"pincode":        "400053",
		"payment_method": "cod",
	}
}

func TestCartRoutes(t *testing.T) {
	s := newTestServer(t)
	kurta := s.addProduct(t, "Cotton Kurta", 49900, "M", "L")

	w := s.do(t, http.MethodPost, "/cart/items", map[string]interface{}{"item_id": kurta.ID, "size": "M", "quantity": 2}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, s.cookie)
	assert.True(t, s.cookie.HttpOnly)

	w = s.do(t, http.MethodPost, "/cart/items", map[string]interface{}{"item_id": kurta.ID}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var view cartResponse
	decode(t, s.do(t, http.MethodGet, "/cart", nil, nil), &view)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 3, view.ItemCount)
	assert.Equal(t, int64(3*49900), view.Subtotal)
	assert.Equal(t, int64(0), view.Shipping)

	w = s.do(t, http.MethodPost, "/cart/items", map[string]interface{}{"item_id": kurta.ID, "size": "XXL"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/cart/items", map[string]interface{}{"item_id": kurta.ID, "quantity": -1}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/cart/items", map[string]interface{}{"size": "M"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/cart/items", map[string]interface{}{"item_id": "product-missing"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	decode(t, s.do(t, http.MethodPatch, "/cart/items", map[string]interface{}{"item_id": kurta.ID, "size": "M", "quantity": 1}, nil), &view)
	assert.Equal(t, 1, view.ItemCount)
	assert.Equal(t, int64(9900), view.Shipping)

	decode(t, s.do(t, http.MethodDelete, "/cart/items/"+kurta.ID+"?size=M", nil, nil), &view)
	assert.Empty(t, view.Lines)
}

func TestSubmitOrderAndTrack(t *testing.T) {
	s := newTestServer(t)
	kurta := s.addProduct(t, "Cotton Kurta", 49900, "M")
	s.do(t, http.MethodPost, "/cart/items", map[string]interface{}{"item_id": kurta.ID, "size": "M"}, nil)

	var quote struct {
		Quote checkout.Quote `json:"quote"`
		Valid bool           `json:"valid"`
	}
	decode(t, s.do(t, http.MethodGet, "/checkout/quote", nil, nil), &quote)
	assert.True(t, quote.Valid)
	assert.Equal(t, int64(59800), quote.Quote.Total)

	key := map[string]string{headerIdempotencyKey: "submit-1"}
	w := s.do(t, http.MethodPost, "/orders", customerBody(), key)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var placed orders.Order
	decode(t, w, &placed)
	assert.Equal(t, "/track/"+placed.ID, w.Header().Get("Location"))
	assert.Equal(t, orders.StatusConfirmed, placed.Status)

	w = s.do(t, http.MethodPost, "/orders", customerBody(), key)
	require.Equal(t, http.StatusCreated, w.Code)
	var replayed orders.Order
	decode(t, w, &replayed)
	assert.Equal(t, placed.ID, replayed.ID)
	assert.Equal(t, 1, s.dynamo.Len("orders"))

	var view orders.TrackingView
	w = s.do(t, http.MethodGet, "/track/"+placed.ID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &view)
	assert.Equal(t, 10, view.Progress)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/track/NOPE", nil, nil).Code)
}

func TestSubmitOrderRejections(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/orders", customerBody(), nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var failure struct {
		Error  string          `json:"error"`
		Report checkout.Report `json:"report"`
	}
	decode(t, w, &failure)
	assert.Equal(t, "cart_invalid", failure.Error)
	require.NotEmpty(t, failure.Report.Errors)
	assert.Equal(t, checkout.KindEmptyCart, failure.Report.Errors[0].Kind)

	kurta := s.addProduct(t, "Cotton Kurta", 49900, "M")
	s.do(t, http.MethodPost, "/cart/items", map[string]interface{}{"item_id": kurta.ID, "size": "M"}, nil)

	body := customerBody()
	body["phone"] = "12345"
	body["pincode"] = "4000"
	w = s.do(t, http.MethodPost, "/orders", body, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	var formErr struct {
		Fields map[string]string `json:"fields"`
	}
	decode(t, w, &formErr)
	assert.Equal(t, "Please enter a valid 10-digit phone number", formErr.Fields["phone"])
	assert.Equal(t, "Please enter a valid 6-digit pincode", formErr.Fields["pincode"])
	assert.Equal(t, 0, s.dynamo.Len("orders"))
}

func TestPaymentCallback(t *testing.T) {
	s := newTestServer(t)
	kurta := s.addProduct(t, "Cotton Kurta", 49900, "M")
	s.do(t, http.MethodPost, "/cart/items", map[string]interface{}{"item_id": kurta.ID, "size": "M"}, nil)
	body := customerBody()
	body["payment_method"] = "upi"
	var placed orders.Order
	decode(t, s.do(t, http.MethodPost, "/orders", body, nil), &placed)
	assert.Equal(t, orders.PaymentPending, placed.PaymentStatus)

	path := "/orders/" + placed.ID + "/payment"
	w := s.do(t, http.MethodPost, path, map[string]string{"payment_status": "paid"}, map[string]string{headerCallbackToken: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, path, map[string]string{"payment_status": "pending"}, map[string]string{headerCallbackToken: callbackToken})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, path, map[string]string{"payment_status": "paid"}, map[string]string{headerCallbackToken: callbackToken})
	require.Equal(t, http.StatusOK, w.Code)
	var paid orders.Order
	decode(t, w, &paid)
	assert.Equal(t, orders.PaymentPaid, paid.PaymentStatus)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/admin/dashboard", nil, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/admin/dashboard", nil, asAdmin("shopper")).Code)

	w := s.do(t, http.MethodPost, "/admin/products", map[string]interface{}{
		"name": "Linen Shirt", "category": "shirts", "price_text": "₹1,299", "stock": 5, "sizes_text": "S, M, L",
	}, asAdmin("owner"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var saved catalog.Item
	decode(t, w, &saved)
	assert.Equal(t, int64(129900), saved.Price)
	assert.Equal(t, []string{"S", "M", "L"}, saved.Sizes)

	w = s.do(t, http.MethodPut, "/admin/products/"+saved.ID, map[string]interface{}{
		"name": "Linen Shirt", "price": 129900, "sizes": []string{"M"}, "original_price": 99900, "is_on_sale": true,
	}, asAdmin("owner"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	s.do(t, http.MethodPost, "/cart/items", map[string]interface{}{"item_id": saved.ID, "size": "M"}, nil)
	var placed orders.Order
	decode(t, s.do(t, http.MethodPost, "/orders", customerBody(), nil), &placed)

	status := "/admin/orders/" + placed.ID + "/status"
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPut, status, map[string]interface{}{"status": "printed"}, asAdmin("owner")).Code)
	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPut, status, map[string]interface{}{"status": "shipped"}, asAdmin("owner")).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPut, status, map[string]interface{}{"status": "processing"}, asAdmin("owner")).Code)

	w = s.do(t, http.MethodPut, "/admin/orders/"+placed.ID+"/shipment", map[string]interface{}{"courier": "Delhivery", "awb": "dl-991"}, asAdmin("owner"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(t, http.MethodGet, "/track/DL-991", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list struct {
		Orders []orders.Order `json:"orders"`
	}
	decode(t, s.do(t, http.MethodGet, "/admin/orders?q=rahul&status=processing", nil, asAdmin("owner")), &list)
	assert.Len(t, list.Orders, 1)

	w = s.do(t, http.MethodDelete, "/admin/admins/owner", nil, asAdmin("owner"))
	assert.Equal(t, http.StatusForbidden, w.Code)
	var body struct {
		Error string `json:"error"`
	}
	decode(t, w, &body)
	assert.Equal(t, "self_demotion_forbidden", body.Error)

	assert.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/admin/admins", map[string]string{"principal_id": "staff"}, asAdmin("owner")).Code)
	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/admin/admins/staff", nil, asAdmin("owner")).Code)
}
