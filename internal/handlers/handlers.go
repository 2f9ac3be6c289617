package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/imrishuroy/lbvp-storefront/internal/admin"
	"github.com/imrishuroy/lbvp-storefront/internal/apperr"
	"github.com/imrishuroy/lbvp-storefront/internal/catalog"
	"github.com/imrishuroy/lbvp-storefront/internal/checkout"
	"github.com/imrishuroy/lbvp-storefront/internal/localstore"
	"github.com/imrishuroy/lbvp-storefront/internal/logging"
	"github.com/imrishuroy/lbvp-storefront/internal/orders"
	"github.com/imrishuroy/lbvp-storefront/internal/validation"
)

// HandlerConfig groups dependencies for the storefront routes.
type HandlerConfig struct {
	Catalog   *catalog.Store
	Carts     localstore.Store
	Validator *checkout.Validator
	Checkout  *checkout.Service
	Tracker   *orders.Tracker
	Admin     *admin.Service
	Logger    *zap.Logger

	// PaymentCallbackToken guards POST /orders/:id/payment. Empty disables it.
	PaymentCallbackToken string
	// SecureCookies marks the cart cookie Secure (anything but local runs).
	SecureCookies bool
}

type server struct {
	cfg    HandlerConfig
	v      *validatorv10.Validate
	logger *zap.Logger
}

// RegisterRoutes registers the storefront and admin APIs.
func RegisterRoutes(r *gin.Engine, cfg HandlerConfig) {
	s := &server{cfg: cfg, v: validation.New(), logger: logging.OrNop(cfg.Logger)}

	r.GET("/products", s.listProducts)
	r.GET("/products/:id", s.getProduct)

	r.GET("/cart", s.getCart)
	r.POST("/cart/items", s.addCartItem)
	r.PATCH("/cart/items", s.setCartQuantity)
	r.DELETE("/cart/items/:item_id", s.removeCartItem)
	r.DELETE("/cart", s.clearCart)

	r.POST("/checkout/validate", s.validateCart)
	r.GET("/checkout/quote", s.quoteCart)
	r.POST("/orders", s.submitOrder)
	if cfg.PaymentCallbackToken != "" {
		r.POST("/orders/:id/payment", s.paymentCallback)
	}
	r.GET("/track/:query", s.trackOrder)

	if cfg.Admin != nil {
		s.registerAdminRoutes(r.Group("/admin"))
	}
}

// writeError renders err and records it on the gin context.
func (s *server) writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	var vf *checkout.ValidationFailure
	if errors.As(err, &vf) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "cart_invalid",
			"report": vf.Report,
		})
		return
	}
	if validation.WriteFormError(c, err) {
		return
	}

	code := apperr.CodeOf(err)
	status := apperr.HTTPStatus(code)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		if code == apperr.CodeInternal {
			msg = "internal error"
		}
	}
	c.JSON(status, gin.H{"error": code, "message": msg})
}
