package handlers

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/lbvp-storefront/internal/apperr"
	"github.com/imrishuroy/lbvp-storefront/internal/checkout"
	"github.com/imrishuroy/lbvp-storefront/internal/orders"
	"github.com/imrishuroy/lbvp-storefront/internal/validation"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerCallbackToken  = "X-Callback-Token"
)

func (s *server) validateCart(c *gin.Context) {
	e, err := s.openCart(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	report, err := s.cfg.Validator.Validate(c.Request.Context(), e.Lines())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// quoteCart prices the order summary from current catalog prices.
func (s *server) quoteCart(c *gin.Context) {
	e, err := s.openCart(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	report, err := s.cfg.Validator.Validate(c.Request.Context(), e.Lines())
	if err != nil {
		s.writeError(c, err)
		return
	}
	subtotal := report.Subtotal
	if !report.Valid {
		subtotal = e.Subtotal()
	}
	c.JSON(http.StatusOK, gin.H{
		"quote":    checkout.QuoteFor(subtotal),
		"valid":    report.Valid,
		"warnings": report.Warnings,
	})
}

func (s *server) submitOrder(c *gin.Context) {
	var form validation.CustomerForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body", "msg": err.Error()})
		return
	}
	e, err := s.openCart(c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	order, err := s.cfg.Checkout.Submit(c.Request.Context(), checkout.SubmitRequest{
		Cart:           e,
		Customer:       form,
		IdempotencyKey: c.GetHeader(headerIdempotencyKey),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Header("Location", fmt.Sprintf("/track/%s", order.ID))
	c.JSON(http.StatusCreated, order)
}

type paymentRequest struct {
	PaymentStatus string `json:"payment_status" validate:"required,oneof=paid failed"`
}

// paymentCallback is called by the payment gateway once a prepaid order
// settles.
func (s *server) paymentCallback(c *gin.Context) {
	if subtle.ConstantTimeCompare([]byte(c.GetHeader(headerCallbackToken)), []byte(s.cfg.PaymentCallbackToken)) != 1 {
		s.writeError(c, apperr.New(apperr.CodeUnauthorized, "invalid callback token"))
		return
	}
	var req paymentRequest
	if err := validation.BindAndValidate(c, &req, s.v); err != nil {
		return
	}
	o, err := s.cfg.Checkout.ConfirmPayment(c.Request.Context(), c.Param("id"), orders.PaymentStatus(req.PaymentStatus))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *server) trackOrder(c *gin.Context) {
	view, err := s.cfg.Tracker.FindOrder(c.Request.Context(), c.Param("query"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
