package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/imrishuroy/lbvp-storefront/internal/apperr"
	"github.com/imrishuroy/lbvp-storefront/internal/cart"
	"github.com/imrishuroy/lbvp-storefront/internal/checkout"
	"github.com/imrishuroy/lbvp-storefront/internal/validation"
)

const (
	cartCookie       = "lbvp_cart"
	cartCookieMaxAge = 30 * 24 * 60 * 60
)

type cartItemRequest struct {
	ItemID   string `json:"item_id" validate:"required"`
	Size     string `json:"size"`
	Quantity int    `json:"quantity"`
}

type cartResponse struct {
	ID        string      `json:"id"`
	Lines     []cart.Line `json:"lines"`
	ItemCount int         `json:"item_count"`
	checkout.Quote
}

func cartView(e *cart.Engine) cartResponse {
	return cartResponse{
		ID:        e.ID(),
		Lines:     e.Lines(),
		ItemCount: e.ItemCount(),
		Quote:     checkout.QuoteFor(e.Subtotal()),
	}
}

// openCart loads the caller's cart, issuing a new cart id cookie on first use.
func (s *server) openCart(c *gin.Context) (*cart.Engine, error) {
	id, err := c.Cookie(cartCookie)
	if err != nil || id == "" {
		id = uuid.NewString()
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cartCookie, id, cartCookieMaxAge, "/", "", s.cfg.SecureCookies, true)
	}
	return cart.Open(c.Request.Context(), s.cfg.Carts, id)
}

func (s *server) getCart(c *gin.Context) {
	e, err := s.openCart(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartView(e))
}

func (s *server) addCartItem(c *gin.Context) {
	var req cartItemRequest
	if err := validation.BindAndValidate(c, &req, s.v); err != nil {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	ctx := c.Request.Context()

	item, err := s.cfg.Catalog.Get(ctx, req.ItemID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if item == nil {
		s.writeError(c, apperr.NewNotFound("product %s not found", req.ItemID))
		return
	}
	if req.Size != "" && !item.HasSize(req.Size) {
		s.writeError(c, apperr.Newf(apperr.CodeInvalidArgument, "size %s is not available for %s", req.Size, item.Name))
		return
	}

	e, err := s.openCart(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := e.AddLine(ctx, *item, req.Size, req.Quantity); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartView(e))
}

func (s *server) setCartQuantity(c *gin.Context) {
	var req cartItemRequest
	if err := validation.BindAndValidate(c, &req, s.v); err != nil {
		return
	}
	e, err := s.openCart(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := e.SetQuantity(c.Request.Context(), req.ItemID, req.Size, req.Quantity); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartView(e))
}

func (s *server) removeCartItem(c *gin.Context) {
	e, err := s.openCart(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := e.RemoveLine(c.Request.Context(), c.Param("item_id"), c.Query("size")); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartView(e))
}

func (s *server) clearCart(c *gin.Context) {
	e, err := s.openCart(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := e.Clear(c.Request.Context()); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartView(e))
}
