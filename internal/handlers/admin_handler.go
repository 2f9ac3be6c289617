package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/lbvp-storefront/internal/admin"
	"github.com/imrishuroy/lbvp-storefront/internal/apperr"
	"github.com/imrishuroy/lbvp-storefront/internal/catalog"
	"github.com/imrishuroy/lbvp-storefront/internal/money"
	"github.com/imrishuroy/lbvp-storefront/internal/orders"
	"github.com/imrishuroy/lbvp-storefront/internal/validation"
)

const maxImageBytes = 5 << 20

func (s *server) registerAdminRoutes(g *gin.RouterGroup) {
	g.GET("/me", s.adminMe)
	g.GET("/dashboard", s.adminDashboard)

	g.GET("/products", s.adminListProducts)
	g.POST("/products", s.adminSaveProduct)
	g.PUT("/products/:id", s.adminSaveProduct)
	g.DELETE("/products/:id", s.adminDeleteProduct)
	g.POST("/products/:id/image", s.adminAttachImage)

	g.GET("/orders", s.adminListOrders)
	g.PUT("/orders/:id/status", s.adminUpdateStatus)
	g.PUT("/orders/:id/shipment", s.adminAssignShipment)
	g.POST("/orders/:id/updates", s.adminCourierUpdate)
	g.PUT("/orders/:id/payment", s.adminConfirmPayment)

	g.GET("/admins", s.adminListAdmins)
	g.POST("/admins", s.adminGrant)
	g.DELETE("/admins/:id", s.adminRemove)
}

// productRequest accepts prices either as paise or as rupee strings
// ("₹1,299.50"); the string form wins when both are set.
type productRequest struct {
	Name          string   `json:"name"`
	Category      string   `json:"category"`
	Description   string   `json:"description"`
	Price         int64    `json:"price"`
	PriceText     string   `json:"price_text"`
	OriginalPrice *int64   `json:"original_price"`
	OriginalText  string   `json:"original_price_text"`
	Stock         int      `json:"stock"`
	Sizes         []string `json:"sizes"`
	SizesText     string   `json:"sizes_text"`
	IsOnSale      bool     `json:"is_on_sale"`
	IsNew         bool     `json:"is_new"`
	Image         string   `json:"image"`
}

func (r productRequest) item(id string) (catalog.Item, error) {
	it := catalog.Item{
		ID:            id,
		Name:          r.Name,
		Category:      r.Category,
		Description:   r.Description,
		Price:         r.Price,
		OriginalPrice: r.OriginalPrice,
		Stock:         r.Stock,
		Sizes:         r.Sizes,
		IsOnSale:      r.IsOnSale,
		IsNew:         r.IsNew,
		Image:         r.Image,
	}
	if r.PriceText != "" {
		p, err := money.Parse(r.PriceText)
		if err != nil {
			return it, apperr.Wrap(apperr.CodeInvalidItem, err, "price")
		}
		it.Price = p
	}
	if r.OriginalText != "" {
		p, err := money.Parse(r.OriginalText)
		if err != nil {
			return it, apperr.Wrap(apperr.CodeInvalidItem, err, "original price")
		}
		it.OriginalPrice = &p
	}
	if r.SizesText != "" {
		it.Sizes = catalog.ParseSizes(r.SizesText)
	}
	return it, nil
}

func (s *server) adminMe(c *gin.Context) {
	p, err := s.cfg.Admin.Me(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *server) adminDashboard(c *gin.Context) {
	d, err := s.cfg.Admin.Dashboard(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *server) adminListProducts(c *gin.Context) {
	items, err := s.cfg.Admin.ListProducts(c.Request.Context(), filterFromQuery(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": items})
}

func (s *server) adminSaveProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body", "msg": err.Error()})
		return
	}
	it, err := req.item(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	saved, err := s.cfg.Admin.UpsertItem(c.Request.Context(), it)
	if err != nil {
		s.writeError(c, err)
		return
	}
	status := http.StatusOK
	if c.Param("id") == "" {
		status = http.StatusCreated
	}
	c.JSON(status, saved)
}

func (s *server) adminDeleteProduct(c *gin.Context) {
	if err := s.cfg.Admin.DeleteItem(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// adminAttachImage takes a multipart upload in the "image" field.
func (s *server) adminAttachImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImageBytes)
	fh, err := c.FormFile("image")
	if err != nil {
		s.writeError(c, apperr.Wrap(apperr.CodeInvalidArgument, err, "image file is required"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.writeError(c, apperr.Wrap(apperr.CodeInvalidArgument, err, "read image"))
		return
	}
	defer f.Close()

	it, err := s.cfg.Admin.AttachImage(c.Request.Context(), c.Param("id"), fh.Filename, fh.Header.Get("Content-Type"), f)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

func (s *server) adminListOrders(c *gin.Context) {
	list, err := s.cfg.Admin.ListOrders(c.Request.Context(), admin.OrderFilter{
		Search: c.Query("q"),
		Status: c.Query("status"),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list})
}

type statusRequest struct {
	Status   string `json:"status" validate:"required"`
	Override bool   `json:"override"`
}

func (s *server) adminUpdateStatus(c *gin.Context) {
	var req statusRequest
	if err := validation.BindAndValidate(c, &req, s.v); err != nil {
		return
	}
	o, err := s.cfg.Admin.UpdateOrderStatus(c.Request.Context(), c.Param("id"), req.Status, req.Override)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

type shipmentRequest struct {
	Courier     string `json:"courier" validate:"required"`
	AWB         string `json:"awb" validate:"required"`
	TrackingURL string `json:"tracking_url" validate:"omitempty,url"`
}

func (s *server) adminAssignShipment(c *gin.Context) {
	var req shipmentRequest
	if err := validation.BindAndValidate(c, &req, s.v); err != nil {
		return
	}
	o, err := s.cfg.Admin.AssignShipment(c.Request.Context(), c.Param("id"), orders.Shipment{
		Courier:     req.Courier,
		AWB:         req.AWB,
		TrackingURL: req.TrackingURL,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

type courierUpdateRequest struct {
	Location string    `json:"location"`
	Message  string    `json:"message" validate:"required"`
	At       time.Time `json:"at"`
}

func (s *server) adminCourierUpdate(c *gin.Context) {
	var req courierUpdateRequest
	if err := validation.BindAndValidate(c, &req, s.v); err != nil {
		return
	}
	o, err := s.cfg.Admin.PostCourierUpdate(c.Request.Context(), c.Param("id"), orders.CourierUpdate{
		Location: req.Location,
		Message:  req.Message,
		At:       req.At,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *server) adminConfirmPayment(c *gin.Context) {
	var req struct {
		PaymentStatus string `json:"payment_status" validate:"required"`
	}
	if err := validation.BindAndValidate(c, &req, s.v); err != nil {
		return
	}
	o, err := s.cfg.Admin.ConfirmPayment(c.Request.Context(), c.Param("id"), req.PaymentStatus)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *server) adminListAdmins(c *gin.Context) {
	list, err := s.cfg.Admin.ListAdmins(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"admins": list})
}

type grantRequest struct {
	PrincipalID string `json:"principal_id" validate:"required"`
	Email       string `json:"email" validate:"omitempty,email"`
}

func (s *server) adminGrant(c *gin.Context) {
	var req grantRequest
	if err := validation.BindAndValidate(c, &req, s.v); err != nil {
		return
	}
	p, err := s.cfg.Admin.GrantAdmin(c.Request.Context(), req.PrincipalID, req.Email)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (s *server) adminRemove(c *gin.Context) {
	if err := s.cfg.Admin.RemoveAdmin(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
