package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/lbvp-storefront/internal/apperr"
	"github.com/imrishuroy/lbvp-storefront/internal/catalog"
)

func filterFromQuery(c *gin.Context) catalog.Filter {
	return catalog.Filter{
		Search:   c.Query("q"),
		Category: c.Query("category"),
		OnSale:   queryBool(c, "on_sale"),
		NewOnly:  queryBool(c, "new"),
		InStock:  queryBool(c, "in_stock"),
	}
}

func queryBool(c *gin.Context, key string) bool {
	b, _ := strconv.ParseBool(c.Query(key))
	return b
}

func (s *server) listProducts(c *gin.Context) {
	items, err := s.cfg.Catalog.List(c.Request.Context(), filterFromQuery(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": items})
}

func (s *server) getProduct(c *gin.Context) {
	id := c.Param("id")
	it, err := s.cfg.Catalog.Get(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if it == nil {
		s.writeError(c, apperr.NewNotFound("product %s not found", id))
		return
	}
	c.JSON(http.StatusOK, it)
}
