package admin

import (
	"context"
	"strings"

	"github.com/imrishuroy/lbvp-storefront/internal/catalog"
	"github.com/imrishuroy/lbvp-storefront/internal/orders"
)

// OrderFilter narrows ListOrders. Search matches the order id or the
// customer name, case-insensitively.
type OrderFilter struct {
	Search string
	Status string
}

func (f OrderFilter) match(o orders.Order) bool {
	if f.Status != "" && string(o.Status) != f.Status {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		return strings.Contains(strings.ToLower(o.ID), q) ||
			strings.Contains(strings.ToLower(o.Customer.Name), q)
	}
	return true
}

// ListOrders returns matching orders, newest first.
func (s *Service) ListOrders(ctx context.Context, f OrderFilter) ([]orders.Order, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	if f.Status != "" {
		st, err := orders.ParseStatus(f.Status)
		if err != nil {
			return nil, err
		}
		f.Status = string(st)
	}
	all, err := s.orders.List(ctx)
	if err != nil {
		return nil, err
	}
	out := []orders.Order{}
	for _, o := range all {
		if f.match(o) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Service) ListProducts(ctx context.Context, f catalog.Filter) ([]catalog.Item, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.catalog.List(ctx, f)
}

// Dashboard summarises the store for the back-office overview.
type Dashboard struct {
	TotalSales   int64                 `json:"total_sales"` // paise, item lines only
	OrderCount   int                   `json:"order_count"`
	ProductCount int                   `json:"product_count"`
	ByStatus     map[orders.Status]int `json:"by_status"`
	ByCategory   map[string]int        `json:"by_category"`
	RecentOrders []orders.Order        `json:"recent_orders"`
}

const recentOrderCount = 5

func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	all, err := s.orders.List(ctx)
	if err != nil {
		return nil, err
	}
	products, err := s.catalog.List(ctx, catalog.Filter{})
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		OrderCount:   len(all),
		ProductCount: len(products),
		ByStatus:     map[orders.Status]int{},
		ByCategory:   map[string]int{},
	}
	for _, st := range orders.Sequence {
		d.ByStatus[st] = 0
	}
	for _, o := range all {
		d.ByStatus[o.Status]++
		for _, it := range o.Items {
			d.TotalSales += it.Price * int64(it.Quantity)
		}
	}
	for _, p := range products {
		d.ByCategory[strings.ToLower(p.Category)]++
	}
	d.RecentOrders = all[:min(recentOrderCount, len(all))]
	return d, nil
}
