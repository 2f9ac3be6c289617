// Package checkout validates a cart against the live catalog and turns it
// into an order.
package checkout

import (
	"context"
	"fmt"

	"github.com/imrishuroy/lbvp-storefront/internal/apperr"
	"github.com/imrishuroy/lbvp-storefront/internal/cart"
	"github.com/imrishuroy/lbvp-storefront/internal/catalog"
	"github.com/imrishuroy/lbvp-storefront/internal/money"
)

// Kind classifies a validation issue.
type Kind string

const (
	KindEmptyCart       Kind = "empty_cart"
	KindInvalidQuantity Kind = "invalid_quantity"
	KindHighQuantity    Kind = "high_quantity"
	KindInvalidPrice    Kind = "invalid_price"
	KindItemUnavailable Kind = "unavailable"
	KindSizeUnavailable Kind = "size_unavailable"
	KindPriceChanged    Kind = "price_changed"
	KindLowStock        Kind = "low_stock"
)

// HighQuantityThreshold is the per-line quantity above which a warning is raised.
const HighQuantityThreshold = 10

// Issue is one error or warning about a cart line.
type Issue struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	ItemID  string `json:"item_id,omitempty"`
	Size    string `json:"size,omitempty"`
}

// Report is the outcome of validating a cart. Subtotal is priced from the
// catalog and is only set when Valid.
type Report struct {
	Errors   []Issue     `json:"errors"`
	Warnings []Issue     `json:"warnings"`
	Valid    bool        `json:"valid"`
	Snapshot []cart.Line `json:"snapshot"`
	Subtotal int64       `json:"subtotal"`
}

// Catalog is the read side of the catalog store.
type Catalog interface {
	Get(ctx context.Context, id string) (*catalog.Item, error)
}

// Validator checks cart lines against the catalog.
type Validator struct {
	catalog Catalog
}

func NewValidator(c Catalog) *Validator {
	return &Validator{catalog: c}
}

// Validate never changes the cart. A catalog read failure is returned as an
// error instead of being folded into the report.
func (v *Validator) Validate(ctx context.Context, lines []cart.Line) (*Report, error) {
	r, _, err := v.run(ctx, lines)
	return r, err
}

// run validates lines and also returns the catalog items it read, keyed by id.
func (v *Validator) run(ctx context.Context, lines []cart.Line) (*Report, map[string]catalog.Item, error) {
	items := map[string]catalog.Item{}
	r := &Report{
		Errors:   []Issue{},
		Warnings: []Issue{},
		Snapshot: append([]cart.Line{}, lines...),
	}
	if len(lines) == 0 {
		r.Errors = append(r.Errors, Issue{Kind: KindEmptyCart, Message: "Your cart is empty. Add items before checkout."})
		return r, items, nil
	}

	var subtotal int64
	for _, l := range lines {
		if l.Quantity <= 0 {
			r.Errors = append(r.Errors, issue(KindInvalidQuantity, l, "Invalid quantity for %s", l.Name))
		}
		if l.Quantity > HighQuantityThreshold {
			r.Warnings = append(r.Warnings, issue(KindHighQuantity, l, "High quantity (%d) for %s. Please confirm.", l.Quantity, l.Name))
		}
		if l.Price <= 0 {
			r.Errors = append(r.Errors, issue(KindInvalidPrice, l, "Invalid price for %s", l.Name))
		}

		item, err := v.catalog.Get(ctx, l.ItemID)
		if err != nil {
			return nil, nil, apperr.External(err, "look up "+l.ItemID)
		}
		if item == nil {
			r.Errors = append(r.Errors, issue(KindItemUnavailable, l, "%s is no longer available", l.Name))
			continue
		}
		items[l.ItemID] = *item
		if !item.HasSize(l.Size) {
			r.Errors = append(r.Errors, issue(KindSizeUnavailable, l, "Size %s is not available for %s", l.Size, l.Name))
		}
		if l.Price > 0 && item.Price != l.Price {
			r.Warnings = append(r.Warnings, issue(KindPriceChanged, l, "The price of %s changed from %s to %s",
				l.Name, money.Format(l.Price), money.Format(item.Price)))
		}
		if l.Quantity > 0 && item.Stock < l.Quantity {
			r.Warnings = append(r.Warnings, issue(KindLowStock, l, "Only %d left of %s", max(item.Stock, 0), l.Name))
		}
		subtotal += int64(l.Quantity) * item.Price
	}

	r.Valid = len(r.Errors) == 0
	if r.Valid {
		r.Subtotal = subtotal
	}
	return r, items, nil
}

func issue(kind Kind, l cart.Line, format string, args ...interface{}) Issue {
	return Issue{Kind: kind, Message: fmt.Sprintf(format, args...), ItemID: l.ItemID, Size: l.Size}
}
