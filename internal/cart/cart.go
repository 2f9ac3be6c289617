// Package cart keeps a shopper's cart lines and persists the full snapshot
// after every change.
package cart

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/imrishuroy/lbvp-storefront/internal/apperr"
	"github.com/imrishuroy/lbvp-storefront/internal/catalog"
	"github.com/imrishuroy/lbvp-storefront/internal/localstore"
)

// Line is one (item, size) entry. Name, Image and Price are captured when
// the line is first added and are for display only.
type Line struct {
	ItemID   string `json:"item_id"`
	Size     string `json:"size"`
	Quantity int    `json:"quantity"`
	Name     string `json:"name"`
	Image    string `json:"image,omitempty"`
	Price    int64  `json:"price"`
}

// Engine is a cart bound to one cart id.
type Engine struct {
	store localstore.Store
	id    string
	lines []Line
}

// Open loads the cart stored under cartID. A missing or unreadable snapshot
// yields an empty cart.
func Open(ctx context.Context, store localstore.Store, cartID string) (*Engine, error) {
	e := &Engine{store: store, id: cartID}
	raw, ok, err := store.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if !ok || len(raw) == 0 {
		return e, nil
	}
	var lines []Line
	if err := json.Unmarshal(raw, &lines); err != nil {
		return e, nil
	}
	for _, l := range lines {
		if l.ItemID == "" || l.Quantity <= 0 {
			continue
		}
		e.lines = append(e.lines, l)
	}
	return e, nil
}

func (e *Engine) ID() string { return e.id }

// AddLine adds quantity of item in size, merging with an existing line.
// An empty size means the item's first size.
func (e *Engine) AddLine(ctx context.Context, item catalog.Item, size string, quantity int) error {
	if quantity <= 0 {
		return apperr.New(apperr.CodeInvalidQuantity, "quantity must be positive")
	}
	if size == "" {
		size = item.DefaultSize()
	}

	prev := e.Lines()
	if i := e.find(item.ID, size); i >= 0 {
		e.lines[i].Quantity += quantity
	} else {
		e.lines = append(e.lines, Line{
			ItemID:   item.ID,
			Size:     size,
			Quantity: quantity,
			Name:     item.Name,
			Image:    item.Image,
			Price:    item.Price,
		})
	}
	return e.persist(ctx, prev)
}

// RemoveLine drops the (itemID, size) line. Absent lines are ignored.
func (e *Engine) RemoveLine(ctx context.Context, itemID, size string) error {
	i := e.find(itemID, size)
	if i < 0 {
		return nil
	}
	prev := e.Lines()
	e.lines = append(e.lines[:i:i], e.lines[i+1:]...)
	return e.persist(ctx, prev)
}

// SetQuantity replaces a line's quantity; zero or less removes the line.
func (e *Engine) SetQuantity(ctx context.Context, itemID, size string, quantity int) error {
	if quantity <= 0 {
		return e.RemoveLine(ctx, itemID, size)
	}
	i := e.find(itemID, size)
	if i < 0 {
		return nil
	}
	prev := e.Lines()
	e.lines[i].Quantity = quantity
	return e.persist(ctx, prev)
}

// Clear empties the cart.
func (e *Engine) Clear(ctx context.Context) error {
	prev := e.Lines()
	e.lines = nil
	return e.persist(ctx, prev)
}

// Subtotal is the sum of quantity times cached price, in paise.
func (e *Engine) Subtotal() int64 {
	var total int64
	for _, l := range e.lines {
		total += int64(l.Quantity) * l.Price
	}
	return total
}

// ItemCount is the sum of quantities.
func (e *Engine) ItemCount() int {
	n := 0
	for _, l := range e.lines {
		n += l.Quantity
	}
	return n
}

// Lines returns a copy of the lines in insertion order.
func (e *Engine) Lines() []Line {
	out := make([]Line, len(e.lines))
	copy(out, e.lines)
	return out
}

func (e *Engine) find(itemID, size string) int {
	for i, l := range e.lines {
		if l.ItemID == itemID && l.Size == size {
			return i
		}
	}
	return -1
}

// persist writes the snapshot, restoring prev when the write fails.
func (e *Engine) persist(ctx context.Context, prev []Line) error {
	lines := e.lines
	if lines == nil {
		lines = []Line{}
	}
	raw, err := json.Marshal(lines)
	if err == nil {
		err = e.store.Put(ctx, e.id, raw)
	}
	if err != nil {
		e.lines = prev
		return fmt.Errorf("save cart %s: %w", e.id, err)
	}
	return nil
}
