package catalog

import "time"

// Item is a sellable product. Prices are paise.
type Item struct {
	ID            string    `dynamodbav:"id" json:"id"`
	Name          string    `dynamodbav:"name" json:"name" validate:"required"`
	Category      string    `dynamodbav:"category" json:"category"`
	Description   string    `dynamodbav:"description,omitempty" json:"description,omitempty"`
	Price         int64     `dynamodbav:"price" json:"price" validate:"gt=0"`
	OriginalPrice *int64    `dynamodbav:"original_price,omitempty" json:"original_price,omitempty"`
	Stock         int       `dynamodbav:"stock" json:"stock" validate:"gte=0"`
	Sizes         []string  `dynamodbav:"sizes" json:"sizes" validate:"min=1,dive,required"`
	IsOnSale      bool      `dynamodbav:"is_on_sale" json:"is_on_sale"`
	IsNew         bool      `dynamodbav:"is_new" json:"is_new"`
	Image         string    `dynamodbav:"image,omitempty" json:"image,omitempty"`
	CreatedAt     time.Time `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt     time.Time `dynamodbav:"updated_at" json:"updated_at"`
}

// HasSize reports whether size is currently offered.
func (it Item) HasSize(size string) bool {
	for _, s := range it.Sizes {
		if s == size {
			return true
		}
	}
	return false
}

// DefaultSize is the size a cart line gets when none is chosen.
func (it Item) DefaultSize() string {
	if len(it.Sizes) == 0 {
		return ""
	}
	return it.Sizes[0]
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Search   string // case-insensitive substring of Name
	Category string
	OnSale   bool
	NewOnly  bool
	InStock  bool
}

func (f Filter) match(it Item) bool {
	if f.Search != "" && !containsFold(it.Name, f.Search) {
		return false
	}
	if f.Category != "" && !equalFold(it.Category, f.Category) {
		return false
	}
	if f.OnSale && !it.IsOnSale {
		return false
	}
	if f.NewOnly && !it.IsNew {
		return false
	}
	if f.InStock && it.Stock <= 0 {
		return false
	}
	return true
}
