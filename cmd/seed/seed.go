package main

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/imrishuroy/lbvp-storefront/internal/catalog"
	"github.com/imrishuroy/lbvp-storefront/internal/money"
)

// seedFile is the YAML layout of a catalog seed. Prices are rupee strings
// such as "₹1,299" or "499.50".
type seedFile struct {
	Products []seedProduct `yaml:"products"`
	Admins   []seedAdmin   `yaml:"admins"`
}

type seedProduct struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	Category      string   `yaml:"category"`
	Description   string   `yaml:"description"`
	Price         string   `yaml:"price"`
	OriginalPrice string   `yaml:"original_price"`
	Stock         int      `yaml:"stock"`
	Sizes         []string `yaml:"sizes"`
	OnSale        bool     `yaml:"on_sale"`
	New           bool     `yaml:"new"`
	Image         string   `yaml:"image"`
}

type seedAdmin struct {
	ID    string `yaml:"id"`
	Email string `yaml:"email"`
}

func loadSeed(r io.Reader) (*seedFile, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	return &f, nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// item converts a seed entry. Entries without an id get one derived from the
// name so that re-running the seed updates rather than duplicates.
func (p seedProduct) item() (catalog.Item, error) {
	price, err := money.Parse(p.Price)
	if err != nil {
		return catalog.Item{}, fmt.Errorf("%s: price: %w", p.Name, err)
	}
	it := catalog.Item{
		ID:          p.ID,
		Name:        p.Name,
		Category:    p.Category,
		Description: p.Description,
		Price:       price,
		Stock:       p.Stock,
		Sizes:       p.Sizes,
		IsOnSale:    p.OnSale,
		IsNew:       p.New,
		Image:       p.Image,
	}
	if p.OriginalPrice != "" {
		op, err := money.Parse(p.OriginalPrice)
		if err != nil {
			return catalog.Item{}, fmt.Errorf("%s: original price: %w", p.Name, err)
		}
		it.OriginalPrice = &op
	}
	if it.ID == "" {
		it.ID = "product-" + strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(p.Name), "-"), "-")
	}
	return it, nil
}
