package main

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/imrishuroy/lbvp-storefront/internal/admin"
	"github.com/imrishuroy/lbvp-storefront/internal/catalog"
	"github.com/imrishuroy/lbvp-storefront/internal/dynamotest"
)

const sample = `
products:
  - name: Classic Oxford Shirt
    category: shirts
    price: "₹1,299"
    original_price: "₹1,799"
    stock: 25
    sizes: [S, M, L]
    on_sale: true
  - id: product-chinos
    name: Slim Fit Chinos
    category: pants
    price: "1199.50"
    stock: 3
    sizes: ["32"]
admins:
  - id: owner
    email: Owner@LBVP.in
`

func TestLoadSeed(t *testing.T) {
	seed, err := loadSeed(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, seed.Products, 2)

	it, err := seed.Products[0].item()
	require.NoError(t, err)
	assert.Equal(t, "product-classic-oxford-shirt", it.ID)
	assert.Equal(t, int64(129900), it.Price)
	require.NotNil(t, it.OriginalPrice)
	assert.Equal(t, int64(179900), *it.OriginalPrice)

	it, err = seed.Products[1].item()
	require.NoError(t, err)
	assert.Equal(t, "product-chinos", it.ID)
	assert.Equal(t, int64(119950), it.Price)
}

func TestLoadSeed_Rejects(t *testing.T) {
	_, err := loadSeed(strings.NewReader("products:\n  - name: X\n    colour: red\n"))
	assert.Error(t, err)

	seed, err := loadSeed(strings.NewReader("products:\n  - name: X\n    price: twelve\n"))
	require.NoError(t, err)
	_, err = seed.Products[0].item()
	assert.Error(t, err)
}

func TestRun_IsRepeatable(t *testing.T) {
	fake := dynamotest.New().
		CreateTable("products", "id").
		CreateTable("admins", "principal_id")
	products := catalog.NewStore(fake, "products")
	admins := admin.NewStore(fake, "admins")

	seed, err := loadSeed(strings.NewReader(sample))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		require.NoError(t, run(context.Background(), seed, products, admins, zap.NewNop()))
	}
	assert.Equal(t, 2, fake.Len("products"))
	assert.Equal(t, 1, fake.Len("admins"))

	ok, err := admins.IsAdmin(context.Background(), "owner")
	require.NoError(t, err)
	assert.True(t, ok)
}
