package checkout

const (
	// FreeShippingThreshold is ₹999 in paise.
	FreeShippingThreshold int64 = 99900
	// ShippingFee is ₹99 in paise.
	ShippingFee int64 = 9900
)

// Quote is the order summary for a subtotal.
type Quote struct {
	Subtotal int64 `json:"subtotal"`
	Shipping int64 `json:"shipping"`
	Total    int64 `json:"total"`
}

// QuoteFor prices shipping: free at or above the threshold.
func QuoteFor(subtotal int64) Quote {
	shipping := ShippingFee
	if subtotal >= FreeShippingThreshold {
		shipping = 0
	}
	return Quote{Subtotal: subtotal, Shipping: shipping, Total: subtotal + shipping}
}
