package catalog

import (
	"fmt"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/lbvp-storefront/internal/apperr"
)

var itemValidator = newItemValidator()

func newItemValidator() *validatorv10.Validate {
	v := validatorv10.New()
	v.RegisterStructValidation(itemStructValidation, Item{})
	return v
}

// itemStructValidation checks the sale price pair.
func itemStructValidation(sl validatorv10.StructLevel) {
	it := sl.Current().Interface().(Item)
	if it.OriginalPrice == nil {
		return
	}
	if !it.IsOnSale {
		sl.ReportError(it.OriginalPrice, "original_price", "OriginalPrice", "on_sale_only", "")
	}
	if *it.OriginalPrice < it.Price {
		sl.ReportError(it.OriginalPrice, "original_price", "OriginalPrice", "gte_price", "")
	}
}

// Validate returns an InvalidItem error listing every failed rule, or nil.
func Validate(it Item) error {
	err := itemValidator.Struct(it)
	if err == nil {
		return nil
	}
	ve, ok := err.(validatorv10.ValidationErrors)
	if !ok {
		return apperr.New(apperr.CodeInvalidItem, err.Error())
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, ruleMessage(fe))
	}
	return apperr.New(apperr.CodeInvalidItem, "invalid item: "+strings.Join(msgs, "; "))
}

func ruleMessage(fe validatorv10.FieldError) string {
	switch fe.Tag() {
	case "required":
		if fe.Field() == "Name" {
			return "name is required"
		}
		return fmt.Sprintf("%s must not be empty", strings.ToLower(fe.Field()))
	case "gt":
		return "price must be greater than zero"
	case "gte":
		return "stock cannot be negative"
	case "min":
		return "at least one size is required"
	case "on_sale_only":
		return "original price is only allowed on sale items"
	case "gte_price":
		return "original price must not be below price"
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

// ParseSizes splits a comma separated size list, trimming blanks and
// dropping repeats while keeping first-seen order.
func ParseSizes(raw string) []string {
	return NormalizeSizes(strings.Split(raw, ","))
}

// NormalizeSizes trims, drops empties and removes duplicates keeping the
// first occurrence.
func NormalizeSizes(sizes []string) []string {
	seen := make(map[string]bool, len(sizes))
	out := make([]string, 0, len(sizes))
	for _, s := range sizes {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func equalFold(a, b string) bool { return strings.EqualFold(a, b) }
