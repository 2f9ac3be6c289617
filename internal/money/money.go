// Package money converts between paise (the int64 minor unit every package
// stores) and the rupee strings shown to people and written in seed files.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Parse reads a rupee amount such as "1499", "1,499.50" or "₹99" into paise.
// More than two significant decimal places is an error.
func Parse(s string) (int64, error) {
	clean := strings.TrimSpace(s)
	clean = strings.TrimPrefix(clean, "₹")
	clean = strings.ReplaceAll(clean, ",", "")
	clean = strings.TrimSpace(clean)
	if clean == "" {
		return 0, fmt.Errorf("parse amount %q: empty", s)
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	p := d.Mul(hundred)
	if !p.IsInteger() {
		return 0, fmt.Errorf("parse amount %q: more than two decimal places", s)
	}
	return p.IntPart(), nil
}

// Decimal returns paise as a rupee decimal.
func Decimal(paise int64) decimal.Decimal {
	return decimal.New(paise, -2)
}

// Format renders paise as "₹1,49,999" or "₹1,499.50" with Indian digit
// grouping. Whole-rupee amounts omit the fraction.
func Format(paise int64) string {
	sign := ""
	if paise < 0 {
		sign = "-"
		paise = -paise
	}
	rupees, frac := paise/100, paise%100

	out := sign + "₹" + group(fmt.Sprintf("%d", rupees))
	if frac != 0 {
		out += fmt.Sprintf(".%02d", frac)
	}
	return out
}

// group applies lakh/crore grouping: the last three digits, then pairs.
func group(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}
	return strings.Join(parts, ",") + "," + tail
}
