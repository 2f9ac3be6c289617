package validation

import (
	"reflect"
	"regexp"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
)

var (
	emailRe   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	mobileRe  = regexp.MustCompile(`^[6-9]\d{9}$`)
	pincodeRe = regexp.MustCompile(`^\d{6}$`)
)

// messages are shown to the shopper, keyed by json field name.
var messages = map[string]string{
	"full_name":      "Please enter your full name",
	"email":          "Please enter a valid email address",
	"phone":          "Please enter a valid 10-digit phone number",
	"address":        "Please enter your complete address",
	"city":           "Please enter your city",
	"pincode":        "Please enter a valid 6-digit pincode",
	"payment_method": "Please select a payment method",
}

// New returns a validator with the storefront's custom tags registered.
// Field names in errors are the json names.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("shop_email", regexTag(emailRe))
	_ = v.RegisterValidation("in_mobile", regexTag(mobileRe))
	_ = v.RegisterValidation("pincode", regexTag(pincodeRe))

	return v
}

func regexTag(re *regexp.Regexp) validatorv10.Func {
	return func(fl validatorv10.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

var defaultValidator = New()

// ValidateCustomer trims the form and checks every field, returning the
// trimmed form and a *FormError naming all failures.
func ValidateCustomer(form CustomerForm) (CustomerForm, error) {
	form = form.Trimmed()
	err := defaultValidator.Struct(form)
	if err == nil {
		return form, nil
	}
	ve, ok := err.(validatorv10.ValidationErrors)
	if !ok {
		return form, err
	}
	fe := &FormError{}
	for _, e := range ve {
		msg, ok := messages[e.Field()]
		if !ok {
			msg = e.Error()
		}
		fe.Fields = append(fe.Fields, FieldError{Field: e.Field(), Message: msg})
	}
	return form, fe
}

func trim(s string) string { return strings.TrimSpace(s) }
