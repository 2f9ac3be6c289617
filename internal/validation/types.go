package validation

// CustomerForm is the shopper's delivery and payment details at checkout.
type CustomerForm struct {
	FullName      string `json:"full_name" validate:"min=2"`
	Email         string `json:"email" validate:"shop_email"`
	Phone         string `json:"phone" validate:"in_mobile"`
	Address       string `json:"address" validate:"min=10"`
	City          string `json:"city" validate:"min=2"`
	Pincode       string `json:"pincode" validate:"pincode"`
	PaymentMethod string `json:"payment_method" validate:"oneof=cod upi card"`
}

// Trimmed returns the form with surrounding whitespace removed from every field.
func (f CustomerForm) Trimmed() CustomerForm {
	return CustomerForm{
		FullName:      trim(f.FullName),
		Email:         trim(f.Email),
		Phone:         trim(f.Phone),
		Address:       trim(f.Address),
		City:          trim(f.City),
		Pincode:       trim(f.Pincode),
		PaymentMethod: trim(f.PaymentMethod),
	}
}

// FieldError is one failed form rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FormError lists every failed field of a form, in form order.
type FormError struct {
	Fields []FieldError `json:"fields"`
}

func (e *FormError) Error() string {
	if len(e.Fields) == 1 {
		return "invalid form: " + e.Fields[0].Message
	}
	return "invalid form: " + e.Fields[0].Message + " (and more)"
}

// Messages returns the failure messages in order.
func (e *FormError) Messages() []string {
	out := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		out = append(out, f.Message)
	}
	return out
}
