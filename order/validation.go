package order

import (
	"strings"

	"github.com/benjaminabbitt/gainlabz/storefront"
)

// MissingFields lists the required address fields that are blank, in the
// order they appear on the form.
func (a Address) MissingFields() []string {
	fields := []struct {
		name  string
		value string
	}{
		{"first name", a.FirstName},
		{"last name", a.LastName},
		{"email", a.Email},
		{"street", a.Street},
		{"city", a.City},
		{"zip", a.Zip},
		{"country", a.Country},
		{"phone", a.Phone},
	}
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// Validate checks the checkout input without touching the network.
func (c Checkout) Validate() error {
	method := PaymentMethod(strings.ToLower(strings.TrimSpace(string(c.PaymentMethod))))
	if method == "" {
		return storefront.NewError(storefront.ReasonMissingField, ErrMsgPaymentMethodReq)
	}
	if !method.Valid() {
		return storefront.NewErrorf(storefront.ReasonInvalidArgument, ErrMsgPaymentMethodBad, c.PaymentMethod)
	}
	if missing := c.Address.MissingFields(); len(missing) > 0 {
		return storefront.NewErrorf(storefront.ReasonMissingField, ErrMsgAddressFieldReq, missing[0])
	}
	if method == PaymentUPI && strings.TrimSpace(c.UPIID) == "" {
		return storefront.NewError(storefront.ReasonMissingField, ErrMsgUPIIDRequired)
	}
	return nil
}
