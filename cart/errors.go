package cart

import "fmt"

// Error message constants for cart domain.
const (
	ErrMsgNotSignedIn       = "Sign in to add items to your cart"
	ErrMsgProductIDRequired = "Product ID is required"
	ErrMsgQuantityPositive  = "Quantity must be positive"
	ErrMsgProductNotFound   = "Product not found: %s"
	ErrMsgOutOfStock        = "%s is out of stock"
	ErrMsgOnlyLeft          = "Only %d left in stock for %s"
	ErrMsgUnknownVariant    = "%q is not a variant of %s"
)

// ShortfallError carries the numbers behind an InsufficientStock or
// OutOfStock rejection so callers can show the remaining count.
type ShortfallError struct {
	ProductID string
	Variant   string
	InCart    int
	Requested int
	Stock     int
}

// Available is how many more units could still be added.
func (e *ShortfallError) Available() int {
	if n := e.Stock - e.InCart; n > 0 {
		return n
	}
	return 0
}

func (e *ShortfallError) Error() string {
	return fmt.Sprintf("requested %d with %d in cart, stock %d", e.Requested, e.InCart, e.Stock)
}

func formatMsg(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}
