package inventory

// Error message constants for inventory domain.
const (
	ErrMsgProductIDRequired = "Product ID is required"
	ErrMsgQuantityPositive  = "Quantity must be positive"
	ErrMsgInsufficientStock = "Insufficient stock for %s: available %d, requested %d"
	ErrMsgOutOfStock        = "%s is out of stock"
	ErrMsgTooManyConflicts  = "Stock for %s kept changing; gave up after %d attempts"
)
