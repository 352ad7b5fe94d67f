package order

// Error message constants for order domain.
const (
	ErrMsgNotSignedIn         = "Sign in to continue"
	ErrMsgAdminOnly           = "Only administrators can do this"
	ErrMsgCartEmpty           = "Cart is empty"
	ErrMsgPaymentMethodReq    = "Payment method is required"
	ErrMsgPaymentMethodBad    = "Unsupported payment method: %s"
	ErrMsgUPIIDRequired       = "UPI ID is required for UPI payments"
	ErrMsgAddressFieldReq     = "Delivery address is missing %s"
	ErrMsgNothingToOrder      = "None of the cart items are available any more"
	ErrMsgOrderIDRequired     = "Order ID is required"
	ErrMsgOrderNotFound       = "Order not found: %s"
	ErrMsgCannotCancel        = "Cannot cancel an order that is %s"
	ErrMsgUnknownStatus       = "Unknown order status: %s"
	ErrMsgUserIDRequired      = "User ID is required"
	ErrMsgOrderWriteConflict  = "Orders for %s kept changing; gave up after %d attempts"
	ErrMsgStockNotReserved    = "Could not reserve stock"
	ErrMsgOrderNotPersisted   = "Could not save the order"
	ErrMsgCancelNotPersisted  = "Could not save the cancellation"
	ErrMsgStockNotRestored    = "Could not restore stock"
)
