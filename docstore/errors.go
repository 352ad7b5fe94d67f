package docstore

// Error message constants for the document store.
const (
	ErrMsgIDRequired      = "id is required"
	ErrMsgNegativeStock   = "stock must not be negative"
	ErrMsgProductNotFound = "product %s not found"
	ErrMsgUserNotFound    = "user %s not found"
	ErrMsgStaleProduct    = "product %s is at version %d, not %d"
	ErrMsgStaleUser       = "user %s is at version %d, not %d"
	ErrMsgBadIfMatch      = "If-Match must carry a record version"
	ErrMsgBadBody         = "request body is not valid JSON: %v"
	ErrMsgUnauthorized    = "missing or invalid bearer token"
	ErrMsgIDMismatch      = "body id %q does not match path id %q"
)
