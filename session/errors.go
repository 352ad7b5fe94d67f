package session

// Error message constants for session domain.
const (
	ErrMsgNotSignedIn  = "Sign in to continue"
	ErrMsgTokenMissing = "Authorization token is required"
	ErrMsgTokenInvalid = "Authorization token is invalid or expired"
	ErrMsgTokenIssuer  = "Authorization token has an unexpected issuer"
	ErrMsgTokenSubject = "Authorization token does not name a user"
	ErrMsgDepsMissing  = "Session needs a user store, a stock adjuster and a product snapshot"
)
