package api

// Error message constants for the storefront API.
const (
	ErrMsgVerifierRequired = "token verifier is required"
	ErrMsgDepsRequired     = "users, stock and snapshot dependencies are required"
	ErrMsgNoSession        = "No active session; sign in first"
	ErrMsgBadBody          = "Malformed request body: %v"
	ErrMsgRoleChanged      = "Your role changed since you signed in; sign in again"
)
