package domain

import "errors"

// Sentinel errors for domain operations
var (
	// ErrItemNotFound indicates the requested media item does not exist
	ErrItemNotFound = errors.New("media item not found")

	// ErrServerOffline indicates the API server is unreachable
	ErrServerOffline = errors.New("api server is unreachable")

	// ErrAuthFailed indicates authentication failed
	ErrAuthFailed = errors.New("authentication token is invalid")

	// ErrNotAuthenticated indicates an operation needs a signed-in customer
	ErrNotAuthenticated = errors.New("no authenticated customer")
)
