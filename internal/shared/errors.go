package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrReauthRequired   = fmt.Errorf("authorization rejected, re-authorization required")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Service errors
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Remote calendar errors
	ErrAPIRequest       = fmt.Errorf("API request failed")
	ErrRateLimited      = fmt.Errorf("rate limited by calendar provider")
	ErrSyncTokenExpired = fmt.Errorf("continuation token expired")
	ErrEventNotFound    = fmt.Errorf("event not found")
	ErrNoSyncToken      = fmt.Errorf("provider returned no continuation token")

	// Engine errors
	ErrSyncDisabled     = fmt.Errorf("sync is disabled")
	ErrEventClaimed     = fmt.Errorf("remote event already claimed by another task")
	ErrTaskNotFound     = fmt.Errorf("task not found")
	ErrProjectNotFound  = fmt.Errorf("project not found")
	ErrStateNotFound    = fmt.Errorf("sync state not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
