package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated indicates a missing or unverifiable bearer token.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden indicates a verified identity without the required grant.
	ErrForbidden = errors.New("not permitted")
	// ErrInvalidOrExpiredCode indicates a failed two-factor redemption.
	ErrInvalidOrExpiredCode = errors.New("code invalid")
	// ErrUnknownAction indicates a caller declared an action outside the closed set.
	ErrUnknownAction = errors.New("unknown action")
	// ErrConfiguration indicates the service cannot start with the given settings.
	ErrConfiguration = errors.New("configuration error")
	// ErrStoreUnavailable indicates a backing store call failed; retryable.
	ErrStoreUnavailable = errors.New("store unavailable")
)

var publicErrors = []error{ErrUnauthenticated, ErrForbidden, ErrInvalidOrExpiredCode, ErrInvalidCredentials, ErrNotFound}

// UserSafeMessage returns the message suitable for end users. Internal
// failures collapse into a generic text.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	for _, sentinel := range publicErrors {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return "service temporarily unavailable"
	}
	return "internal error"
}
