package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates sign-in failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden indicates the caller lacks the required capability or
	// domain access. Guards resolve it locally; it never escapes a handler.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthenticated indicates no signed-in user on the request.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// UserSafeMessage maps known errors to messages that may be shown to end
// users. Anything unrecognized collapses to a generic message so internals
// never leak.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password"
	case errors.Is(err, ErrForbidden):
		return "You do not have permission to perform this action"
	case errors.Is(err, ErrUnauthenticated):
		return "Please sign in to continue"
	case errors.Is(err, ErrNotFound):
		return "The requested record was not found"
	default:
		return "Something went wrong, please try again"
	}
}
