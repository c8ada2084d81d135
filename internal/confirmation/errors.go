package confirmation

import "errors"

var (
	// ErrUnauthorized is returned when the backend rejects the internal secret (HTTP 401/403)
	ErrUnauthorized = errors.New("internal secret rejected")

	// ErrRejected is returned for any other 4xx answer
	ErrRejected = errors.New("confirmation rejected")

	// ErrServiceUnavailable is returned when the backend is unreachable (HTTP 5xx, timeout)
	ErrServiceUnavailable = errors.New("confirmation service unavailable")
)
