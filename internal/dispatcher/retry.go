package dispatcher

import "net/http"

type decision int

const (
	decisionDelivered decision = iota
	decisionRetry
	decisionReject
	decisionGone
)

// classify maps one attempt to the next step. Network errors, 5xx and 429
// are transient; 410 disables the partner; any other status stops.
func classify(statusCode int, err error) decision {
	if err != nil || statusCode == 0 {
		return decisionRetry
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		return decisionDelivered
	case statusCode == http.StatusGone:
		return decisionGone
	case statusCode == http.StatusTooManyRequests:
		return decisionRetry
	case statusCode >= 500:
		return decisionRetry
	default:
		return decisionReject
	}
}

func (d decision) attemptLabel() string {
	switch d {
	case decisionDelivered:
		return "success"
	case decisionRetry:
		return "transient_error"
	case decisionGone:
		return "gone"
	default:
		return "rejected"
	}
}
