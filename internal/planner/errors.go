package planner

import "errors"

var (
	// ErrUpstream wraps failures of the completion service call.
	ErrUpstream = errors.New("upstream completion failed")
	// ErrUpstreamTimeout is returned when the completion call exceeds its deadline.
	ErrUpstreamTimeout = errors.New("upstream completion timed out")
	// ErrMalformedInput is returned when there is no usable text to parse.
	ErrMalformedInput = errors.New("malformed meal plan input")
)

// ErrorKind returns a short label for logging the class of a planner error.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUpstreamTimeout):
		return "upstream_timeout"
	case errors.Is(err, ErrMalformedInput):
		return "malformed_input"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	default:
		return "internal"
	}
}
