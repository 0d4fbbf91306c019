package adapter

import "errors"

var (
	// ErrServerUnavailable is returned for transport failures and
	// 5xx-equivalent responses. Always retryable.
	ErrServerUnavailable = errors.New("sync server unavailable")

	// ErrRequestTimeout is returned when an outbound request exceeded its
	// deadline. Always retryable.
	ErrRequestTimeout = errors.New("sync request timed out")

	// ErrBadSyncResponse is returned when the server response does not
	// mirror the request (wrong length or unparsable body).
	ErrBadSyncResponse = errors.New("malformed sync response")
)
