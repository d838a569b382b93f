package deviceauth

import (
	"errors"
)

// isTransientPollError reports whether a poll failure should be silently
// retried until the deadline. Network blips, unparseable bodies, and
// unrecognized error codes are all retried alike; only the terminal
// protocol codes and the slow_down backpressure signal are excluded.
//
// No distinction is made between a genuine network failure and a malformed
// server response. Device-flow clients favor availability during the
// multi-minute user-approval wait over fast-failing on ambiguous errors.
func isTransientPollError(err error) bool {
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		return true
	}

	switch protoErr.Code {
	case ErrorCodeSlowDown, ErrorCodeAccessDenied, ErrorCodeExpiredToken:
		return false
	}
	return true
}
