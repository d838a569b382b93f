// Package deviceauth implements the PlayKit device authorization grant:
// session initiation with a PKCE challenge, adaptive status polling, and a
// typed terminal outcome.
package deviceauth

import (
	"time"
)

// Session represents one device authorization attempt registered with the
// platform. It is created by Client.Initiate and owned by a single Flow;
// only the polling loop mutates it (the poll interval may grow).
type Session struct {
	// SessionID is the opaque server-issued identifier for this attempt.
	SessionID string

	// AuthURL is the URL the end user must open to approve the request.
	AuthURL string

	// PollInterval is the current delay between status polls.
	// Clamped to minPollInterval at initiation time; afterwards the server
	// may adjust it through pending responses and slow_down signals.
	PollInterval time.Duration

	// ExpiresAt is the server-declared expiry of the session.
	ExpiresAt time.Time

	// SDKTimeoutAt is the fixed client-side give-up time,
	// set to initiation time + sdkTimeout.
	SDKTimeoutAt time.Time
}

// EffectiveDeadline returns the wall-clock time after which polling must
// stop: the earlier of the server expiry and the client-side timeout.
// Taking the minimum protects against a misconfigured or hostile server
// declaring an unbounded expiry.
func (s *Session) EffectiveDeadline() time.Time {
	if s.SDKTimeoutAt.Before(s.ExpiresAt) {
		return s.SDKTimeoutAt
	}
	return s.ExpiresAt
}
