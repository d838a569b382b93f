package deviceauth

import (
	"time"

	"golang.org/x/oauth2"
)

// OutcomeKind identifies the terminal state of a flow attempt.
type OutcomeKind int

const (
	// OutcomeAuthorized means the user approved the request and a token
	// was issued.
	OutcomeAuthorized OutcomeKind = iota

	// OutcomeDenied means the user rejected the request.
	OutcomeDenied

	// OutcomeExpired means the session expired, either server-declared
	// (expired_token) or by exhausting the effective deadline.
	OutcomeExpired

	// OutcomeCancelled means the caller cancelled the flow.
	OutcomeCancelled

	// OutcomeFailed means a fatal setup error occurred: secure RNG
	// unavailable, initiation transport failure, or a malformed
	// initiation response.
	OutcomeFailed
)

// String returns a human-readable name for the outcome kind.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAuthorized:
		return "authorized"
	case OutcomeDenied:
		return "denied"
	case OutcomeExpired:
		return "expired"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the terminal result of one flow attempt. Exactly one outcome
// is produced per Run; the flow object is not reusable afterwards.
type Outcome struct {
	Kind OutcomeKind

	// Result carries the token payload; set only for OutcomeAuthorized.
	Result *Result

	// Message is the human-readable failure text; set for Denied,
	// Expired, and Failed outcomes.
	Message string

	// Err is the underlying cause; set only for OutcomeFailed.
	Err error
}

// Result is the token payload of an authorized flow. It is returned once
// and owned by the caller thereafter.
type Result struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
}

// Token converts the result into an oauth2 token so it can be used with
// any oauth2-aware HTTP client. A zero ExpiresIn yields a token without
// an expiry, which the oauth2 package treats as never expiring.
func (r *Result) Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
	}
	if r.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return tok
}

// TokenSource returns a static token source for the result. The device
// flow issues no refresh machinery client-side, so the source never
// refreshes.
func (r *Result) TokenSource() oauth2.TokenSource {
	return oauth2.StaticTokenSource(r.Token())
}
