package deviceauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Protocol timing constants. These values are part of the platform contract
// and must not drift.
const (
	// defaultPollInterval is assumed when the initiation response omits
	// poll_interval.
	defaultPollInterval = 5 * time.Second

	// minPollInterval is the client-side floor applied to the
	// server-declared interval at initiation time.
	minPollInterval = 8 * time.Second

	// maxPollInterval caps the interval growth driven by slow_down
	// responses.
	maxPollInterval = 30 * time.Second

	// sdkTimeout is the fixed client-side deadline for the whole flow,
	// measured from session initiation.
	sdkTimeout = 300 * time.Second

	// defaultExpiresIn is assumed when the initiation response omits
	// expires_in.
	defaultExpiresIn = 600 * time.Second
)

// defaultRequestTimeout bounds a single HTTP request. It is deliberately
// shorter than the poll interval floor so a hung request cannot stack up
// behind the next poll.
const defaultRequestTimeout = 15 * time.Second

// Error codes returned by the poll endpoint.
const (
	ErrorCodeSlowDown     = "slow_down"
	ErrorCodeAccessDenied = "access_denied"
	ErrorCodeExpiredToken = "expired_token"
)

// ProtocolError is an error body returned by the device-auth endpoints.
type ProtocolError struct {
	// Code is the machine-readable error code (e.g. "slow_down").
	Code string

	// Description is the optional human-readable error_description.
	Description string
}

func (e *ProtocolError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("device auth: %s", e.Code)
	}
	return fmt.Sprintf("device auth: %s - %s", e.Code, e.Description)
}

// IsSlowDown reports whether the server asked the client to poll less
// aggressively. This is a backpressure signal, not a failure.
func (e *ProtocolError) IsSlowDown() bool {
	return e.Code == ErrorCodeSlowDown
}

// IsAccessDenied reports whether the user rejected the authorization request.
func (e *ProtocolError) IsAccessDenied() bool {
	return e.Code == ErrorCodeAccessDenied
}

// IsExpired reports whether the server invalidated the session.
func (e *ProtocolError) IsExpired() bool {
	return e.Code == ErrorCodeExpiredToken
}

// PollStatus is the parsed body of a successful poll response.
type PollStatus struct {
	// Status is "pending" or "authorized".
	Status string

	// PollInterval is the server-updated interval in seconds,
	// 0 when the response did not carry one.
	PollInterval int

	// Result holds the token payload when Status is "authorized".
	Result *Result
}

// Wire formats for the two device-auth endpoints.
type initiateRequest struct {
	CodeChallenge       string `json:"code_challenge"`
	CodeChallengeMethod string `json:"code_challenge_method"`
	Scope               string `json:"scope"`
}

type initiateResponse struct {
	SessionID    string `json:"session_id"`
	AuthURL      string `json:"auth_url"`
	PollInterval int    `json:"poll_interval"`
	ExpiresIn    int    `json:"expires_in"`
}

type pollResponse struct {
	Status       string `json:"status"`
	PollInterval int    `json:"poll_interval"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
}

type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// Client talks to the platform's device-auth endpoints.
// It is safe for use by multiple flows; it holds no per-session state.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a device-auth client for the given platform base URL.
// If httpClient is nil, a client with a request timeout of
// defaultRequestTimeout is used.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Initiate registers a new device authorization session with the platform.
// Any transport failure, non-200 status, or malformed body is terminal for
// the flow attempt; initiation is never retried.
func (c *Client) Initiate(ctx context.Context, scope, codeChallenge string) (*Session, error) {
	body, err := json.Marshal(initiateRequest{
		CodeChallenge:       codeChallenge,
		CodeChallengeMethod: "S256",
		Scope:               scope,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode initiation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/device-auth/initiate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create initiation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("initiation request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read initiation response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if protoErr := parseErrorBody(respBody); protoErr != nil {
			return nil, fmt.Errorf("initiation rejected: %w", protoErr)
		}
		return nil, fmt.Errorf("initiation failed with status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed initiateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse initiation response: %w", err)
	}
	if parsed.SessionID == "" {
		return nil, fmt.Errorf("initiation response missing session_id")
	}
	if parsed.AuthURL == "" {
		return nil, fmt.Errorf("initiation response missing auth_url")
	}

	interval := defaultPollInterval
	if parsed.PollInterval > 0 {
		interval = time.Duration(parsed.PollInterval) * time.Second
	}
	if interval < minPollInterval {
		interval = minPollInterval
	}

	expiresIn := defaultExpiresIn
	if parsed.ExpiresIn > 0 {
		expiresIn = time.Duration(parsed.ExpiresIn) * time.Second
	}

	now := time.Now()
	return &Session{
		SessionID:    parsed.SessionID,
		AuthURL:      parsed.AuthURL,
		PollInterval: interval,
		ExpiresAt:    now.Add(expiresIn),
		SDKTimeoutAt: now.Add(sdkTimeout),
	}, nil
}

// Poll issues one status request for a session. The PKCE verifier is
// disclosed here, not at initiation, so the server can bind the challenge
// to its holder.
//
// Recognized error bodies come back as *ProtocolError; everything else
// (network failures, unparseable bodies, unexpected statuses) comes back as
// a plain error that the flow treats as transient.
func (c *Client) Poll(ctx context.Context, sessionID, codeVerifier string) (*PollStatus, error) {
	query := url.Values{}
	query.Set("session_id", sessionID)
	query.Set("code_verifier", codeVerifier)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/device-auth/poll?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create poll request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read poll response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if protoErr := parseErrorBody(respBody); protoErr != nil {
			return nil, protoErr
		}
		return nil, fmt.Errorf("poll failed with status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed pollResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse poll response: %w", err)
	}

	status := &PollStatus{
		Status:       parsed.Status,
		PollInterval: parsed.PollInterval,
	}

	if parsed.Status == "authorized" {
		status.Result = &Result{
			AccessToken:  parsed.AccessToken,
			RefreshToken: parsed.RefreshToken,
			TokenType:    parsed.TokenType,
			ExpiresIn:    parsed.ExpiresIn,
			Scope:        parsed.Scope,
		}
	}

	return status, nil
}

// parseErrorBody attempts to decode a device-auth error body.
// Returns nil if the body does not carry an error code.
func parseErrorBody(body []byte) *ProtocolError {
	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Error == "" {
		return nil
	}
	return &ProtocolError{
		Code:        parsed.Error,
		Description: parsed.Description,
	}
}
