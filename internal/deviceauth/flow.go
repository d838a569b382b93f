package deviceauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/playkit-dev/playkit-auth/internal/logsanitize"
	"github.com/playkit-dev/playkit-auth/internal/pkce"
)

// ErrAlreadyStarted is returned (inside a Failed outcome) when Run is
// called a second time on the same flow.
var ErrAlreadyStarted = errors.New("device auth flow already started")

// Terminal outcome messages. The deadline-exhaustion text deliberately
// differs from the server-declared expired_token text so the two cases can
// be told apart in logs, even though both resolve to OutcomeExpired.
const (
	msgDenied          = "User denied authorization"
	msgSessionExpired  = "Session expired"
	msgDeadlineReached = "Authorization session expired"
)

// Options configures a flow. All collaborators are optional.
type Options struct {
	// Scope is the space-separated scope string requested from the
	// platform.
	Scope string

	// OpenURL opens the authorization URL in the user's default handler.
	// Invocation is fire-and-forget: a launch failure is logged but never
	// fails the flow. Nil disables browser launching.
	OpenURL func(url string) error

	// OnStatus receives informational progress messages, in order, before
	// the terminal outcome. Nil disables status notifications.
	OnStatus func(message string)
}

// Flow runs one device authorization attempt end to end: PKCE generation,
// session initiation, browser launch, and the adaptive polling loop.
//
// A flow is single-use. Run may be called once; a retry needs a fresh Flow
// so it gets a fresh PKCE pair and session.
type Flow struct {
	client   *Client
	scope    string
	openURL  func(string) error
	onStatus func(string)
	started  atomic.Bool
}

// NewFlow creates a flow that authorizes against the given client.
func NewFlow(client *Client, opts Options) *Flow {
	return &Flow{
		client:   client,
		scope:    opts.Scope,
		openURL:  opts.OpenURL,
		onStatus: opts.OnStatus,
	}
}

// Run executes the flow and blocks until a terminal outcome. Cancel the
// context to abort; cancellation resolves to OutcomeCancelled and is
// observed at loop boundaries, so its worst-case latency is one poll
// interval. An in-flight HTTP request is not torn down mid-handling.
func (f *Flow) Run(ctx context.Context) Outcome {
	if !f.started.CompareAndSwap(false, true) {
		return Outcome{
			Kind:    OutcomeFailed,
			Message: "flow already started",
			Err:     ErrAlreadyStarted,
		}
	}

	pair, err := pkce.Generate()
	if err != nil {
		return Outcome{
			Kind:    OutcomeFailed,
			Message: "secure random source unavailable",
			Err:     err,
		}
	}

	sess, err := f.client.Initiate(ctx, f.scope, pair.Challenge)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{Kind: OutcomeCancelled}
		}
		return Outcome{
			Kind:    OutcomeFailed,
			Message: "failed to initiate device authorization",
			Err:     err,
		}
	}

	slog.Info("device auth session initiated",
		"session_id", sess.SessionID,
		"poll_interval", sess.PollInterval.String(),
		"expires_at", sess.ExpiresAt,
	)

	f.notify("opening browser for authorization")
	if f.openURL != nil {
		if err := f.openURL(sess.AuthURL); err != nil {
			// The user can still open the URL manually; not a flow error.
			slog.Warn("failed to open browser",
				"error", err,
				"auth_url", logsanitize.Field(sess.AuthURL),
			)
		}
	}

	return f.poll(ctx, sess, pair.Verifier)
}

// poll drives the waiting phase: one status request per interval until a
// terminal condition. Pacing uses a rate limiter with burst 1, so the
// first poll is admitted immediately and each subsequent poll waits out
// the current interval. The limiter wait is context-aware; it never
// busy-spins and wakes early on cancellation.
func (f *Flow) poll(ctx context.Context, sess *Session, codeVerifier string) Outcome {
	limiter := rate.NewLimiter(rate.Every(sess.PollInterval), 1)

	for {
		if ctx.Err() != nil {
			return Outcome{Kind: OutcomeCancelled}
		}

		deadline := sess.EffectiveDeadline()
		if !time.Now().Before(deadline) {
			return Outcome{Kind: OutcomeExpired, Message: msgDeadlineReached}
		}

		// Wait for the next permitted poll. Bounding the wait by the
		// effective deadline means a wait that cannot complete in time
		// fails immediately instead of sleeping past the deadline.
		waitCtx, cancel := context.WithDeadline(ctx, deadline)
		err := limiter.Wait(waitCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return Outcome{Kind: OutcomeCancelled}
			}
			return Outcome{Kind: OutcomeExpired, Message: msgDeadlineReached}
		}

		status, err := f.client.Poll(ctx, sess.SessionID, codeVerifier)
		if err != nil {
			var protoErr *ProtocolError
			if errors.As(err, &protoErr) {
				switch protoErr.Code {
				case ErrorCodeSlowDown:
					sess.PollInterval = nextSlowDownInterval(sess.PollInterval)
					limiter.SetLimit(rate.Every(sess.PollInterval))
					f.notify(fmt.Sprintf("server requested slower polling, interval now %s", sess.PollInterval))
					continue
				case ErrorCodeAccessDenied:
					return Outcome{Kind: OutcomeDenied, Message: msgDenied}
				case ErrorCodeExpiredToken:
					return Outcome{Kind: OutcomeExpired, Message: msgSessionExpired}
				}
			}

			if ctx.Err() != nil {
				return Outcome{Kind: OutcomeCancelled}
			}

			if isTransientPollError(err) {
				slog.Debug("poll attempt failed, will retry",
					"session_id", sess.SessionID,
					"error", logsanitize.Field(err.Error()),
				)
			}
			continue
		}

		switch status.Status {
		case "authorized":
			slog.Info("device authorization granted", "session_id", sess.SessionID)
			return Outcome{Kind: OutcomeAuthorized, Result: status.Result}

		case "pending":
			f.notify("waiting for user authorization")
			if status.PollInterval > 0 {
				// The server-driven interval is adopted verbatim here;
				// the floor applies only at initiation time.
				sess.PollInterval = time.Duration(status.PollInterval) * time.Second
				limiter.SetLimit(rate.Every(sess.PollInterval))
			}

		default:
			// Unknown statuses are retried like transient failures.
			slog.Debug("unexpected poll status, will retry",
				"session_id", sess.SessionID,
				"status", logsanitize.Field(status.Status),
			)
		}
	}
}

// nextSlowDownInterval doubles the poll interval in response to a
// slow_down signal, capped at maxPollInterval.
func nextSlowDownInterval(current time.Duration) time.Duration {
	next := current * 2
	if next > maxPollInterval {
		next = maxPollInterval
	}
	return next
}

func (f *Flow) notify(message string) {
	if f.onStatus != nil {
		f.onStatus(message)
	}
}
