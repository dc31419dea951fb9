// Package errs holds the sentinel error kinds referenced throughout the
// bot. Components wrap these with fmt.Errorf("...: %w", errs.ErrX) at their
// boundary and callers branch on them with errors.Is.
package errs

import "errors"

var (
	// ErrAuthFailure is a signature-verification rejection on a per-action
	// receipt. doSessionSigned invalidates the session and retries once
	// before surfacing this.
	ErrAuthFailure = errors.New("auth failure: signature rejected")

	// ErrSessionAuthFailure is a signature-verification rejection during
	// session creation itself: the identity key was rejected outright, not
	// just a stale session. This is fatal — the supervisor exits the
	// process rather than retrying.
	ErrSessionAuthFailure = errors.New("auth failure: session creation rejected")

	// ErrSessionExpired is signaled by the venue when the session used to
	// sign an action is no longer live.
	ErrSessionExpired = errors.New("session expired")

	// ErrOrderNotFound on cancel means the order already filled; callers
	// swallow this and clean up the tracker.
	ErrOrderNotFound = errors.New("order not found")

	// ErrPostOnlyWouldMatch means a post-only order would have crossed the
	// book immediately; callers swallow this and re-quote next tick.
	ErrPostOnlyWouldMatch = errors.New("post-only order would match")

	// ErrTransport covers timeouts and network failures.
	ErrTransport = errors.New("transport error")

	// ErrFeedUnavailable means the indicator engine could not produce a
	// value this tick (insufficient or missing candle data).
	ErrFeedUnavailable = errors.New("indicator feed unavailable")

	// ErrConfigurationInvalid is detected at startup and is fatal.
	ErrConfigurationInvalid = errors.New("configuration invalid")
)
