package session

import (
	"errors"
	"fmt"
)

// ErrBusy is returned when the named session lock is held by another
// invocation. Callers retry later; they are never queued.
var ErrBusy = errors.New("session client busy, retry later")

// ErrChallengeTimeout means no verification code arrived within the bounded
// wait. Manual intervention is required; the manager never retries this.
var ErrChallengeTimeout = errors.New("timed out waiting for challenge code, manual action required")

// ErrAuthFailed means the provider rejected the configured credentials.
var ErrAuthFailed = errors.New("authentication rejected by provider")

// ErrSessionNotFound means no persisted session blob exists for the account.
var ErrSessionNotFound = errors.New("no persisted session for account")

// ChallengeRequiredError signals that login was interrupted by an identity
// verification step. Method names the delivery channel the provider offered.
type ChallengeRequiredError struct {
	Method string
}

func (e *ChallengeRequiredError) Error() string {
	return fmt.Sprintf("challenge required via %s", e.Method)
}

// ChallengeSubmissionError means the provider rejected a submitted code. The
// same code is never resubmitted.
type ChallengeSubmissionError struct {
	Reason string
}

func (e *ChallengeSubmissionError) Error() string {
	return fmt.Sprintf("challenge code rejected: %s", e.Reason)
}
