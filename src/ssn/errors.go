package ssn

import "fmt"

// AuthError means no valid token could be obtained. It blocks any submission
// or poll action for the cycle; callers decide whether to retry.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ssn authentication failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("ssn authentication failed: %s", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// TransportError wraps a network or timeout failure. The filing state is left
// untouched so the action stays safely retryable.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ssn transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteError is a non-success response from the regulator, carrying the raw
// body for diagnostics.
type RemoteError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("ssn rejected %s with status %d: %s", e.Op, e.StatusCode, e.Body)
}
