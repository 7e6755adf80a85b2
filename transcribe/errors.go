package transcribe

import "fmt"

// SessionError is a transcription session failure with retry guidance.
// Connection-level failures are retryable; protocol and backend errors
// are not.
type SessionError struct {
	Op        string
	Err       error
	Retryable bool
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("transcribe: %s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

func newSessionError(op string, err error, retryable bool) *SessionError {
	return &SessionError{Op: op, Err: err, Retryable: retryable}
}
