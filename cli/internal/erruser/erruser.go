// Package erruser provides errors whose Error() returns only a user-facing
// message; the cause is available via Unwrap() for Details or logs, and an
// optional recovery hint can be attached for the CLI to print.
package erruser

import "errors"

// Err holds a user-facing message, an optional cause, and an optional hint.
// Error() returns only Msg so the primary line never contains command output
// or exit codes.
type Err struct {
	Msg  string
	Hint string
	Err  error
}

// Error returns the user-facing message only.
func (e *Err) Error() string {
	if e == nil {
		return ""
	}
	return e.Msg
}

// Unwrap returns the underlying error for Details or logging.
func (e *Err) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New returns an error with the given user-facing message. If err is non-nil,
// it is wrapped and available via Unwrap() so callers can print "Details: %v".
// If err is nil, returns a simple error with just msg (no Unwrap).
func New(msg string, err error) error {
	if err == nil {
		return errors.New(msg)
	}
	return &Err{Msg: msg, Err: err}
}

// WithHint returns an error carrying msg, cause and a recovery hint
// (e.g. "Start the server with: ollama serve"). cause may be nil.
func WithHint(msg, hint string, cause error) error {
	return &Err{Msg: msg, Hint: hint, Err: cause}
}

// HintOf returns the first non-empty hint found in err's chain, or "".
func HintOf(err error) string {
	for err != nil {
		var e *Err
		if !errors.As(err, &e) {
			return ""
		}
		if e.Hint != "" {
			return e.Hint
		}
		err = e.Err
	}
	return ""
}
