package usecase

import "fmt"

type ErrorCode string

const (
	ErrorInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrorMissingCredential ErrorCode = "MISSING_CREDENTIAL"
	ErrorMalformedRequest  ErrorCode = "MALFORMED_REQUEST"
	ErrorUpstream          ErrorCode = "UPSTREAM_ERROR"
	ErrorMalformedResponse ErrorCode = "MALFORMED_RESPONSE"
	ErrorNoCandidate       ErrorCode = "NO_CANDIDATE"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// NewMalformedRequestError classifies an inbound body that could not be
// decoded. The gateway reports it through the same fallback path as upstream
// failures.
func NewMalformedRequestError(err error) *Error {
	return newError(ErrorMalformedRequest, "request_decode_error", err)
}
