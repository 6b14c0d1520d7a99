package errors

import (
	"fmt"
	"strings"
)

// Code of a session error. Closed set.
type Code string

const (
	NoSession      Code = "NO_SESSION"
	SessionExpired Code = "SESSION_EXPIRED"
	NetworkError   Code = "NETWORK_ERROR"
	InvalidToken   Code = "INVALID_TOKEN"
	RefreshFailed  Code = "REFRESH_FAILED"
	Timeout        Code = "TIMEOUT"
	Unknown        Code = "UNKNOWN_ERROR"
)

// An internal Error details
type Error struct {
	// Code of the error condition
	Code Code
	// Message for humans
	Message string
	// Cause of this error, if known
	Cause error
}

var _ error = (*Error)(nil)

func (err *Error) Error() string {
	if err == nil {
		return ""
	}

	var (
		indent string
		format strings.Builder
	)
	defer format.Reset()

	if err.Code != "" {
		format.WriteString(string(err.Code))
		indent = ": "
	}

	if err.Message != "" {
		format.WriteString(indent)
		format.WriteString(err.Message)
		indent = "; "
	}

	if err.Cause != nil {
		format.WriteString(indent)
		format.WriteString(err.Cause.Error())
	}

	return format.String()
}

func (err *Error) Unwrap() error {
	if err == nil {
		return nil
	}
	return err.Cause
}

// Is reports [target] match by Code.
// Compatibility for [errors.Is] method.
func (err *Error) Is(target error) bool {
	if e, ok := target.(*Error); ok {
		return err != nil && err.Code == e.Code
	}
	return false
}

type Option func(err *Error)

// Error.Message Option
func Message(form string, args ...any) Option {
	return func(err *Error) {
		text := form
		if len(args) > 0 {
			if form == "" {
				text = fmt.Sprint(args...)
			} else {
				text = fmt.Sprintf(form, args...)
			}
		}
		err.Message = text
	}
}

// Error.Cause Option
func Cause(cause error) Option {
	return func(err *Error) {
		if cause != nil {
			err.Cause = cause
		}
	}
}

func New(code Code, opts ...Option) (err *Error) {
	err = &Error{Code: code}
	err.init(opts)
	return // err
}

func (err *Error) init(opts []Option) {
	for _, setup := range opts {
		setup(err)
	}
}

// NO_SESSION ; no authenticated session is present
func ErrNoSession(opts ...Option) *Error {
	err := New(NoSession,
		Message("auth: no active session"),
	)
	err.init(opts)
	return err
}

// SESSION_EXPIRED ; the session passed its absolute expiry
func ErrSessionExpired(opts ...Option) *Error {
	err := New(SessionExpired,
		Message("auth: session is expired"),
	)
	err.init(opts)
	return err
}

// NETWORK_ERROR ; transport-class failure, retryable with backoff
func ErrNetwork(opts ...Option) *Error {
	err := New(NetworkError,
		Message("auth: network failure"),
	)
	err.init(opts)
	return err
}

// INVALID_TOKEN ; token rejected by the identity provider
func ErrInvalidToken(opts ...Option) *Error {
	err := New(InvalidToken,
		Message("auth: token is invalid"),
	)
	err.init(opts)
	return err
}

// REFRESH_FAILED ; refresh-token exchange failed terminally
func ErrRefreshFailed(opts ...Option) *Error {
	err := New(RefreshFailed,
		Message("auth: session refresh failed"),
	)
	err.init(opts)
	return err
}

// TIMEOUT ; bounded-wait exceeded
func ErrTimeout(opts ...Option) *Error {
	err := New(Timeout,
		Message("auth: operation timed out"),
	)
	err.init(opts)
	return err
}

// UNKNOWN_ERROR
func ErrUnknown(opts ...Option) *Error {
	err := New(Unknown,
		Message("auth: unknown error"),
	)
	err.init(opts)
	return err
}
