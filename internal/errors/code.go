package errors

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// map[http]taxonomy code
var codeMap = map[int]Code{
	// [400]x
	http.StatusUnauthorized:    InvalidToken,
	http.StatusForbidden:       InvalidToken,
	http.StatusRequestTimeout:  Timeout,
	http.StatusTooManyRequests: NetworkError,
	// [500]x
	http.StatusInternalServerError: NetworkError,
	http.StatusBadGateway:          NetworkError,
	http.StatusServiceUnavailable:  NetworkError,
	http.StatusGatewayTimeout:      Timeout,
}

// FromStatusCode converts an HTTP status into its canonical taxonomy code.
func FromStatusCode(status int) Code {
	if code, ok := codeMap[status]; ok {
		return code
	}
	if status >= 500 {
		return NetworkError
	}
	return Unknown
}

// ClassOf returns the taxonomy code of [err], or Unknown.
func ClassOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return classify(err)
}

// FromError converts a standard Go error into a taxonomy *Error.
// Well-known transport failures become NETWORK_ERROR or TIMEOUT;
// everything else is UNKNOWN_ERROR with the cause attached.
func FromError(src error) *Error {
	if src == nil {
		return nil
	}
	var e *Error
	if stderrors.As(src, &e) {
		return e
	}
	switch classify(src) {
	case Timeout:
		return ErrTimeout(Cause(src))
	case NetworkError:
		return ErrNetwork(Cause(src))
	case InvalidToken:
		return ErrInvalidToken(Cause(src))
	}
	return ErrUnknown(Cause(src))
}

func classify(err error) Code {
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return Timeout
	case stderrors.Is(err, context.Canceled):
		return NetworkError // caller went away ; transport-class
	case stderrors.Is(err, io.ErrUnexpectedEOF),
		stderrors.Is(err, io.EOF),
		stderrors.Is(err, syscall.ECONNREFUSED),
		stderrors.Is(err, syscall.ECONNRESET),
		stderrors.Is(err, syscall.EPIPE):
		return NetworkError
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		if netErr.Timeout() {
			return Timeout
		}
		return NetworkError
	}
	// provider error messages indicating token expiry force a refresh path
	text := strings.ToLower(err.Error())
	if strings.Contains(text, "token") &&
		(strings.Contains(text, "expired") || strings.Contains(text, "invalid")) {
		return InvalidToken
	}
	return Unknown
}

// Retryable reports whether the caller may back off and retry.
// Only network-class failures are ; TIMEOUT resolves to a neutral fallback
// instead and token errors force a refresh attempt.
func Retryable(err error) bool {
	return ClassOf(err) == NetworkError
}
