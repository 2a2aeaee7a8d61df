package view

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotQueryable means the native resource exists but cannot answer
	// queries yet. It is transient and callers retry.
	ErrNotQueryable = errors.New("view not queryable")

	// ErrClosed is returned by every operation on a released view.
	ErrClosed = errors.New("view closed")
)

// Chromium net error codes the shell cares about.
const (
	CodeFailed               = -2
	CodeAborted              = -3
	CodeTimedOut             = -7
	CodeConnectionRefused    = -102
	CodeNameNotResolved      = -105
	CodeInternetDisconnected = -106
	CodeUnknown              = -1
)

var netErrorCodes = map[string]int{
	"ERR_FAILED":                 CodeFailed,
	"ERR_ABORTED":                CodeAborted,
	"ERR_TIMED_OUT":              CodeTimedOut,
	"ERR_CONNECTION_REFUSED":     CodeConnectionRefused,
	"ERR_NAME_NOT_RESOLVED":      CodeNameNotResolved,
	"ERR_INTERNET_DISCONNECTED":  CodeInternetDisconnected,
	"ERR_CONNECTION_RESET":       -101,
	"ERR_CONNECTION_CLOSED":      -100,
	"ERR_CERT_AUTHORITY_INVALID": -202,
	"ERR_SSL_PROTOCOL_ERROR":     -107,
}

// LoadError is a failed navigation reported by the native resource.
type LoadError struct {
	Code        int
	Description string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load failed: %s (%d)", e.Description, e.Code)
}

// Benign reports whether the failure is an abort or cancellation that should
// not be surfaced to the user.
func (e *LoadError) Benign() bool {
	return IsBenignCode(e.Code)
}

// IsBenignCode reports whether code belongs to the abort/cancellation class.
func IsBenignCode(code int) bool {
	return code == CodeAborted || code == CodeFailed
}

// ParseNetError extracts a Chromium net error from a message such as
// "page.goto: net::ERR_NAME_NOT_RESOLVED at https://...".
func ParseNetError(msg string) *LoadError {
	idx := strings.Index(msg, "net::")
	if idx < 0 {
		return &LoadError{Code: CodeUnknown, Description: msg}
	}

	name := msg[idx+len("net::"):]
	if end := strings.IndexAny(name, " \t\n"); end >= 0 {
		name = name[:end]
	}

	code, ok := netErrorCodes[name]
	if !ok {
		code = CodeUnknown
	}
	return &LoadError{Code: code, Description: name}
}
