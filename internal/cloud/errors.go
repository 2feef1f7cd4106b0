package cloud

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnauthenticated indicates the drive session is missing or expired.
// It is never retried; the user has to sign in to the drive again.
var ErrUnauthenticated = errors.New("drive session not authenticated")

// FetchError is any other listing failure, including malformed responses.
type FetchError struct {
	Action     string
	StatusCode int // 0 when no HTTP response was received
	Message    string
	Err        error
}

func (e *FetchError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Action)
	if e.StatusCode != 0 {
		fmt.Fprintf(&sb, " (status %d)", e.StatusCode)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	return sb.String()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError wraps err as a FetchError for action.
func NewFetchError(action string, statusCode int, err error) *FetchError {
	msg := "request failed"
	if err != nil {
		msg = err.Error()
	}
	return &FetchError{Action: action, StatusCode: statusCode, Message: msg, Err: err}
}

// unauthenticatedMarkers are body error strings the drive API uses for a missing session
var unauthenticatedMarkers = []string{
	"not authenticated",
	"no tokens found",
}

// IsUnauthenticatedMessage reports whether an API error string denotes a missing session.
func IsUnauthenticatedMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range unauthenticatedMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// IsUnauthenticated reports whether err denotes a missing or expired drive session.
func IsUnauthenticated(err error) bool {
	return err != nil && errors.Is(err, ErrUnauthenticated)
}

// AsFetchError extracts a *FetchError from err.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
