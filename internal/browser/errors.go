package browser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fedesuarez16/opting-sub000/internal/cloud"
)

// ErrorKind groups browser failures by how the host UI should present them.
type ErrorKind int

const (
	// ErrorNone means the last operation succeeded.
	ErrorNone ErrorKind = iota
	// ErrorUnauthenticated means the drive session is missing or expired; show a login link.
	ErrorUnauthenticated
	// ErrorNotFound means no drive folder could be resolved for the scope.
	ErrorNotFound
	// ErrorFetch is any other listing failure.
	ErrorFetch
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorNone:
		return "none"
	case ErrorUnauthenticated:
		return "unauthenticated"
	case ErrorNotFound:
		return "not_found"
	default:
		return "fetch"
	}
}

// NotFoundError reports that no folder matched Name. RootFolders lists the drive's
// root folder names seen during resolution, for diagnostics. Err is a listing
// failure absorbed on the way, if any.
type NotFoundError struct {
	Name        string
	RootFolders []string
	Err         error
}

func (e *NotFoundError) Error() string {
	if len(e.RootFolders) == 0 {
		return fmt.Sprintf("no drive folder found for %q", e.Name)
	}
	return fmt.Sprintf("no drive folder found for %q (root folders: %s)", e.Name, strings.Join(e.RootFolders, ", "))
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// KindOf classifies err.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrorNone
	}
	if cloud.IsUnauthenticated(err) {
		return ErrorUnauthenticated
	}
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return ErrorNotFound
	}
	return ErrorFetch
}
