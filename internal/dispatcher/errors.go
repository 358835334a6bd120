package dispatcher

import (
	"errors"
	"fmt"
)

// Kind classifies dispatcher failures. Every kind is local to one session.
type Kind string

const (
	// KindDecode means the received bytes were not a raster image.
	KindDecode Kind = "decode"
	// KindPrecondition means a command arrived before any image.
	KindPrecondition Kind = "precondition"
	// KindTransform means the transformation failed on the current image.
	KindTransform Kind = "transform"
	// KindStore means the session store could not be read or written.
	KindStore Kind = "store"
)

// ErrNoImage is wrapped by every KindPrecondition error.
var ErrNoImage = errors.New("no image present")

// Error is the structured failure returned by the dispatcher operations.
type Error struct {
	Kind    Kind
	Op      string
	Session string
	// Command is set for failures of OnCommand.
	Command string
	Err     error
}

func (e *Error) Error() string {
	if e.Command != "" {
		return fmt.Sprintf("[%s] %s session=%s command=%s: %v", e.Kind, e.Op, e.Session, e.Command, e.Err)
	}
	return fmt.Sprintf("[%s] %s session=%s: %v", e.Kind, e.Op, e.Session, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a dispatcher Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, or "" if err is not a dispatcher Error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
