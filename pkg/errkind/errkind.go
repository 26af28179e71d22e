// Package errkind attaches an operation name and a sentinel kind to errors so
// callers can branch with errors.Is on the kind while keeping the cause.
package errkind

import (
	"errors"
	"strings"
)

// Error is an operation failure classified by a sentinel kind.
type Error struct {
	Op   string // operation that failed, e.g. "course.load"
	Kind error  // sentinel kind, e.g. model.ErrSchema
	Err  error  // underlying cause; may be nil
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		if e.Kind != nil {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// New returns an error of the given kind with no further cause.
func New(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// Wrap classifies err under kind. A nil err yields nil.
func Wrap(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// Op wraps err with an operation name only, keeping any kind it already has.
func Op(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// KindOf returns the first kind found in err's chain among candidates, or nil.
func KindOf(err error, candidates ...error) error {
	for _, k := range candidates {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
