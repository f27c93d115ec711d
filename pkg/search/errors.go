package search

import "errors"

// Common search errors.
var (
	ErrNilEntity         = errors.New("entity is nil")
	ErrUnsupportedKind   = errors.New("unsupported work kind")
	ErrUnsupportedEntity = errors.New("unsupported entity value")
)

// Error is returned by builders. Op is the work kind being converted and Msg
// names the entity, e.g. "document/42".
type Error struct {
	Op  string
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Op + ": " + e.Msg + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
