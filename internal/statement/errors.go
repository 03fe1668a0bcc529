package statement

import "errors"

// Kind classifies processing failures so callers can show a specific message.
type Kind string

const (
	KindInvalidInput Kind = "invalid_input"
	KindExtraction   Kind = "extraction"
	KindNoRecords    Kind = "no_records"
)

// Error is a fatal processing failure of a known kind.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, if it is or wraps an *Error.
func KindOf(err error) (Kind, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return "", false
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	got, ok := KindOf(err)
	return ok && got == k
}

func invalidInput(msg string) error {
	return &Error{Kind: KindInvalidInput, Msg: msg}
}
