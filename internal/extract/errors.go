package extract

import (
	"errors"
	"fmt"
)

var (
	// ErrUnparsableAmount is returned when a money field holds no digits
	ErrUnparsableAmount = errors.New("unparsable amount")
	// ErrUnparsableDate is returned for date text that is neither an absolute
	// date nor a known relative token
	ErrUnparsableDate = errors.New("unparsable date")
	// ErrMissingField means a balance element is absent from the page. It
	// counts as an unparsable amount.
	ErrMissingField = fmt.Errorf("%w: element not found", ErrUnparsableAmount)
)

// IsUnparsableAmount reports whether err came from an unreadable amount,
// including a missing balance element.
func IsUnparsableAmount(err error) bool {
	return errors.Is(err, ErrUnparsableAmount)
}

// IsUnparsableDate reports whether err came from an unreadable date.
func IsUnparsableDate(err error) bool {
	return errors.Is(err, ErrUnparsableDate)
}

// FieldError locates a failed field. Row is -1 for balances.
type FieldError struct {
	Row   int
	Field string
	Raw   string
	Err   error
}

func (e *FieldError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("%s %q: %v", e.Field, e.Raw, e.Err)
	}
	return fmt.Sprintf("row %d: %s %q: %v", e.Row, e.Field, e.Raw, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
