package engine

import "fmt"

// RangeError reports a syntactically valid but out-of-bounds request
// parameter. It is never retried; the message names the valid bounds.
type RangeError struct {
	Message string
}

func (e *RangeError) Error() string { return e.Message }

func rangeErrorf(format string, args ...interface{}) *RangeError {
	return &RangeError{Message: fmt.Sprintf(format, args...)}
}

// TypeError reports a request parameter of the wrong shape, e.g. a
// non-numeric day count.
type TypeError struct {
	Message string
}

func (e *TypeError) Error() string { return e.Message }

// NewTypeError builds the caller-facing message for a malformed
// parameter.
func NewTypeError(param string) *TypeError {
	return &TypeError{Message: fmt.Sprintf("Wrong format for '%s' parameter! This is not a number.", param)}
}
