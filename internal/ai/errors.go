package ai

import (
	"context"
	"errors"
	"fmt"
)

// Failure discriminators recorded on failed analyses.
const (
	KindTimeout       = "timeout"
	KindParseError    = "parse_error"
	KindEmptyResponse = "empty_response"
	KindException     = "exception"
)

// Error is a classified gateway failure.
type Error struct {
	Kind string
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

var (
	errEmpty  = errors.New("model returned an empty response")
	errNoJSON = errors.New("no JSON object found in response")
)

// Kind classifies err into one of the failure discriminators.
func Kind(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindException
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: Kind(err), Op: op, Err: err}
}
