package orchestrator

import (
	"errors"
	"fmt"
)

// ErrCancelled is the cause attached to executions cancelled through their token.
var ErrCancelled = errors.New("request cancelled")

// Kind classifies fatal execution errors.
type Kind string

const (
	KindTransport Kind = "transport"
	KindScript    Kind = "script"
	KindCancelled Kind = "cancelled"
	KindToken     Kind = "token"
)

// FatalError is an execution failure that produced no response. Responses with
// error statuses are not fatal: they are returned as results.
type FatalError struct {
	Kind Kind
	Err  error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// KindOf returns the kind of a *FatalError in err's chain, or "".
func KindOf(err error) Kind {
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
