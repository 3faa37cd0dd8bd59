package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/loykin/reqpipe/internal/common"
	"github.com/loykin/reqpipe/pkg/orchestrator"
)

// Process exit codes. Scripts driving `reqpipe send` can tell why it failed.
const (
	exitFailure   = 1
	exitStatus    = 2
	exitTransport = 3
	exitScript    = 4
	exitCancelled = 130
)

// statusError is returned by `send --fail` for a response with an error status.
type statusError struct {
	Status     int
	StatusText string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("request returned status %d %s", e.Status, e.StatusText)
}

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return exitStatus
	}
	switch orchestrator.KindOf(err) {
	case orchestrator.KindTransport:
		return exitTransport
	case orchestrator.KindScript:
		return exitScript
	case orchestrator.KindCancelled:
		return exitCancelled
	}
	return exitFailure
}

// ExitHandler terminates the process after a failed command; tests swap it out.
type ExitHandler interface {
	Exit(code int)
	Fail(err error, msg string)
}

type processExit struct{}

func (processExit) Exit(code int) {
	os.Exit(code)
}

// Fail logs err with its failure kind and exits with exitCode(err).
func (p processExit) Fail(err error, msg string) {
	code := exitCode(err)
	keyvals := []any{"error", err, "exit_code", code}
	if kind := orchestrator.KindOf(err); kind != "" {
		keyvals = append(keyvals, "kind", string(kind))
	}
	common.GetLogger().WithComponent("main").Error(msg, keyvals...)
	p.Exit(code)
}

var exitHandler ExitHandler = processExit{}
