// Package script runs user scripts around a request. A script source may define
// onRequest(req) and onResponse(res); the bridge appends the call for the stage
// being run and delegates execution to a Runtime.
package script

import (
	"context"
	"fmt"

	"github.com/loykin/reqpipe/pkg/env"
	"github.com/loykin/reqpipe/pkg/request"
)

// Trailers appended to the user source for each stage.
const (
	RequestTrailer  = "\nif (typeof onRequest === \"function\") {onRequest(req);}"
	ResponseTrailer = "\nif (typeof onResponse === \"function\") {onResponse(res);}"
)

// Stages reported in errors.
const (
	StagePreRequest   = "pre-request"
	StagePostResponse = "post-response"
)

// Result is what a script run hands back. Environment replaces the caller's
// variable map wholesale.
type Result struct {
	Environment env.Vars
}

// Runtime executes a complete script (user source plus trailer). req and res are
// mutated in place; vars must not be modified, the runtime works on a copy.
type Runtime interface {
	RunRequestScript(ctx context.Context, source string, req *request.Prepared, vars env.Vars, collectionPath string) (*Result, error)
	RunResponseScript(ctx context.Context, source string, res *request.Response, vars env.Vars, collectionPath string) (*Result, error)
}

// Error is a script failure at a given stage.
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s script: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Bridge adapts a Runtime to the two pipeline stages.
type Bridge struct {
	Runtime Runtime
}

func NewBridge(rt Runtime) *Bridge {
	return &Bridge{Runtime: rt}
}

// RunPreRequest runs the request hook of source against req.
func (b *Bridge) RunPreRequest(ctx context.Context, source string, req *request.Prepared, vars env.Vars, collectionPath string) (*Result, error) {
	res, err := b.Runtime.RunRequestScript(ctx, source+RequestTrailer, req, vars, collectionPath)
	return finish(StagePreRequest, res, vars, err)
}

// RunPostResponse runs the response hook of source against res.
func (b *Bridge) RunPostResponse(ctx context.Context, source string, res *request.Response, vars env.Vars, collectionPath string) (*Result, error) {
	out, err := b.Runtime.RunResponseScript(ctx, source+ResponseTrailer, res, vars, collectionPath)
	return finish(StagePostResponse, out, vars, err)
}

func finish(stage string, res *Result, vars env.Vars, err error) (*Result, error) {
	if err != nil {
		return nil, &Error{Stage: stage, Err: err}
	}
	if res == nil || res.Environment == nil {
		return &Result{Environment: vars.Clone()}, nil
	}
	return res, nil
}
