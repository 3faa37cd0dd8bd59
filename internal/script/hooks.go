package script

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/loykin/reqpipe/pkg/env"
	"github.com/loykin/reqpipe/pkg/request"
)

// ErrUnknownScript is returned by HookRuntime for a source with no registered hooks.
var ErrUnknownScript = errors.New("no hooks registered for script")

// Hooks are Go callbacks standing in for a script. Both are optional. vars is a
// private copy that becomes the resulting environment.
type Hooks struct {
	OnRequest  func(ctx context.Context, req *request.Prepared, vars env.Vars) error
	OnResponse func(ctx context.Context, res *request.Response, vars env.Vars) error
}

// HookRuntime runs Go hooks registered under a script source. It lets embedders
// script requests without JavaScript.
type HookRuntime struct {
	mu    sync.RWMutex
	hooks map[string]Hooks
}

func NewHookRuntime() *HookRuntime {
	return &HookRuntime{hooks: map[string]Hooks{}}
}

// Register binds hooks to a script source.
func (h *HookRuntime) Register(source string, hooks Hooks) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks[source] = hooks
}

func (h *HookRuntime) lookup(source, trailer string) (Hooks, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	hk, ok := h.hooks[strings.TrimSuffix(source, trailer)]
	if !ok {
		return Hooks{}, ErrUnknownScript
	}
	return hk, nil
}

func (h *HookRuntime) RunRequestScript(ctx context.Context, source string, req *request.Prepared, vars env.Vars, _ string) (*Result, error) {
	hk, err := h.lookup(source, RequestTrailer)
	if err != nil {
		return nil, err
	}
	out := vars.Clone()
	if hk.OnRequest != nil {
		if err := hk.OnRequest(ctx, req, out); err != nil {
			return nil, err
		}
	}
	return &Result{Environment: out}, nil
}

func (h *HookRuntime) RunResponseScript(ctx context.Context, source string, res *request.Response, vars env.Vars, _ string) (*Result, error) {
	hk, err := h.lookup(source, ResponseTrailer)
	if err != nil {
		return nil, err
	}
	out := vars.Clone()
	if hk.OnResponse != nil {
		if err := hk.OnResponse(ctx, res, out); err != nil {
			return nil, err
		}
	}
	return &Result{Environment: out}, nil
}
