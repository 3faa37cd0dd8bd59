package script

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/loykin/reqpipe/internal/common"
	"github.com/loykin/reqpipe/pkg/env"
	"github.com/loykin/reqpipe/pkg/request"
)

// ErrTimeout is the cause reported when a script exceeds its time budget.
var ErrTimeout = errors.New("script timed out")

// JSRuntime runs scripts in an embedded JavaScript engine, one fresh VM per run.
//
// Globals:
//
//	req             method, url, headers (object), data      (request stage)
//	res             status, statusText, headers, data         (response stage)
//	env             get(name), set(name, value), has(name), unset(name), all()
//	console         log, info, warn, error (written to the logger at debug level)
//	collectionPath  the collection directory
//
// Changes made to req and res are copied back into the Go values when the run
// completes.
type JSRuntime struct {
	// Timeout bounds a single run. Zero means only the context bounds it.
	Timeout time.Duration
	Logger  *common.Logger
}

// NewJSRuntime returns a runtime with the given time budget.
func NewJSRuntime(timeout time.Duration, logger *common.Logger) *JSRuntime {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &JSRuntime{Timeout: timeout, Logger: logger.WithComponent("script")}
}

func (j *JSRuntime) RunRequestScript(ctx context.Context, source string, req *request.Prepared, vars env.Vars, collectionPath string) (*Result, error) {
	obj := requestObject(req)
	out, err := j.run(ctx, source, "req", obj, vars, collectionPath)
	if err != nil {
		return nil, err
	}
	applyRequest(req, obj)
	return out, nil
}

func (j *JSRuntime) RunResponseScript(ctx context.Context, source string, res *request.Response, vars env.Vars, collectionPath string) (*Result, error) {
	obj := responseObject(res)
	out, err := j.run(ctx, source, "res", obj, vars, collectionPath)
	if err != nil {
		return nil, err
	}
	applyResponse(res, obj)
	return out, nil
}

func (j *JSRuntime) run(ctx context.Context, source, name string, obj map[string]any, vars env.Vars, collectionPath string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, context.Cause(ctx)
	}
	vm := goja.New()
	working := vars.Clone()

	if err := vm.Set(name, obj); err != nil {
		return nil, err
	}
	if err := vm.Set("env", j.envObject(vm, working)); err != nil {
		return nil, err
	}
	if err := vm.Set("console", j.consoleObject(vm)); err != nil {
		return nil, err
	}
	if err := vm.Set("collectionPath", collectionPath); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		var timeout <-chan time.Time
		if j.Timeout > 0 {
			t := time.NewTimer(j.Timeout)
			defer t.Stop()
			timeout = t.C
		}
		select {
		case <-ctx.Done():
			vm.Interrupt(context.Cause(ctx))
		case <-timeout:
			vm.Interrupt(ErrTimeout)
		case <-done:
		}
	}()

	if _, err := vm.RunScript("script.js", source); err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			if cause, ok := interrupted.Value().(error); ok {
				return nil, cause
			}
		}
		return nil, err
	}
	return &Result{Environment: working}, nil
}

func (j *JSRuntime) envObject(vm *goja.Runtime, vars env.Vars) *goja.Object {
	o := vm.NewObject()
	_ = o.Set("get", func(name string) goja.Value {
		if v, ok := vars[name]; ok {
			return vm.ToValue(v)
		}
		return goja.Undefined()
	})
	_ = o.Set("set", func(name string, value goja.Value) {
		if goja.IsUndefined(value) || goja.IsNull(value) {
			delete(vars, name)
			return
		}
		vars[name] = asString(value.Export())
	})
	_ = o.Set("has", func(name string) bool {
		_, ok := vars[name]
		return ok
	})
	_ = o.Set("unset", func(name string) {
		delete(vars, name)
	})
	_ = o.Set("all", func() map[string]any {
		out := make(map[string]any, len(vars))
		for k, v := range vars {
			out[k] = v
		}
		return out
	})
	return o
}

func (j *JSRuntime) consoleObject(vm *goja.Runtime) *goja.Object {
	o := vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error"} {
		level := level
		_ = o.Set(level, func(call goja.FunctionCall) goja.Value {
			parts := make([]string, 0, len(call.Arguments))
			for _, a := range call.Arguments {
				parts = append(parts, a.String())
			}
			j.Logger.Debug("console."+level, "message", strings.Join(parts, " "))
			return goja.Undefined()
		})
	}
	return o
}

func requestObject(p *request.Prepared) map[string]any {
	headers := make(map[string]any, len(p.Headers))
	for _, h := range p.Headers {
		headers[h.Key] = h.Value
	}
	return map[string]any{
		"method":  p.Method,
		"url":     p.URL,
		"headers": headers,
		"data":    scriptData(p.Data),
	}
}

func scriptData(d any) any {
	switch t := d.(type) {
	case *request.Multipart:
		return pairsObject(t.Fields)
	case *request.Form:
		return pairsObject(t.Fields)
	case request.JSONBody:
		return t.Value()
	case []byte:
		return string(t)
	default:
		return d
	}
}

func pairsObject(pairs []request.Pair) map[string]any {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		out[p.Key] = p.Value
	}
	return out
}

// applyRequest copies the script's view of the request back. Header and form
// order is kept for surviving keys; new keys are appended in sorted order. A JSON
// body the script left equal to its decoded value keeps its original text.
func applyRequest(p *request.Prepared, obj map[string]any) {
	p.Method = strings.ToUpper(asString(obj["method"]))
	p.URL = asString(obj["url"])
	if h, ok := obj["headers"].(map[string]any); ok {
		p.Headers = mergeHeaders(p.Headers, h)
	}

	data := obj["data"]
	fields, isMap := data.(map[string]any)
	switch orig := p.Data.(type) {
	case *request.Multipart:
		if isMap {
			orig.Fields = mergePairs(orig.Fields, fields)
			return
		}
	case *request.Form:
		if isMap {
			orig.Fields = mergePairs(orig.Fields, fields)
			return
		}
	case request.JSONBody:
		if reflect.DeepEqual(data, orig.Value()) {
			return
		}
	case []byte:
		if s, ok := data.(string); ok && s == string(orig) {
			return
		}
	}
	p.Data = data
}

// mergeHeaders applies the script's header object. Keys the script added are set
// case-insensitively, so writing "Content-Type" replaces an existing "content-type".
func mergeHeaders(orig request.Headers, h map[string]any) request.Headers {
	var out request.Headers
	seen := map[string]struct{}{}
	for _, p := range orig {
		v, ok := h[p.Key]
		if !ok {
			continue
		}
		seen[p.Key] = struct{}{}
		out.Set(p.Key, asString(v))
	}
	for _, k := range addedKeys(h, seen) {
		out.Set(k, asString(h[k]))
	}
	return out
}

func addedKeys(m map[string]any, seen map[string]struct{}) []string {
	var added []string
	for k := range m {
		if _, ok := seen[k]; !ok {
			added = append(added, k)
		}
	}
	sort.Strings(added)
	return added
}

func mergePairs(orig []request.Pair, m map[string]any) []request.Pair {
	out := make([]request.Pair, 0, len(m))
	seen := map[string]struct{}{}
	for _, p := range orig {
		v, ok := m[p.Key]
		if !ok {
			continue
		}
		if _, dup := seen[p.Key]; dup {
			continue
		}
		seen[p.Key] = struct{}{}
		out = append(out, request.Pair{Key: p.Key, Value: asString(v)})
	}
	for _, k := range addedKeys(m, seen) {
		out = append(out, request.Pair{Key: k, Value: asString(m[k])})
	}
	return out
}

func responseObject(r *request.Response) map[string]any {
	headers := make(map[string]any, len(r.Headers))
	for k, v := range r.Headers {
		headers[k] = v
	}
	return map[string]any{
		"status":       r.Status,
		"statusText":   r.StatusText,
		"headers":      headers,
		"data":         r.Data,
		"responseTime": r.Duration.Milliseconds(),
	}
}

func applyResponse(r *request.Response, obj map[string]any) {
	if s, ok := asInt(obj["status"]); ok {
		r.Status = s
	}
	r.StatusText = asString(obj["statusText"])
	if h, ok := obj["headers"].(map[string]any); ok {
		out := make(map[string]string, len(h))
		for k, v := range h {
			out[strings.ToLower(k)] = asString(v)
		}
		r.Headers = out
	}
	r.Data = obj["data"]
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	default:
		return 0, false
	}
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
