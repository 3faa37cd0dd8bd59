// Package orchestrator drives one request execution from definition to result:
// prepare, register a cancel handle, run the pre-request script, interpolate,
// announce, dispatch, run the post-response script and release the handle.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loykin/reqpipe/internal/cancel"
	"github.com/loykin/reqpipe/internal/common"
	"github.com/loykin/reqpipe/internal/script"
	"github.com/loykin/reqpipe/internal/store"
	"github.com/loykin/reqpipe/pkg/env"
	"github.com/loykin/reqpipe/pkg/events"
	"github.com/loykin/reqpipe/pkg/request"
)

// Transport sends a prepared request. When the server answered with an error
// status it returns the complete response together with a non-nil error; a nil
// response means no response was received.
type Transport interface {
	Do(ctx context.Context, p *request.Prepared) (*request.Response, error)
}

// Scripts runs the two script stages.
type Scripts interface {
	RunPreRequest(ctx context.Context, source string, req *request.Prepared, vars env.Vars, collectionPath string) (*script.Result, error)
	RunPostResponse(ctx context.Context, source string, res *request.Response, vars env.Vars, collectionPath string) (*script.Result, error)
}

// Recorder persists execution history.
type Recorder interface {
	Record(ctx context.Context, e store.Execution) (int64, error)
}

// ExecuteOptions tune a single execution.
type ExecuteOptions struct {
	// Token overrides the generated cancellation token. It must not be in use.
	Token string
	// OnToken is called with the token once it is registered, before any I/O.
	OnToken func(token string)
}

// Orchestrator executes request items. It is safe for concurrent use; the
// registry is the only state shared between executions.
type Orchestrator struct {
	registry  *cancel.Registry
	transport Transport
	scripts   Scripts
	notifier  events.Notifier
	recorder  Recorder
	logger    *common.Logger
	masker    *common.Masker
	newToken  func() string
}

type Option func(*Orchestrator)

func WithScripts(s Scripts) Option {
	return func(o *Orchestrator) { o.scripts = s }
}

func WithNotifier(n events.Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithRecorder enables history recording.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

func WithLogger(l *common.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMasker sets the masker applied to logged and recorded urls.
func WithMasker(m *common.Masker) Option {
	return func(o *Orchestrator) { o.masker = m }
}

// WithTokenGenerator replaces the UUID token generator.
func WithTokenGenerator(f func() string) Option {
	return func(o *Orchestrator) { o.newToken = f }
}

// New builds an orchestrator. Without WithScripts, scripts run in the JavaScript
// runtime with no time limit beyond the execution context.
func New(registry *cancel.Registry, transport Transport, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:  registry,
		transport: transport,
		notifier:  events.Nop{},
		logger:    common.GetLogger(),
		masker:    common.NewMasker(),
		newToken:  cancel.NewToken,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.WithComponent("orchestrator")
	if o.scripts == nil {
		o.scripts = script.NewBridge(script.NewJSRuntime(0, o.logger))
	}
	return o
}

// Registry returns the cancellation registry shared by all executions.
func (o *Orchestrator) Registry() *cancel.Registry { return o.registry }

type execution struct {
	token        string
	collectionID string
	item         request.Item
	started      time.Time
	req          *request.Prepared
	logger       *common.Logger
}

// Execute runs item against environment. A response is always returned as a
// result, whatever its status; an error is returned only when no response could
// be obtained or a script failed, and it is always a *FatalError.
func (o *Orchestrator) Execute(ctx context.Context, item request.Item, collectionID, collectionPath string, environment env.Environment, opts ...ExecuteOptions) (*request.Result, error) {
	var opt ExecuteOptions
	if len(opts) > 0 {
		opt = opts[0]
	}
	ex := &execution{
		collectionID: collectionID,
		item:         item,
		started:      time.Now(),
		req:          request.Prepare(item),
	}

	ex.token = opt.Token
	if ex.token == "" {
		ex.token = o.newToken()
	}
	ex.logger = o.logger.WithToken(ex.token).WithItem(collectionID, item.UID)

	ctx, cancelCause := context.WithCancelCause(ctx)
	defer cancelCause(nil)
	if err := o.registry.Register(ex.token, cancel.HandleFunc(func() { cancelCause(ErrCancelled) })); err != nil {
		return nil, o.fail(ctx, ex, KindToken, fmt.Errorf("register token %q: %w", ex.token, err))
	}
	defer o.registry.Remove(ex.token)
	if opt.OnToken != nil {
		opt.OnToken(ex.token)
	}

	vars := environment.Vars()
	req := ex.req
	if req.Script != "" {
		res, err := o.scripts.RunPreRequest(ctx, req.Script, req, vars, collectionPath)
		if err != nil {
			return nil, o.fail(ctx, ex, KindScript, err)
		}
		vars = res.Environment
		o.notifier.EnvironmentUpdated(events.EnvironmentUpdated{Environment: vars.Clone(), CollectionID: collectionID})
	}

	req.Interpolate(vars)
	if missing := req.Unresolved(vars); len(missing) > 0 {
		ex.logger.Warn("unresolved placeholders left in request", "names", missing)
	}

	o.notifier.RequestSent(events.RequestSent{
		Request:      req.Snapshot(),
		CollectionID: collectionID,
		ItemID:       item.UID,
		TokenID:      ex.token,
	})
	ex.logger.Debug("request sent", "method", req.Method, "url", req.URL, "headers", req.Headers.Map())

	resp, err := o.transport.Do(ctx, req)
	if err != nil {
		if resp == nil {
			return nil, o.fail(ctx, ex, KindTransport, err)
		}
		ex.logger.Info("request completed with error status", "status", resp.Status, "duration", resp.Duration)
		o.record(ctx, ex, store.OutcomeStatusError, resp, nil)
		return resp.Result(), nil
	}

	if req.Script != "" {
		res, err := o.scripts.RunPostResponse(ctx, req.Script, resp, vars, collectionPath)
		if err != nil {
			return nil, o.fail(ctx, ex, KindScript, err)
		}
		o.notifier.EnvironmentUpdated(events.EnvironmentUpdated{Environment: res.Environment.Clone(), CollectionID: collectionID})
	}

	ex.logger.Info("request completed", "status", resp.Status, "duration", resp.Duration)
	o.record(ctx, ex, store.OutcomeCompleted, resp, nil)
	return resp.Result(), nil
}

// Cancel aborts the execution registered under token.
func (o *Orchestrator) Cancel(token string) error {
	return o.registry.Cancel(token)
}

// fail classifies err, logs and records it. Failures that happen after the token
// was cancelled are reported as cancellations whatever stage they surfaced in.
func (o *Orchestrator) fail(ctx context.Context, ex *execution, kind Kind, err error) error {
	outcome := map[Kind]string{
		KindTransport: store.OutcomeTransport,
		KindScript:    store.OutcomeScript,
		KindToken:     store.OutcomeRejected,
	}[kind]
	if kind != KindToken && errors.Is(context.Cause(ctx), ErrCancelled) {
		kind, outcome = KindCancelled, store.OutcomeCancelled
		if !errors.Is(err, ErrCancelled) {
			err = fmt.Errorf("%w: %w", ErrCancelled, err)
		}
	}
	fe := &FatalError{Kind: kind, Err: err}
	ex.logger.Error("request failed", "kind", string(kind), "error", err)
	o.record(ctx, ex, outcome, nil, fe)
	return fe
}

func (o *Orchestrator) record(ctx context.Context, ex *execution, outcome string, resp *request.Response, err error) {
	if o.recorder == nil {
		return
	}
	e := store.Execution{
		Token:        ex.token,
		CollectionID: ex.collectionID,
		ItemUID:      ex.item.UID,
		Method:       ex.req.Method,
		URL:          o.masker.MaskURL(ex.req.URL),
		Outcome:      outcome,
		DurationMS:   time.Since(ex.started).Milliseconds(),
		RanAt:        ex.started.UTC(),
	}
	if resp != nil {
		e.Status = resp.Status
		e.StatusText = resp.StatusText
	}
	if err != nil {
		e.Error = o.masker.MaskString(err.Error())
	}
	if _, rerr := o.recorder.Record(context.WithoutCancel(ctx), e); rerr != nil {
		ex.logger.Warn("failed to record execution", "error", rerr)
	}
}
