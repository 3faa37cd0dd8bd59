// Package reqpipe executes API-client request items: it prepares a request,
// runs the item's scripts, interpolates environment variables, sends it and
// keeps every in-flight request cancellable by token.
package reqpipe

import (
	"context"
	"time"

	"github.com/loykin/reqpipe/internal/cancel"
	"github.com/loykin/reqpipe/internal/common"
	"github.com/loykin/reqpipe/internal/httpc"
	"github.com/loykin/reqpipe/internal/script"
	"github.com/loykin/reqpipe/pkg/env"
	"github.com/loykin/reqpipe/pkg/events"
	"github.com/loykin/reqpipe/pkg/orchestrator"
	"github.com/loykin/reqpipe/pkg/request"
)

// Re-export commonly used types for public API

type Item = request.Item
type Definition = request.Definition
type Field = request.Field
type Result = request.Result
type Environment = env.Environment
type Variable = env.Variable
type Notifier = events.Notifier
type FatalError = orchestrator.FatalError
type ExecuteOptions = orchestrator.ExecuteOptions
type ClientConfig = httpc.Config

var (
	// ErrNotFound is returned by CancelRequest for unknown or finished tokens.
	ErrNotFound = cancel.ErrNotFound
	// ErrCancelled is wrapped by errors of executions cancelled through their token.
	ErrCancelled = orchestrator.ErrCancelled
)

// Options configure a Service. The zero value sends requests with default TLS
// settings, runs scripts without a time limit and records no history.
type Options struct {
	Client        ClientConfig
	ScriptTimeout time.Duration
	Notifier      Notifier
	// Store enables execution history when set. The Service does not close it.
	Store  *Store
	Logger *Logger
}

// Service owns the cancellation registry and the orchestrator for the lifetime
// of a client process.
type Service struct {
	registry *cancel.Registry
	orch     *orchestrator.Orchestrator
	store    *Store
}

func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = common.GetLogger()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = events.Nop{}
	}
	registry := cancel.NewRegistry()
	oopts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithNotifier(notifier),
		orchestrator.WithScripts(script.NewBridge(script.NewJSRuntime(opts.ScriptTimeout, logger))),
	}
	if opts.Store != nil {
		oopts = append(oopts, orchestrator.WithRecorder(opts.Store))
	}
	return &Service{
		registry: registry,
		orch:     orchestrator.New(registry, httpc.NewClient(opts.Client, logger), oopts...),
		store:    opts.Store,
	}
}

// ExecuteRequest runs item against environment. Responses with any status are
// returned as a Result; the error, always a *FatalError, is reserved for
// executions that produced no response.
func (s *Service) ExecuteRequest(ctx context.Context, item Item, collectionID, collectionPath string, environment Environment, opts ...ExecuteOptions) (*Result, error) {
	return s.orch.Execute(ctx, item, collectionID, collectionPath, environment, opts...)
}

// CancelRequest aborts the execution registered under token.
func (s *Service) CancelRequest(token string) error {
	return s.orch.Cancel(token)
}

// InFlight reports the number of executions that can currently be cancelled.
func (s *Service) InFlight() int { return s.registry.Len() }

// Store returns the history store, nil when history is disabled.
func (s *Service) Store() *Store { return s.store }
