package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/loykin/reqpipe"
	"github.com/loykin/reqpipe/pkg/env"
	"github.com/loykin/reqpipe/pkg/events"
	"github.com/loykin/reqpipe/pkg/request"
)

var (
	sendEnvFile        string
	sendCollectionPath string
	sendCollectionID   string
	sendSaveEnv        bool
	sendFail           bool
	sendNoStore        bool
)

var sendCmd = &cobra.Command{
	Use:   "send <item.yaml>",
	Short: "Execute a single request item and print the result as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		item, err := request.LoadItem(args[0])
		if err != nil {
			return err
		}
		var environment env.Environment
		if sendEnvFile != "" {
			if environment, err = env.Load(sendEnvFile); err != nil {
				return err
			}
		}
		collectionPath := sendCollectionPath
		if collectionPath == "" {
			collectionPath = filepath.Dir(args[0])
		}

		if sendNoStore {
			rt.doc.Store.Disabled = true
		}
		st, err := rt.doc.OpenStore(rt.dataDir)
		if err != nil {
			return err
		}
		if st != nil {
			defer func() { _ = st.Close() }()
		}

		updates := &envTracker{logger: rt.logger}
		svc, err := rt.newService(updates, st)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		tokens := make(chan string, 1)
		done := make(chan struct{})
		defer close(done)
		go cancelOnSignal(ctx, svc, tokens, done)

		// The execution runs on its own context so that an interrupt goes through
		// the token and is reported as a cancellation.
		res, err := svc.ExecuteRequest(context.WithoutCancel(ctx), item, sendCollectionID, collectionPath, environment,
			reqpipe.ExecuteOptions{OnToken: func(tok string) { tokens <- tok }})
		if err != nil {
			return err
		}

		if sendSaveEnv && sendEnvFile != "" {
			if vars, ok := updates.last(); ok {
				if err := saveEnvironment(sendEnvFile, environment.WithVars(vars)); err != nil {
					return err
				}
			}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
		if sendFail && res.Status >= 400 {
			return &statusError{Status: res.Status, StatusText: res.StatusText}
		}
		return nil
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendEnvFile, "env", "", "environment yaml file")
	sendCmd.Flags().StringVar(&sendCollectionPath, "collection-path", "", "collection directory passed to scripts (default: the item's directory)")
	sendCmd.Flags().StringVar(&sendCollectionID, "collection-id", "cli", "collection id reported in events and history")
	sendCmd.Flags().BoolVar(&sendSaveEnv, "save-env", false, "write script environment changes back to the --env file")
	sendCmd.Flags().BoolVar(&sendFail, "fail", false, "exit with an error when the response status is 400 or above")
	sendCmd.Flags().BoolVar(&sendNoStore, "no-store", false, "do not record the execution in history")
}

func cancelOnSignal(ctx context.Context, svc *reqpipe.Service, tokens <-chan string, done <-chan struct{}) {
	var token string
	select {
	case token = <-tokens:
	case <-done:
		return
	}
	select {
	case <-ctx.Done():
		_ = svc.CancelRequest(token)
	case <-done:
	}
}

// envTracker logs script environment updates and keeps the latest one.
type envTracker struct {
	logger *reqpipe.Logger
	mu     sync.Mutex
	vars   env.Vars
	seen   bool
}

func (t *envTracker) EnvironmentUpdated(e events.EnvironmentUpdated) {
	t.mu.Lock()
	t.vars, t.seen = e.Environment.Clone(), true
	t.mu.Unlock()
	t.logger.Info("environment updated by script", "variables", e.Environment.Names())
}

func (t *envTracker) RequestSent(e events.RequestSent) {
	t.logger.Info("request sent", "method", e.Request.Method, "url", e.Request.URL, "token_id", e.TokenID)
}

func (t *envTracker) last() (env.Vars, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.vars, t.seen
}

func saveEnvironment(path string, e env.Environment) error {
	data, err := yaml.Marshal(e)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Clean(path), data, 0o600); err != nil {
		return fmt.Errorf("save environment: %w", err)
	}
	return nil
}
