package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loykin/reqpipe"
	"github.com/loykin/reqpipe/cmd/reqpipe/config"
)

// session is what every command needs after reading the config.
type session struct {
	doc    *config.ConfigDoc
	logger *reqpipe.Logger
	// dataDir holds the default sqlite history file: the config file's directory.
	dataDir string
}

func loadRuntime(cmd *cobra.Command) (*session, error) {
	v := viper.GetViper()
	path := strings.TrimSpace(v.GetString("config"))
	explicit := cmd.Flags().Changed("config") || os.Getenv(config.EnvPrefix+"_CONFIG") != ""
	doc, err := config.Load(v, path, explicit)
	if err != nil {
		return nil, err
	}
	logger, err := doc.SetupLogging(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	dir := "."
	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			dir = filepath.Dir(path)
		}
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return &session{doc: doc, logger: logger, dataDir: dir}, nil
}

func (r *session) newService(notifier reqpipe.Notifier, st *reqpipe.Store) (*reqpipe.Service, error) {
	cc, err := r.doc.ClientConfig()
	if err != nil {
		return nil, err
	}
	return reqpipe.New(reqpipe.Options{
		Client:        cc,
		ScriptTimeout: r.doc.Script.Timeout,
		Notifier:      notifier,
		Store:         st,
		Logger:        r.logger,
	}), nil
}
