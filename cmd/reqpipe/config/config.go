package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/loykin/reqpipe"
	"github.com/loykin/reqpipe/internal/constants"
	"github.com/loykin/reqpipe/internal/httpc"
	"github.com/loykin/reqpipe/internal/store/postgresql"
)

// EnvPrefix is the prefix of environment variables overriding config keys,
// e.g. REQPIPE_SERVER_ADDR for server.addr.
const EnvPrefix = "REQPIPE"

type ServerConfig struct {
	Addr      string `mapstructure:"addr" yaml:"addr"`
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
}

type ClientConfig struct {
	// Explicit options only
	Insecure      bool          `mapstructure:"insecure" yaml:"insecure"`
	MinTLSVersion string        `mapstructure:"min_tls_version" yaml:"min_tls_version"`
	MaxTLSVersion string        `mapstructure:"max_tls_version" yaml:"max_tls_version"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type ScriptConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type SQLiteStoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type StoreConfig struct {
	Disabled    bool              `mapstructure:"disabled" yaml:"disabled"`
	Type        string            `mapstructure:"type" yaml:"type"`
	SQLite      SQLiteStoreConfig `mapstructure:"sqlite" yaml:"sqlite"`
	Postgres    postgresql.Config `mapstructure:"postgres" yaml:"postgres"`
	TablePrefix string            `mapstructure:"table_prefix" yaml:"table_prefix"`
}

type LoggingConfig struct {
	Level         string   `mapstructure:"level" yaml:"level"`                   // error, warn, info, debug
	Format        string   `mapstructure:"format" yaml:"format"`                 // text, json, color
	MaskSensitive *bool    `mapstructure:"mask_sensitive" yaml:"mask_sensitive"` // enable/disable sensitive data masking
	Color         *bool    `mapstructure:"color" yaml:"color"`                   // enable/disable colorized output
	MaskKeys      []string `mapstructure:"mask_keys" yaml:"mask_keys"`           // extra attribute/header names to redact
}

type ConfigDoc struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Client  ClientConfig  `mapstructure:"client" yaml:"client"`
	Script  ScriptConfig  `mapstructure:"script" yaml:"script"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// SetDefaults registers every key so that environment overrides apply even when
// the config file does not mention them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", constants.DefaultServerAddr)
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.jwt_issuer", "")
	v.SetDefault("client.insecure", false)
	v.SetDefault("client.min_tls_version", "")
	v.SetDefault("client.max_tls_version", "")
	v.SetDefault("client.timeout", "0s")
	v.SetDefault("script.timeout", constants.DefaultScriptTimeout.String())
	v.SetDefault("store.disabled", false)
	v.SetDefault("store.type", reqpipe.DriverSqlite)
	v.SetDefault("store.sqlite.path", "")
	v.SetDefault("store.postgres.dsn", "")
	v.SetDefault("store.postgres.host", "")
	v.SetDefault("store.postgres.port", 0)
	v.SetDefault("store.postgres.user", "")
	v.SetDefault("store.postgres.password", "")
	v.SetDefault("store.postgres.dbname", "")
	v.SetDefault("store.postgres.sslmode", "")
	v.SetDefault("store.table_prefix", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// BindEnv enables REQPIPE_* overrides on v.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads path into v (when it exists or was given explicitly) and decodes
// the merged settings. A missing file at the default location is not an error.
func Load(v *viper.Viper, path string, explicit bool) (*ConfigDoc, error) {
	if path = strings.TrimSpace(path); path != "" {
		clean := filepath.Clean(path)
		info, statErr := os.Stat(clean)
		switch {
		case statErr == nil && !info.Mode().IsRegular():
			return nil, fmt.Errorf("not a regular file: %s", clean)
		case statErr == nil:
			v.SetConfigFile(clean)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		case explicit || !errors.Is(statErr, os.ErrNotExist):
			return nil, statErr
		}
	}
	var doc ConfigDoc
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&doc, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &doc, nil
}

// ClientConfig converts the client section into transport settings.
func (c *ConfigDoc) ClientConfig() (httpc.Config, error) {
	for _, v := range []string{c.Client.MinTLSVersion, c.Client.MaxTLSVersion} {
		if strings.TrimSpace(v) != "" && httpc.ParseTLSVersion(v) == 0 {
			return httpc.Config{}, fmt.Errorf("invalid TLS version %q (valid: 1.0, 1.1, 1.2, 1.3)", v)
		}
	}
	if c.Client.Timeout < 0 {
		return httpc.Config{}, fmt.Errorf("client.timeout must not be negative")
	}
	return httpc.Config{
		Insecure:      c.Client.Insecure,
		MinTLSVersion: c.Client.MinTLSVersion,
		MaxTLSVersion: c.Client.MaxTLSVersion,
		Timeout:       c.Client.Timeout,
	}, nil
}

// StoreOptions builds history store options, nil when the store is disabled.
// A sqlite store without a path lives in dir.
func (c *StoreConfig) StoreOptions(dir string) *reqpipe.StoreConfig {
	if c.Disabled {
		return nil
	}
	out := &reqpipe.StoreConfig{}
	out.Config.TablePrefix = c.TablePrefix
	switch strings.ToLower(strings.TrimSpace(c.Type)) {
	case reqpipe.DriverPostgresql, "postgres", "pg":
		pg := c.Postgres
		out.Config.Driver = reqpipe.DriverPostgresql
		out.Config.DriverConfig = &pg
	default:
		path := strings.TrimSpace(c.SQLite.Path)
		if path == "" {
			path = filepath.Join(dir, reqpipe.StoreDBFileName)
		}
		out.Config.Driver = reqpipe.DriverSqlite
		out.Config.DriverConfig = &reqpipe.SqliteConfig{Path: path}
	}
	return out
}

// OpenStore opens the configured history store. It returns nil, nil when
// history is disabled.
func (c *ConfigDoc) OpenStore(dir string) (*reqpipe.Store, error) {
	opts := c.Store.StoreOptions(dir)
	if opts == nil {
		return nil, nil
	}
	return reqpipe.OpenStoreFromOptions(dir, opts)
}

func (c *ConfigDoc) parseLogLevel() (reqpipe.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "error":
		return reqpipe.LogLevelError, nil
	case "warn", "warning":
		return reqpipe.LogLevelWarn, nil
	case "info", "":
		return reqpipe.LogLevelInfo, nil
	case "debug":
		return reqpipe.LogLevelDebug, nil
	default:
		return reqpipe.LogLevelInfo, fmt.Errorf("invalid logging level: %s (valid: error, warn, info, debug)", c.Logging.Level)
	}
}

// NewLogger builds the logger described by the logging section, writing to w.
func (c *ConfigDoc) NewLogger(w io.Writer) (*reqpipe.Logger, error) {
	level, err := c.parseLogLevel()
	if err != nil {
		return nil, err
	}
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "text":
		format = "text"
		if c.Logging.Color != nil && *c.Logging.Color {
			format = "color"
		}
	case "colour":
		format = "color"
	case "json", "color":
	default:
		return nil, fmt.Errorf("invalid logging format: %s (valid: text, json, color)", c.Logging.Format)
	}

	var mask *reqpipe.Masker
	if c.Logging.MaskSensitive == nil || *c.Logging.MaskSensitive {
		mask = reqpipe.NewMasker(c.Logging.MaskKeys...)
	}
	return reqpipe.NewLoggerWithOptions(reqpipe.LogOptions{
		Level:  level,
		Format: format,
		Output: w,
		Mask:   mask,
	}), nil
}

// SetupLogging installs the configured logger as the process default.
func (c *ConfigDoc) SetupLogging(w io.Writer) (*reqpipe.Logger, error) {
	logger, err := c.NewLogger(w)
	if err != nil {
		return nil, err
	}
	reqpipe.SetDefaultLogger(logger)
	logger.Debug("logging configured",
		"level", logger.Level().String(),
		"format", c.Logging.Format,
		"mask_sensitive", c.Logging.MaskSensitive == nil || *c.Logging.MaskSensitive)
	return logger, nil
}
