package reqpipe

import "github.com/loykin/reqpipe/internal/common"

type Logger = common.Logger
type LogLevel = common.LogLevel
type LogOptions = common.Options
type Masker = common.Masker

const (
	LogLevelError = common.LogLevelError
	LogLevelWarn  = common.LogLevelWarn
	LogLevelInfo  = common.LogLevelInfo
	LogLevelDebug = common.LogLevelDebug
)

func NewLogger(level LogLevel) *Logger      { return common.NewLogger(level) }
func NewJSONLogger(level LogLevel) *Logger  { return common.NewJSONLogger(level) }
func NewColorLogger(level LogLevel) *Logger { return common.NewColorLogger(level) }

// NewLoggerWithOptions builds a logger with explicit format, output and masking.
func NewLoggerWithOptions(opts LogOptions) *Logger { return common.New(opts) }

// NewMasker returns a masker for the default sensitive keys plus extraKeys.
func NewMasker(extraKeys ...string) *Masker { return common.NewMasker(extraKeys...) }

func SetDefaultLogger(l *Logger) { common.SetDefaultLogger(l) }

func GetLogger() *Logger { return common.GetLogger() }
