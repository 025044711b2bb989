/*
Package log provides module scoped zerolog loggers for the notary.

Loggers are configured from the `log` section of the notary configuration, or
from a standalone toml file named by the NOTARY_LOGCONFIG environment variable.
All fields are optional.

 [log]
 # debug/info/warn/error/fatal/panic
 level = "info"

 # console, console_no_color, json
 formatter = "json"

 # stdout, stderr or a file path
 out = "stderr"

 # print source file and line
 caller = false

 # sub modules may override level and out
 [log.notebook]
 level = "debug"
*/
package log

import (
	"os"
	"strings"
	"sync"

	colorable "github.com/mattn/go-colorable"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	confEnvPrefix   = "NOTARY"
	confFilePathKey = "LOGCONFIG"
)

var (
	baseLogger  = zerolog.New(os.Stderr)
	baseLevel   = zerolog.InfoLevel
	logInitLock sync.Mutex
	isLogInit   = false
	logConf     = viper.New()

	moduleLoggers []*Logger
)

// Logger is a module logger. The embedded zerolog.Logger provides the
// leveled event builders.
type Logger struct {
	*zerolog.Logger
	name  string
	level zerolog.Level
}

// Configure (re)initializes the base logger from conf and rebuilds every
// module logger already handed out. Call it before the loggers are in use.
func Configure(conf *viper.Viper) {
	logInitLock.Lock()
	defer logInitLock.Unlock()

	if conf == nil {
		conf = viper.New()
	}
	logConf = conf
	baseLogger = zerolog.New(os.Stderr)
	initLog()
	isLogInit = true
	for _, logger := range moduleLoggers {
		zLogger, zLevel := buildModuleLogger(logger.name)
		*logger.Logger = zLogger
		logger.level = zLevel
	}
}

func loadEnvConfig() *viper.Viper {
	conf := viper.New()
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	conf.SetEnvPrefix(confEnvPrefix)
	conf.AutomaticEnv()

	path := conf.GetString(confFilePathKey)
	if path == "" {
		return conf
	}
	conf.SetConfigType("toml")
	conf.SetConfigFile(path)
	if err := conf.ReadInConfig(); err != nil {
		baseLogger.Error().Err(err).Str("file", path).Msg("Fail to read a logger's config file")
	}
	return conf
}

func initLog() {
	if logConf.GetString("timefieldformat") != "" {
		zerolog.TimeFieldFormat = logConf.GetString("timefieldformat")
	}

	out := os.Stderr
	if outputName := logConf.GetString("out"); outputName != "" {
		o, err := getOutput(outputName)
		if err == nil {
			out = o
			baseLogger = baseLogger.Output(out)
		} else {
			baseLogger.Warn().Err(err).Str("outputName", outputName).Msg("failed to open output writer. set to base out instead")
		}
	}

	switch strings.ToLower(logConf.GetString("formatter")) {
	case "", "json":
		baseLogger = baseLogger.Output(out)
	case "console":
		baseLogger = baseLogger.Output(
			zerolog.ConsoleWriter{Out: colorable.NewColorable(out), NoColor: false, TimeFormat: zerolog.TimeFieldFormat})
	case "console_no_color":
		baseLogger = baseLogger.Output(
			zerolog.ConsoleWriter{Out: out, NoColor: true, TimeFormat: zerolog.TimeFieldFormat})
	default:
		baseLogger.Warn().Str("formatter", logConf.GetString("formatter")).Msg("Invalid Message Formatter. Only allowed; console/console_no_color/json")
		baseLogger = baseLogger.Output(out)
	}

	if logConf.GetBool("caller") {
		baseLogger = baseLogger.With().Caller().Logger()
	}

	zLevel := zerolog.InfoLevel
	if level := logConf.GetString("level"); level != "" {
		var err error
		if zLevel, err = zerolog.ParseLevel(level); err != nil {
			baseLogger.Warn().Err(err).Msg("Fail to parse and set a default log level. set the level as info")
			zLevel = zerolog.InfoLevel
		}
	}

	baseLogger = baseLogger.With().Timestamp().Logger().Level(zLevel)
	baseLevel = zLevel
}

// NewLogger creates a logger tagged with module=moduleName. A sub section of
// the log configuration named after the module may override level and out.
func NewLogger(moduleName string) *Logger {
	logInitLock.Lock()
	defer logInitLock.Unlock()

	if !isLogInit {
		logConf = loadEnvConfig()
		initLog()
		isLogInit = true
	}

	zLogger, zLevel := buildModuleLogger(moduleName)
	logger := &Logger{
		Logger: &zLogger,
		name:   moduleName,
		level:  zLevel,
	}
	moduleLoggers = append(moduleLoggers, logger)
	return logger
}

func buildModuleLogger(moduleName string) (zerolog.Logger, zerolog.Level) {
	zLogger := baseLogger.With().Str("module", moduleName).Logger()
	zLevel := baseLevel

	if sub := logConf.Sub(moduleName); sub != nil {
		if outputName := sub.GetString("out"); outputName != "" {
			if out, err := getOutput(outputName); err == nil {
				zLogger = zLogger.Output(out)
			} else {
				baseLogger.Warn().Err(err).Str("outputName", outputName).Str("module", moduleName).Msg("failed to open output writer. set to base out instead")
			}
		}
		if level := sub.GetString("level"); level != "" {
			var err error
			if zLevel, err = zerolog.ParseLevel(level); err != nil {
				zLevel = zerolog.InfoLevel
			}
			zLogger = zLogger.Level(zLevel)
		}
	}
	return zLogger, zLevel
}

var errEmptyName = errors.New("empty output name")

// getOutput resolves stdout, stderr or a file path opened for append.
func getOutput(outName string) (*os.File, error) {
	switch outName {
	case "":
		return nil, errEmptyName
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		return os.OpenFile(outName, os.O_WRONLY|os.O_CREATE|os.O_APPEND|os.O_SYNC, 0644)
	}
}

// Default returns the base logger without a module tag.
func Default() *Logger {
	logInitLock.Lock()
	defer logInitLock.Unlock()

	if !isLogInit {
		logConf = loadEnvConfig()
		initLog()
		isLogInit = true
	}

	return &Logger{
		Logger: &baseLogger,
		level:  baseLevel,
	}
}

// IsDebugEnabled reports whether debug statements will be written, so callers
// can skip building expensive debug fields.
func (logger *Logger) IsDebugEnabled() bool {
	return logger.level <= zerolog.DebugLevel
}

// Level returns the logger level name.
func (logger *Logger) Level() string {
	return logger.level.String()
}

// Name returns the module name.
func (logger *Logger) Name() string {
	return logger.name
}
