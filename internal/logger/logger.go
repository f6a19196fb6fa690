package logger

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a component-scoped console logger. Every service owns one,
// created with its component name so log lines are attributable.
type Logger struct {
	*zerolog.Logger
	component string
}

var logLevel = map[string]zerolog.Level{
	"development": zerolog.DebugLevel,
	"staging":     zerolog.InfoLevel,
	"production":  zerolog.InfoLevel,
}

type Config struct {
	IsProduction bool
	AppEnv       string
}

// New creates a logger for a specific component.
func New(component string) *Logger {
	return NewWithConfig(component, Config{
		IsProduction: os.Getenv("APP_ENV") == "production",
		AppEnv:       os.Getenv("APP_ENV"),
	})
}

func NewWithConfig(component string, config Config) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	output := zerolog.ConsoleWriter{
		Out: os.Stdout,
		FormatMessage: func(i interface{}) string {
			return fmt.Sprintf("[%s] %s", component, i)
		},
		FormatLevel: func(i interface{}) string {
			if level, ok := i.(string); ok {
				switch level {
				case "debug":
					return "\033[36m[DEBUG]\033[0m"
				case "info":
					return "\033[34m[INFO]\033[0m"
				case "warn":
					return "\033[33m[WARN]\033[0m"
				case "error":
					return "\033[31m[ERROR]\033[0m"
				case "fatal":
					return "\033[35m[FATAL]\033[0m"
				default:
					return fmt.Sprintf("[%s]", level)
				}
			}
			return "???"
		},
	}

	if config.IsProduction {
		output.TimeFormat = ""
	} else {
		output.TimeFormat = "2006-01-02 15:04:05"
	}

	var lg zerolog.Logger
	if config.IsProduction {
		lg = zerolog.New(output).Level(getLogLevel(config.AppEnv))
	} else {
		lg = zerolog.New(output).
			Level(getLogLevel(config.AppEnv)).
			With().
			Timestamp().
			Logger()
	}

	return &Logger{Logger: &lg, component: component}
}

func getLogLevel(env string) zerolog.Level {
	if level, exists := logLevel[env]; exists {
		return level
	}
	return zerolog.DebugLevel
}

func (l *Logger) Debug() *zerolog.Event { return l.Logger.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.Logger.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.Logger.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.Logger.Error() }

func (l *Logger) LogDebugf(format string, v ...interface{}) { l.Debug().Msgf(format, v...) }
func (l *Logger) LogInfof(format string, v ...interface{})  { l.Info().Msgf(format, v...) }
func (l *Logger) LogWarnf(format string, v ...interface{})  { l.Warn().Msgf(format, v...) }
func (l *Logger) LogErrorf(format string, v ...interface{}) { l.Error().Msgf(format, v...) }

func (l *Logger) LogError(msg string, err error) {
	if err != nil {
		l.Error().Err(err).Msg(msg)
		return
	}
	l.Error().Msg(msg)
}

func (l *Logger) LogFatal(msg string, err error) {
	if err != nil {
		l.Fatal().Err(err).Msg(msg)
		return
	}
	l.Fatal().Msg(msg)
}
