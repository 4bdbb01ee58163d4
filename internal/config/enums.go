package config

import (
	"git.home.luguber.info/inful/sitesmith/internal/foundation/normalization"
)

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevelNormalizer = normalization.NewEnumNormalizer("log level", map[string]LogLevel{
	"debug":   LogLevelDebug,
	"info":    LogLevelInfo,
	"warn":    LogLevelWarn,
	"warning": LogLevelWarn,
	"error":   LogLevelError,
}, LogLevelInfo)

func NormalizeLogLevel(raw string) LogLevel {
	return logLevelNormalizer.Normalize(raw)
}

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

var logFormatNormalizer = normalization.NewEnumNormalizer("log format", map[string]LogFormat{
	"json": LogFormatJSON,
	"text": LogFormatText,
}, LogFormatText)

func NormalizeLogFormat(raw string) LogFormat {
	return logFormatNormalizer.Normalize(raw)
}

// SassStyle selects the stylesheet output style.
type SassStyle string

const (
	SassStyleExpanded   SassStyle = "expanded"
	SassStyleCompressed SassStyle = "compressed"
)

var sassStyleNormalizer = normalization.NewEnumNormalizer("sass style", map[string]SassStyle{
	"expanded":   SassStyleExpanded,
	"compressed": SassStyleCompressed,
}, SassStyleExpanded)

// SassImplementation selects the stylesheet compiler backend.
type SassImplementation string

const (
	SassImplementationBuiltin SassImplementation = "builtin"
	SassImplementationDart    SassImplementation = "dart"
)

var sassImplementationNormalizer = normalization.NewEnumNormalizer("sass implementation", map[string]SassImplementation{
	"builtin":   SassImplementationBuiltin,
	"dart":      SassImplementationDart,
	"dart-sass": SassImplementationDart,
}, SassImplementationBuiltin)
