package logger

import "io"

var defLogger = NewSlog(InfoLevel, false)

// GetLogger returns the package-wide default logger.
func GetLogger() Logger {
	return defLogger
}

// SetLogger replaces the package-wide default logger. Configurations created
// afterwards pick it up.
func SetLogger(l Logger) {
	if l != nil {
		defLogger = l
	}
}

// SetLevel sets the level of the default logger.
func SetLevel(level Level) {
	defLogger.SetLevel(level)
}

// With returns a child of the default logger.
func With(keyValues ...any) Logger {
	return defLogger.With(keyValues...)
}

// Discard returns a logger that drops every record.
func Discard() Logger {
	return NewSlogWithWriter(io.Discard, FatalLevel, false)
}
