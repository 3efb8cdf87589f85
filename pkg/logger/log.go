package logger

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fatih/color"
)

type (
	LogStatus int
	LogLevel  int
)

const (
	VERBOSE LogStatus = iota
	DEBUG
	INFO
	SUCCESS
	NEW
	REMOVE
	STOP
	WARNING
	ERROR
	FATAL
)

var (
	statusLabels = []string{"V", "D", "I", "✓", "+", "-", "X", "!", "!!", "PANIC"}
	statusColors = []*color.Color{
		color.New(color.FgWhite, color.Italic),                // Verbose
		color.New(color.FgWhite, color.Italic),                // Debug
		color.New(color.FgWhite),                              // Info
		color.New(color.FgHiGreen),                            // Success
		color.New(color.FgGreen, color.Italic),                // New
		color.New(color.FgYellow, color.Italic),               // Remove
		color.New(color.FgHiYellow),                           // Stop
		color.New(color.FgYellow, color.Underline),            // Warning
		color.New(color.FgHiRed, color.Bold),                  // Error
		color.New(color.FgHiRed, color.Bold, color.Underline), // Fatal
	}
)

func (e LogStatus) String() string    { return statusLabels[e] }
func (e LogStatus) Color() *color.Color { return statusColors[e] }

// Level returns the numeric level of this status, suitable for
// use with SetMinLoggingLevel.
func (e LogStatus) Level() LogLevel { return LogLevel(e) }

type Logger interface {
	Emit(LogStatus, string, ...any)
	Verbosef(string, ...any)
	Debugf(string, ...any)
	Infof(string, ...any)
	Warnf(string, ...any)
	Errorf(string, ...any)
	Fatalf(string, ...any)

	// Printf is provided so that the logger can be handed
	// to libraries which expect a std-lib style logger.
	Printf(string, ...any)
}

type loggerImpl struct {
	name string
}

func (l *loggerImpl) Emit(status LogStatus, message string, interpolations ...any) {
	manager.emit(status, l.name, message, interpolations...)
}

func (l *loggerImpl) Verbosef(m string, a ...any) { l.Emit(VERBOSE, m, a...) }
func (l *loggerImpl) Debugf(m string, a ...any)   { l.Emit(DEBUG, m, a...) }
func (l *loggerImpl) Infof(m string, a ...any)    { l.Emit(INFO, m, a...) }
func (l *loggerImpl) Warnf(m string, a ...any)    { l.Emit(WARNING, m, a...) }
func (l *loggerImpl) Errorf(m string, a ...any)   { l.Emit(ERROR, m, a...) }
func (l *loggerImpl) Fatalf(m string, a ...any)   { l.Emit(FATAL, m, a...) }
func (l *loggerImpl) Printf(m string, a ...any)   { l.Emit(INFO, m, a...) }

type loggerMgr struct {
	*sync.Mutex
	offset   int
	minLevel LogLevel
}

var manager = &loggerMgr{Mutex: &sync.Mutex{}, minLevel: INFO.Level()}

func (l *loggerMgr) emit(status LogStatus, name string, message string, interpolations ...any) {
	l.Lock()
	defer l.Unlock()

	if status.Level() < l.minLevel {
		return
	}

	if len(name) > l.offset {
		l.offset = len(name)
	}

	padding := strings.Repeat(" ", l.offset-len(name))
	msg := fmt.Sprintf("[%s] %s(%s) %s", name, padding, status, fmt.Sprintf(message, interpolations...))
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}

	status.Color().Print(msg)
}

// SetMinLoggingLevel changes the minimum level a log
// must be at to be emitted. Logs below this level are dropped.
func SetMinLoggingLevel(level LogLevel) {
	manager.Lock()
	defer manager.Unlock()

	manager.minLevel = level
}

// Get returns a Logger which prefixes all messages with
// the name provided.
func Get(name string) Logger {
	return &loggerImpl{name: name}
}

// ParseLevel accepts the name of a log level (e.g. "debug") and
// returns the matching LogLevel.
func ParseLevel(name string) (LogLevel, error) {
	switch strings.ToLower(name) {
	case "verbose":
		return VERBOSE.Level(), nil
	case "debug":
		return DEBUG.Level(), nil
	case "info":
		return INFO.Level(), nil
	case "warning", "warn":
		return WARNING.Level(), nil
	case "error":
		return ERROR.Level(), nil
	}

	return INFO.Level(), fmt.Errorf("log level %q not recognised", name)
}
