package errors

import (
	"fmt"
	"runtime"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/pkg/errors"

	"github.com/brevdev/hfi-regress/pkg/cmd/version"
	"github.com/brevdev/hfi-regress/pkg/config"
)

type HarnessError interface {
	// Error returns a user-facing string explaining the error
	Error() string

	// Directive returns a user-facing string explaining how to overcome the error
	Directive() string
}

type ErrorReporter interface {
	Setup() func()
	Flush()
	ReportMessage(string) string
	ReportError(error) string
	AddTag(key string, value string)
}

// GetDefaultErrorReporter returns a Sentry reporter when a DSN is configured
// and a reporter that drops everything otherwise.
func GetDefaultErrorReporter() ErrorReporter {
	if config.GlobalConfig.GetSentryURL() == "" {
		return NoopErrorReporter{}
	}
	return SentryErrorReporter{}
}

type SentryErrorReporter struct{}

var _ ErrorReporter = SentryErrorReporter{}

func (s SentryErrorReporter) Setup() func() {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:     config.GlobalConfig.GetSentryURL(),
		Release: version.Version,
	})
	if err != nil {
		fmt.Println(err)
	}
	return func() {
		err := recover()
		if err != nil {
			sentry.CurrentHub().Recover(err)
			sentry.Flush(time.Second * 5)
			panic(err)
		}
		sentry.Flush(2 * time.Second)
	}
}

func (s SentryErrorReporter) Flush() {
	sentry.Flush(time.Second * 2)
}

func (s SentryErrorReporter) ReportMessage(msg string) string {
	event := sentry.CaptureMessage(msg)
	if event != nil {
		return string(*event)
	}
	return ""
}

func (s SentryErrorReporter) ReportError(e error) string {
	event := sentry.CaptureException(e)
	if event != nil {
		return string(*event)
	}
	return ""
}

func (s SentryErrorReporter) AddTag(key string, value string) {
	scope := sentry.CurrentHub().Scope()
	scope.SetTag(key, value)
}

type NoopErrorReporter struct{}

var _ ErrorReporter = NoopErrorReporter{}

func (NoopErrorReporter) Setup() func() { return func() {} }
func (NoopErrorReporter) Flush() {}
func (NoopErrorReporter) ReportMessage(string) string { return "" }
func (NoopErrorReporter) ReportError(error) string { return "" }
func (NoopErrorReporter) AddTag(_ string, _ string) {}

type ValidationError struct {
	Message string
}

func NewValidationError(message string) ValidationError {
	return ValidationError{Message: message}
}

var _ error = ValidationError{}

func (v ValidationError) Error() string {
	return v.Message
}

// ConfigError is a fatal problem with the option surface: a missing path,
// an unknown fabric manager mode, a node list the environment can't serve.
type ConfigError struct {
	Message string
}

func NewConfigError(format string, a ...interface{}) ConfigError {
	return ConfigError{Message: fmt.Sprintf(format, a...)}
}

var _ HarnessError = ConfigError{}

func (c ConfigError) Error() string {
	return "configuration error: " + c.Message
}

func (c ConfigError) Directive() string {
	return "check the command line options or run with --help"
}

// ExitError terminates a test process with a specific status.
type ExitError struct {
	Code int
	Msg  string
}

func NewExitError(code int, format string, a ...interface{}) *ExitError {
	return &ExitError{Code: code, Msg: fmt.Sprintf(format, a...)}
}

func (e *ExitError) Error() string {
	return e.Msg
}

// ExitCode walks the cause chain for an ExitError or ConfigError and
// falls back to 1 for anything else. A nil error is 0.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

func WrapAndTrace(err error, messages ...string) error {
	message := ""
	for _, m := range messages {
		message += fmt.Sprintf(" %s", m)
	}
	return errors.Wrap(err, MakeErrorMessage(message))
}

func MakeErrorMessage(message string) string {
	_, fn, line, _ := runtime.Caller(2)
	return fmt.Sprintf("[error] %s:%d %s\n\t", fn, line, message)
}
