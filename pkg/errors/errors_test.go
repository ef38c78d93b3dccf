package errors

import (
	"fmt"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func Test_WrapAndTraceKeepsCause(t *testing.T) {
	err := pkgerrors.New("my error")

	wrap1 := WrapAndTrace(err)
	wrap2 := WrapAndTrace(wrap1, "while doing", "things")

	assert.Equal(t, err, pkgerrors.Cause(wrap2))
	assert.Contains(t, wrap2.Error(), "errors_test.go")
	assert.Contains(t, wrap2.Error(), "while doing things")
	fmt.Printf("%+v\n", wrap2) // print stacktrace
}

func Test_ExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", pkgerrors.New("boom"), 1},
		{"exit", NewExitError(3, "three"), 3},
		{"wrapped exit", WrapAndTrace(NewExitError(255, "summary")), 255},
		{"config", NewConfigError("bad path %s", "/x"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func Test_ConfigErrorIsHarnessError(t *testing.T) {
	var err error = NewConfigError("path %s does not exist", "/nope")
	herr, ok := err.(HarnessError)
	assert.True(t, ok)
	assert.Equal(t, "configuration error: path /nope does not exist", herr.Error())
	assert.NotEmpty(t, herr.Directive())
}

func Test_NoopReporterWhenNoDSN(t *testing.T) {
	t.Setenv("HFI_REGRESS_SENTRY_DSN", "")
	er := GetDefaultErrorReporter()
	assert.IsType(t, NoopErrorReporter{}, er)
	assert.Equal(t, "", er.ReportMessage("ignored"))
}
