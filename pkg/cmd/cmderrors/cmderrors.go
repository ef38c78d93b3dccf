package cmderrors

import (
	"errors"
	"fmt"
	"io"

	pkgerrors "github.com/pkg/errors"

	"github.com/brevdev/hfi-regress/pkg/config"
	breverrors "github.com/brevdev/hfi-regress/pkg/errors"
	"github.com/brevdev/hfi-regress/pkg/terminal"
)

// DisplayAndHandleError prints err for the user and reports unexpected
// failures to the crash monitor. Test failures and config mistakes are the
// harness doing its job and are not reported.
func DisplayAndHandleError(t *terminal.Terminal, w io.Writer, err error) {
	if err == nil {
		return
	}
	var (
		validation breverrors.ValidationError
		cfg        breverrors.ConfigError
		exit       *breverrors.ExitError
	)
	prettyErr := ""
	switch {
	case errors.As(err, &cfg):
		prettyErr = t.Yellow(cfg.Error()) + "\n" + cfg.Directive()
	case errors.As(err, &validation):
		prettyErr = t.Yellow(pkgerrors.Cause(err).Error())
	case errors.As(err, &exit):
		// the test already printed its FAIL banner
		return
	default:
		er := breverrors.GetDefaultErrorReporter()
		er.ReportMessage(err.Error())
		er.ReportError(err)
		prettyErr = t.Red(pkgerrors.Cause(err).Error())
	}
	if config.GlobalConfig.GetDebug() {
		fmt.Fprintf(w, "%+v\n", err)
	} else {
		fmt.Fprintln(w, prettyErr)
	}
}
