package harness

import (
	"fmt"
	"time"

	"github.com/jstemmer/go-junit-report/v2/junit"
	"github.com/spf13/afero"

	breverrors "github.com/brevdev/hfi-regress/pkg/errors"
)

const suiteName = "hfi-regress"

// JUnit is the run as a single test suite with one case per entry.
func (rc *RunContext) JUnit() junit.Testsuites {
	suite := junit.Testsuite{Name: suiteName}
	suite.SetTimestamp(rc.Started)
	suite.AddProperty("run_id", rc.ID.String())

	var total time.Duration
	for _, r := range rc.Results {
		total += r.Duration
		tc := junit.Testcase{
			Name:      r.Name,
			Classname: r.Exe,
			Time:      formatSeconds(r.Duration),
		}
		switch r.Outcome {
		case Failed:
			tc.Failure = &junit.Result{Message: r.Message, Type: "failure", Data: r.Args}
		case Skipped:
			tc.Skipped = &junit.Result{Message: r.Message}
		}
		suite.AddTestcase(tc)
	}
	suite.Time = formatSeconds(total)

	suites := junit.Testsuites{Name: suiteName, Time: suite.Time}
	suites.AddSuite(suite)
	return suites
}

// WriteJUnit writes the JUnit report for rc to path.
func WriteJUnit(fs afero.Fs, path string, rc *RunContext) error {
	f, err := fs.Create(path)
	if err != nil {
		return breverrors.WrapAndTrace(err)
	}
	suites := rc.JUnit()
	if err := suites.WriteXML(f); err != nil {
		_ = f.Close()
		return breverrors.WrapAndTrace(err)
	}
	return breverrors.WrapAndTrace(f.Close())
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}
