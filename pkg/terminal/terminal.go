// Package terminal is for terminal outputting
package terminal

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

type ProgressBar struct {
	Bar  *progressbar.ProgressBar
	Curr int
}

type Terminal struct {
	verbose io.Writer
	err     io.Writer

	Green  func(format string, a ...interface{}) string
	Yellow func(format string, a ...interface{}) string
	Red    func(format string, a ...interface{}) string
	Blue   func(format string, a ...interface{}) string
}

func New() (t *Terminal) {
	return NewWithWriters(os.Stdout, os.Stderr)
}

func NewWithWriters(out io.Writer, err io.Writer) *Terminal {
	return &Terminal{
		verbose: out,
		err:     err,
		Green:   color.New(color.FgGreen).SprintfFunc(),
		Yellow:  color.New(color.FgYellow).SprintfFunc(),
		Red:     color.New(color.FgRed).SprintfFunc(),
		Blue:    color.New(color.FgBlue).SprintfFunc(),
	}
}

// Out is the writer child processes and tables should share with Print.
func (t *Terminal) Out() io.Writer {
	return t.verbose
}

func (t *Terminal) Err() io.Writer {
	return t.err
}

func (t *Terminal) Vprint(a string) {
	fmt.Fprintln(t.verbose, a)
}

func (t *Terminal) Vprintf(format string, a ...interface{}) {
	fmt.Fprintf(t.verbose, format, a...)
}

func (t *Terminal) Eprint(a string) {
	fmt.Fprintln(t.err, a)
}

// Banners match the harness log prefixes: WARN, INFO, PASS and FAIL.

func (t *Terminal) Warn(msg string) {
	t.Vprint(t.Yellow("WARN: ") + msg)
}

func (t *Terminal) Info(msg string) {
	t.Vprint(t.Blue("INFO: ") + msg)
}

func (t *Terminal) Pass(msg string) {
	t.Vprint(t.Green("PASS: ") + msg)
}

func (t *Terminal) Fail(msg string) {
	t.Vprint(t.Red("FAIL: ") + msg)
}

// NewSpinner draws on the error writer so it never mixes into test output.
func (t *Terminal) NewSpinner() *spinner.Spinner {
	return spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(t.err))
}

// NewProgressBar sizes the bar to the number of selected tests.
func (t *Terminal) NewProgressBar(max int, description string) *ProgressBar {
	bar := progressbar.NewOptions(max,
		progressbar.OptionSetWriter(t.err),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(15),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))

	return &ProgressBar{Bar: bar}
}

func (bar *ProgressBar) Advance(description string) {
	bar.Curr++
	bar.Bar.Describe(description)
	_ = bar.Bar.Add(1)
}
