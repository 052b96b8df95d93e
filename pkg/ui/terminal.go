package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"
)

// Logo is printed on stderr at startup
const Logo = `
   ┌─┐┌─┐┌─┐┬ ┬┌┐┌┌─┐
   └─┐│ ┬└─┐└┬┘││││
   └─┘└─┘└─┘ ┴ ┘└┘└─┘  steamgifts allow-list upkeep
`

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		return fmt.Sprintf(colorString, text)
	}
}

// Printer writes human-facing output. Messages go to Err so that Out carries
// only results that can be piped.
type Printer struct {
	Out   io.Writer
	Err   io.Writer
	quiet bool
	color bool
}

// NewPrinter creates a Printer. Colors are used only when err is a terminal.
func NewPrinter(out, err io.Writer, quiet bool) *Printer {
	p := &Printer{Out: out, Err: err, quiet: quiet}
	if f, ok := err.(*os.File); ok {
		p.color = term.IsTerminal(int(f.Fd()))
	}
	return p
}

// Stdio returns a Printer over stdout and stderr
func Stdio(quiet bool) *Printer {
	return NewPrinter(os.Stdout, os.Stderr, quiet)
}

func (p *Printer) paint(c func(string) string, s string) string {
	if !p.color {
		return s
	}
	return c(s)
}

// PrintLogo prints the logo unless quiet
func (p *Printer) PrintLogo() {
	if p.quiet {
		return
	}
	fmt.Fprint(p.Err, p.paint(Cyan, Logo))
}

// PrintError prints an error message in red. It is never silenced.
func (p *Printer) PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = msg + ": " + fmt.Sprintf("%v", args[0])
	}
	fmt.Fprintln(p.Err, p.paint(Red, msg))
}

// PrintSuccess prints a success message in green
func (p *Printer) PrintSuccess(msg string) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.Err, p.paint(Green, msg))
}

// PrintInfo prints a label and value
func (p *Printer) PrintInfo(label string, value string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.Err, "%s: %s\n", p.paint(Cyan, label), p.paint(Yellow, value))
}

// PrintWarning prints a warning message in yellow
func (p *Printer) PrintWarning(msg string, args ...interface{}) {
	if p.quiet {
		return
	}
	if len(args) > 0 {
		msg = msg + ": " + fmt.Sprintf("%v", args[0])
	}
	fmt.Fprintln(p.Err, p.paint(Yellow, msg))
}

// PrintHighlight prints a highlighted message in magenta
func (p *Printer) PrintHighlight(msg string) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.Err, p.paint(Magenta, msg))
}

// PrintDuration prints how long an operation took
func (p *Printer) PrintDuration(label string, d time.Duration) {
	p.PrintInfo(label, d.Round(time.Second).String())
}
