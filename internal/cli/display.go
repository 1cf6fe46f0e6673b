package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/pterm/pterm"

	"github.com/roach88/yinglong/internal/infer"
)

var (
	successColorFG = pterm.FgLightGreen
	warnColorFG    = pterm.FgYellow
	warnStyleBG    = pterm.NewStyle(pterm.BgYellow, pterm.FgBlack)
	errorColorFG   = pterm.FgRed
	errorStyleBG   = pterm.NewStyle(pterm.BgRed, pterm.FgWhite)
	infoColorFG    = pterm.FgCyan
)

// Style colors text output. The zero value prints plain text.
type Style struct {
	color bool
}

// newStyle enables color only when w is a terminal and color is not
// disabled.
func newStyle(w io.Writer, noColor bool) Style {
	if noColor {
		return Style{}
	}
	f, ok := w.(*os.File)
	if !ok {
		return Style{}
	}
	info, err := f.Stat()
	if err != nil {
		return Style{}
	}
	return Style{color: info.Mode()&os.ModeCharDevice != 0}
}

func (s Style) Success(text string) string {
	if !s.color {
		return text
	}
	return successColorFG.Sprint(text)
}

func (s Style) Warn(text string) string {
	if !s.color {
		return text
	}
	return warnColorFG.Sprint(text)
}

func (s Style) Error(text string) string {
	if !s.color {
		return text
	}
	return errorColorFG.Sprint(text)
}

func (s Style) Info(text string) string {
	if !s.color {
		return text
	}
	return infoColorFG.Sprint(text)
}

// Tag renders a severity banner such as "error" or "warning".
func (s Style) Tag(sev infer.Severity) string {
	if !s.color {
		return sev.String()
	}
	if sev == infer.SeverityWarning {
		return warnStyleBG.Sprint(" " + sev.String() + " ")
	}
	return errorStyleBG.Sprint(" " + sev.String() + " ")
}

// printDiagnostic writes one diagnostic as
// "file:line:col: error E201 Undeclared in module m (x): message".
func printDiagnostic(w io.Writer, s Style, d infer.Diagnostic) {
	if d.Pos != nil {
		fmt.Fprintf(w, "%s: ", s.Info(d.Pos.String()))
	}
	fmt.Fprintf(w, "%s %s %s", s.Tag(d.Severity()), d.Code, d.Code.Name())
	if d.Module != "" {
		fmt.Fprintf(w, " in module %s", d.Module)
	}
	if d.Name != "" {
		fmt.Fprintf(w, " (%s)", d.Name)
	}
	if d.Severity() == infer.SeverityWarning {
		fmt.Fprintf(w, ": %s\n", s.Warn(d.Message))
	} else {
		fmt.Fprintf(w, ": %s\n", s.Error(d.Message))
	}
}
