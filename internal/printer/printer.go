// Package printer renders the user-facing tables and run summaries on the
// terminal. Color is applied only when stdout is a TTY.
package printer

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/lcu-tools/lcudump/internal/runner"
)

// Printer writes aligned tables and colored status lines.
type Printer struct {
	out     io.Writer
	colored bool

	good *color.Color
	warn *color.Color
	bad  *color.Color
	dim  *color.Color
}

// New creates a printer for stdout, detecting TTY support.
func New() *Printer {
	return newWithOutput(os.Stdout, term.IsTerminal(int(os.Stdout.Fd())))
}

func newWithOutput(out io.Writer, colored bool) *Printer {
	return &Printer{
		out:     out,
		colored: colored,
		good:    color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		bad:     color.New(color.FgRed),
		dim:     color.New(color.FgHiBlack),
	}
}

// SetOutput replaces the output target, used by tests.
func (p *Printer) SetOutput(w io.Writer) {
	p.out = w
	p.colored = false
}

func (p *Printer) paint(c *color.Color, s string) string {
	if !p.colored {
		return s
	}
	return c.Sprint(s)
}

// Table prints rows under headers with columns padded to their widest cell.
func (p *Printer) Table(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && runewidth.StringWidth(cell) > widths[i] {
				widths[i] = runewidth.StringWidth(cell)
			}
		}
	}

	printRow := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = cell + strings.Repeat(" ", widths[i]-runewidth.StringWidth(cell))
		}
		fmt.Fprintln(p.out, strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	printRow(headers)
	sep := make([]string, len(headers))
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}
	printRow(sep)
	for _, row := range rows {
		printRow(row)
	}
}

// Summary prints the final tally line: green when everything succeeded,
// yellow for partial success, red when nothing succeeded.
func (p *Printer) Summary(res runner.Result, outputDir string) {
	line := fmt.Sprintf("total=%d ok=%d failed=%d skipped=%d fetched=%s output=%s",
		res.Total, res.OK, res.Failed, res.Skipped,
		humanize.Bytes(uint64(res.BodyBytes)), outputDir)

	switch {
	case res.Failed == 0:
		fmt.Fprintln(p.out, p.paint(p.good, "[done] "+line))
	case res.OK > 0:
		fmt.Fprintln(p.out, p.paint(p.warn, "[done] "+line))
	default:
		fmt.Fprintln(p.out, p.paint(p.bad, "[done] "+line))
	}
}

// Warnf prints a yellow warning line.
func (p *Printer) Warnf(format string, args ...any) {
	fmt.Fprintln(p.out, p.paint(p.warn, "[warn] "+fmt.Sprintf(format, args...)))
}

// Infof prints a dim informational line.
func (p *Printer) Infof(format string, args ...any) {
	fmt.Fprintln(p.out, p.paint(p.dim, "[info] "+fmt.Sprintf(format, args...)))
}
