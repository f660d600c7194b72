package patchkit

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/autom8ter/patchkit/errors"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// ColorMode controls colored output
type ColorMode string

const (
	// ColorAuto colors output only when writing to a terminal
	ColorAuto ColorMode = "auto"
	// ColorAlways always colors output
	ColorAlways ColorMode = "always"
	// ColorNever never colors output
	ColorNever ColorMode = "never"
)

// Printer writes human readable progress lines for operators
type Printer struct {
	out     io.Writer
	applied *color.Color
	failed  *color.Color
	planned *color.Color
	notice  *color.Color
	added   *color.Color
	removed *color.Color
}

// NewPrinter returns a Printer writing to out
func NewPrinter(out io.Writer, mode ColorMode) *Printer {
	p := &Printer{
		out:     out,
		applied: color.New(color.FgGreen),
		failed:  color.New(color.FgRed, color.Bold),
		planned: color.New(color.FgCyan),
		notice:  color.New(color.FgYellow),
		added:   color.New(color.FgGreen),
		removed: color.New(color.FgRed),
	}
	enabled := useColor(out, mode)
	for _, c := range []*color.Color{p.applied, p.failed, p.planned, p.notice, p.added, p.removed} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// NopPrinter discards everything
func NopPrinter() *Printer {
	return NewPrinter(io.Discard, ColorNever)
}

func useColor(out io.Writer, mode ColorMode) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Found announces how many targets a lookup resolved to
func (p *Printer) Found(lookup string, count int) {
	fmt.Fprintf(p.out, "found %d target(s) for %s\n", count, lookup)
}

// NoTargets announces a lookup without matches
func (p *Printer) NoTargets(lookup string) {
	p.notice.Fprintf(p.out, "no targets found for %s\n", lookup)
}

// Outcome prints one line per target
func (p *Printer) Outcome(o Outcome) {
	var c *color.Color
	switch o.Status {
	case StatusApplied:
		c = p.applied
	case StatusPlanned:
		c = p.planned
	default:
		c = p.failed
	}
	line := fmt.Sprintf("%-8s %s", o.Status, o.Target)
	if len(o.Changes) > 0 {
		line += " (" + strings.Join(o.Changes, ", ") + ")"
	}
	if o.Patch != nil && o.Status == StatusPlanned {
		line += " " + o.Patch.String()
	}
	if o.Err != nil {
		line += ": " + describeError(o.Err)
	}
	c.Fprintln(p.out, line)
}

// Summary prints the totals of a report
func (p *Printer) Summary(r *Report) {
	fmt.Fprintf(p.out, "%s %s: %d applied, %d failed, %d planned\n",
		r.Kind,
		r.RunID,
		r.Count(StatusApplied),
		r.Count(StatusFailed),
		r.Count(StatusPlanned),
	)
}

// Diff prints a line diff between two versions of a file
func (p *Printer) Diff(path string, before, after string) {
	if before == after {
		return
	}
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)
	fmt.Fprintf(p.out, "--- %s\n+++ %s\n", path, path)
	for _, d := range diffs {
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			line = strings.TrimSuffix(line, "\n")
			switch d.Type {
			case diffmatchpatch.DiffInsert:
				p.added.Fprintln(p.out, "+"+line)
			case diffmatchpatch.DiffDelete:
				p.removed.Fprintln(p.out, "-"+line)
			}
		}
	}
}

// describeError renders an error's messages and cause on one line
func describeError(err error) string {
	e := errors.Extract(err)
	parts := append([]string{}, e.Messages...)
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	if e.Code > 0 {
		return fmt.Sprintf("%s: %s", e.Code, strings.Join(parts, ": "))
	}
	return strings.Join(parts, ": ")
}
