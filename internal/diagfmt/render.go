// Package diagfmt renders diagnostics for terminal output.
package diagfmt

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"vex/internal/diag"
	"vex/internal/source"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan, color.Bold)
	codeColor    = color.New(color.Bold)
	noteColor    = color.New(color.Faint)
)

// PathResolver maps a file ID back to a printable path. A nil resolver
// prints the numeric ID.
type PathResolver func(source.FileID) string

// Renderer writes diagnostics one per line with indented notes.
type Renderer struct {
	w       io.Writer
	pathFor PathResolver
}

func New(w io.Writer, pathFor PathResolver) *Renderer {
	return &Renderer{w: w, pathFor: pathFor}
}

func severityColor(sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevError:
		return errorColor
	case diag.SevWarning:
		return warningColor
	}
	return infoColor
}

func (r *Renderer) location(sp source.Span) string {
	if sp.Empty() && !sp.File.IsValid() {
		return ""
	}
	if r.pathFor != nil {
		return fmt.Sprintf("%s:%d-%d", r.pathFor(sp.File), sp.Start, sp.End)
	}
	return sp.String()
}

// Render writes one diagnostic.
func (r *Renderer) Render(d diag.Diagnostic) {
	sev := severityColor(d.Severity)
	loc := r.location(d.Primary)
	if loc != "" {
		fmt.Fprintf(r.w, "%s%s%s %s %s\n",
			sev.Sprint(d.Severity.String()),
			codeColor.Sprintf("[%s]", d.Code.String()),
			":", loc, d.Message)
	} else {
		fmt.Fprintf(r.w, "%s%s: %s\n",
			sev.Sprint(d.Severity.String()),
			codeColor.Sprintf("[%s]", d.Code.String()),
			d.Message)
	}
	for _, note := range d.Notes {
		fmt.Fprintf(r.w, "  %s %s\n", noteColor.Sprint("note:"), note.Msg)
	}
}

// RenderBag writes every diagnostic in the bag.
func (r *Renderer) RenderBag(bag *diag.Bag) {
	if bag == nil {
		return
	}
	for _, d := range bag.Items() {
		r.Render(d)
	}
}

// Summary writes the closing line of a check run.
func Summary(w io.Writer, units, failed, errs int) {
	if errs == 0 {
		fmt.Fprintf(w, "%s %d unit(s) checked\n", infoColor.Sprint("ok:"), units)
		return
	}
	fmt.Fprintf(w, "%s %d error(s) in %d of %d unit(s)\n",
		errorColor.Sprint("fail:"), errs, failed, units)
}
