// Package debug produces indented human readable dumps of intermediate
// results.
package debug

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

type TreeWriter struct {
	w *strings.Builder
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{
		w: &strings.Builder{},
	}
}

func (tw TreeWriter) String() string {
	return tw.w.String()
}

func (tw TreeWriter) indent(depth int) {
	for range depth {
		tw.w.WriteString("  ")
	}
}

func (tw TreeWriter) Line(depth int, format string, args ...any) {
	tw.indent(depth)
	fmt.Fprintf(tw.w, format, args...)
	tw.w.WriteByte('\n')
}

// Field writes "label: value" with value quoted, empty value is left out.
func (tw TreeWriter) Field(depth int, label, value string) {
	tw.indent(depth)
	tw.w.WriteString(label)
	tw.w.WriteString(":")
	if value != "" {
		tw.w.WriteByte(' ')
		tw.w.WriteString(strconv.Quote(value))
	}
	tw.w.WriteByte('\n')
}

// Table writes key value pairs one per line with values aligned.
func (tw TreeWriter) Table(depth int, rows [][2]string) {
	width := 0
	for _, r := range rows {
		width = max(width, utf8.RuneCountInString(r[0]))
	}
	for _, r := range rows {
		tw.indent(depth)
		tw.w.WriteString(r[0])
		tw.w.WriteString(strings.Repeat(" ", width-utf8.RuneCountInString(r[0])+1))
		tw.w.WriteString(r[1])
		tw.w.WriteByte('\n')
	}
}
