// Package css normalizes authored stylesheets: it consolidates rules and
// expands every known shorthand declaration into canonical longhands, so
// declarations could be compared one to one with computed styles reported by
// the browser.
package css

import (
	"fmt"
	"io"
	"strings"
)

// Declaration is a single authored property: value pair.
type Declaration struct {
	Property  string
	Value     string
	Important bool
}

// String returns declaration as it appears in CSS text without terminating
// semicolon.
func (d Declaration) String() string {
	if d.Important {
		return d.Property + ": " + d.Value + " !important"
	}
	return d.Property + ": " + d.Value
}

// Block formats declarations as a single declaration block body.
func Block(decls []Declaration) string {
	var sb strings.Builder
	for i, d := range decls {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(d.String())
		sb.WriteByte(';')
	}
	return sb.String()
}

// Rule is a qualified rule: selector list with its declarations in source order.
type Rule struct {
	Selector     string
	Declarations []Declaration
}

// AtRule is an @-rule with or without block. Block may hold nested rules
// (@media, @supports) or plain declarations (@font-face, @page).
type AtRule struct {
	Name     string // including "@", lower case
	Prelude  string
	HasBlock bool
	Block    []Node
}

// descriptors reports whether declarations inside this at-rule are
// descriptors rather than style properties and must never be expanded.
func (a *AtRule) descriptors() bool {
	switch a.Name {
	case "@font-face", "@counter-style", "@property", "@font-palette-values":
		return true
	}
	return false
}

// Node is a single stylesheet item. Exactly one of the fields is non-nil.
type Node struct {
	Rule        *Rule
	AtRule      *AtRule
	Declaration *Declaration
}

// Warning describes recovered problem found in the input.
type Warning struct {
	Message string
	Context string
}

func (w Warning) String() string {
	if w.Context == "" {
		return w.Message
	}
	return fmt.Sprintf("%s: %s", w.Message, w.Context)
}

// Stylesheet is a parsed stylesheet with items in source order.
type Stylesheet struct {
	Nodes    []Node
	Warnings []Warning
}

// Rules returns all qualified rules including ones nested in @-rule blocks in
// document order.
func (s *Stylesheet) Rules() []*Rule {
	var rules []*Rule
	var walk func(nodes []Node)
	walk = func(nodes []Node) {
		for _, n := range nodes {
			switch {
			case n.Rule != nil:
				rules = append(rules, n.Rule)
			case n.AtRule != nil:
				walk(n.AtRule.Block)
			}
		}
	}
	walk(s.Nodes)
	return rules
}

// WriteTo writes canonical text of the stylesheet to w, implementing io.WriterTo.
// Output is deterministic: parsing and writing it again produces identical text.
func (s *Stylesheet) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	for i, n := range s.Nodes {
		if i > 0 {
			cw.print("\n")
		}
		writeNode(cw, n, 0)
	}
	return cw.n, cw.err
}

// String returns the CSS text of the stylesheet.
func (s *Stylesheet) String() string {
	var sb strings.Builder
	s.WriteTo(&sb) //nolint:errcheck
	return sb.String()
}

type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (cw *countingWriter) print(format string, args ...any) {
	if cw.err != nil {
		return
	}
	var n int
	if len(args) == 0 {
		n, cw.err = io.WriteString(cw.w, format)
	} else {
		n, cw.err = fmt.Fprintf(cw.w, format, args...)
	}
	cw.n += int64(n)
}

func writeNode(cw *countingWriter, n Node, depth int) {
	indent := strings.Repeat("  ", depth)
	switch {
	case n.Declaration != nil:
		cw.print("%s%s;\n", indent, n.Declaration)
	case n.Rule != nil:
		cw.print("%s%s {\n", indent, n.Rule.Selector)
		for _, d := range n.Rule.Declarations {
			cw.print("%s  %s;\n", indent, d)
		}
		cw.print("%s}\n", indent)
	case n.AtRule != nil:
		head := n.AtRule.Name
		if n.AtRule.Prelude != "" {
			head += " " + n.AtRule.Prelude
		}
		if !n.AtRule.HasBlock {
			cw.print("%s%s;\n", indent, head)
			return
		}
		cw.print("%s%s {\n", indent, head)
		for _, child := range n.AtRule.Block {
			writeNode(cw, child, depth+1)
		}
		cw.print("%s}\n", indent)
	}
}
