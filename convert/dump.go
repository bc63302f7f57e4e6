package convert

import (
	"twc/breakpoint"
	"twc/dom"
	"twc/utils/debug"
)

// dumpMerged renders merged result as indented text in document order.
func dumpMerged(doc *dom.Document, bps []breakpoint.Breakpoint, merged *breakpoint.Merged) string {
	tw := debug.NewTreeWriter()

	tw.Line(0, "breakpoints")
	rows := make([][2]string, 0, len(bps))
	for _, bp := range bps {
		rows = append(rows, [2]string{bp.Name, bp.Viewport().String() + " " + bp.Qualifier})
	}
	tw.Table(1, rows)

	tw.Line(0, "elements")
	for _, id := range doc.Identities() {
		decls, ok := merged.Declarations[id]
		if !ok {
			continue
		}
		tw.Line(1, "[%d] %s", id, doc.Describe(id))
		tw.Field(2, "class", merged.Classes[id])
		rows = rows[:0]
		for _, d := range decls {
			rows = append(rows, [2]string{d.Qualifier + d.Property, d.Value})
		}
		tw.Table(2, rows)
	}
	return tw.String()
}
