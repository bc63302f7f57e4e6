package css

import (
	"go.uber.org/zap"
)

// Result holds normalized stylesheet and processing statistics.
type Result struct {
	Sheet    *Stylesheet
	Expanded int // shorthand declarations replaced by longhands
	Kept     int // shorthand declarations kept verbatim
	Dropped  int // declarations and rules removed during consolidation
}

// Bytes returns canonical CSS text.
func (r *Result) Bytes() []byte {
	return []byte(r.Sheet.String())
}

// Warnings returns all problems found in the input.
func (r *Result) Warnings() []Warning {
	return r.Sheet.Warnings
}

// Normalizer produces canonical stylesheet with longhand declarations only.
type Normalizer struct {
	log    *zap.Logger
	parser *Parser
	expand bool
}

// NewNormalizer creates normalizer. When expand is false shorthands are kept
// as authored and only consolidation is performed.
func NewNormalizer(log *zap.Logger, expand bool) *Normalizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Normalizer{
		log:    log.Named("normalizer"),
		parser: NewParser(log),
		expand: expand,
	}
}

// Normalize parses, consolidates and expands CSS text. It never fails, problems
// are reported as warnings. Output is idempotent: normalizing it again yields
// identical text.
func (n *Normalizer) Normalize(data []byte, source ...string) *Result {
	sheet := n.parser.Parse(data, source...)
	res := &Result{Sheet: sheet}
	sheet.Nodes = n.nodes(sheet.Nodes, false, res)

	for _, w := range sheet.Warnings {
		n.log.Warn("Malformed CSS", zap.String("problem", w.Message), zap.String("context", w.Context))
	}
	n.log.Debug("Stylesheet normalized",
		zap.Int("rules", len(sheet.Rules())),
		zap.Int("expanded", res.Expanded),
		zap.Int("kept", res.Kept),
		zap.Int("dropped", res.Dropped),
		zap.Int("warnings", len(sheet.Warnings)))
	return res
}

// NormalizeDeclarations normalizes bare declaration block (style attribute or
// translator input).
func (n *Normalizer) NormalizeDeclarations(block string) []Declaration {
	decls, warnings := n.parser.ParseDeclarations(block)
	for _, w := range warnings {
		n.log.Warn("Malformed declaration", zap.String("problem", w.Message), zap.String("context", w.Context))
	}
	return n.declarations(decls, false, &Result{})
}

func (n *Normalizer) nodes(in []Node, descriptors bool, res *Result) []Node {
	out := make([]Node, 0, len(in))

	var pending []Declaration
	flush := func() {
		for _, d := range n.declarations(pending, descriptors, res) {
			out = append(out, Node{Declaration: &d})
		}
		pending = pending[:0]
	}

	for _, node := range in {
		switch {
		case node.Declaration != nil:
			pending = append(pending, *node.Declaration)
			continue
		case node.Rule != nil:
			node.Rule.Declarations = n.declarations(node.Rule.Declarations, descriptors, res)
			if len(node.Rule.Declarations) == 0 {
				res.Dropped++
				continue
			}
		case node.AtRule != nil && node.AtRule.HasBlock:
			node.AtRule.Block = n.nodes(node.AtRule.Block, node.AtRule.descriptors(), res)
			if len(node.AtRule.Block) == 0 {
				res.Dropped++
				continue
			}
		}
		flush()
		out = append(out, node)
	}
	flush()
	return out
}

// declarations expands shorthands and removes duplicates. Later declaration of
// the same property wins unless earlier one is important and later one is not.
func (n *Normalizer) declarations(in []Declaration, descriptors bool, res *Result) []Declaration {
	var expanded []Declaration
	for _, d := range in {
		if n.expand && !descriptors && IsShorthand(d.Property) {
			if longhands, ok := Expand(d); ok {
				expanded = append(expanded, longhands...)
				res.Expanded++
				continue
			}
			res.Kept++
			n.log.Debug("Shorthand kept verbatim", zap.Stringer("declaration", d))
		}
		expanded = append(expanded, d)
	}

	out := make([]Declaration, 0, len(expanded))
	index := make(map[string]int, len(expanded))
	for _, d := range expanded {
		if i, exists := index[d.Property]; exists {
			res.Dropped++
			if out[i].Important && !d.Important {
				continue
			}
			out = append(out[:i], out[i+1:]...)
			for p, j := range index {
				if j > i {
					index[p] = j - 1
				}
			}
		}
		index[d.Property] = len(out)
		out = append(out, d)
	}
	return out
}
