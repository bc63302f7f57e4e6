package css

import (
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

type expander func(fields []field, value string) ([]string, bool)

type shorthand struct {
	longhands []string
	expand    expander
}

// shorthands maps every supported shorthand to its canonical longhands in the
// order they are emitted.
var shorthands = map[string]shorthand{
	"margin":         box("margin-top", "margin-right", "margin-bottom", "margin-left"),
	"padding":        box("padding-top", "padding-right", "padding-bottom", "padding-left"),
	"inset":          box("top", "right", "bottom", "left"),
	"border-width":   box("border-top-width", "border-right-width", "border-bottom-width", "border-left-width"),
	"border-style":   box("border-top-style", "border-right-style", "border-bottom-style", "border-left-style"),
	"border-color":   box("border-top-color", "border-right-color", "border-bottom-color", "border-left-color"),
	"scroll-margin":  box("scroll-margin-top", "scroll-margin-right", "scroll-margin-bottom", "scroll-margin-left"),
	"scroll-padding": box("scroll-padding-top", "scroll-padding-right", "scroll-padding-bottom", "scroll-padding-left"),

	"border-radius": {
		longhands: []string{"border-top-left-radius", "border-top-right-radius", "border-bottom-right-radius", "border-bottom-left-radius"},
		expand:    expandRadius,
	},

	"border":        lineGroup(false, "border-top", "border-right", "border-bottom", "border-left"),
	"border-top":    lineGroup(false, "border-top"),
	"border-right":  lineGroup(false, "border-right"),
	"border-bottom": lineGroup(false, "border-bottom"),
	"border-left":   lineGroup(false, "border-left"),
	"outline":       lineGroup(true, "outline"),
	"column-rule":   lineGroup(false, "column-rule"),

	"gap":      pair("row-gap", "column-gap"),
	"grid-gap": pair("row-gap", "column-gap"),
	"overflow": pair("overflow-x", "overflow-y"),

	"place-items":   place("align-items", "justify-items"),
	"place-content": place("align-content", "justify-content"),
	"place-self":    place("align-self", "justify-self"),

	"flex":      {longhands: []string{"flex-grow", "flex-shrink", "flex-basis"}, expand: expandFlex},
	"flex-flow": {longhands: []string{"flex-direction", "flex-wrap"}, expand: expandFlexFlow},

	"grid-row":    gridLine("grid-row-start", "grid-row-end"),
	"grid-column": gridLine("grid-column-start", "grid-column-end"),
	"grid-area": {
		longhands: []string{"grid-row-start", "grid-column-start", "grid-row-end", "grid-column-end"},
		expand:    expandGridArea,
	},

	"columns":         {longhands: []string{"column-width", "column-count"}, expand: expandColumns},
	"list-style":      {longhands: []string{"list-style-type", "list-style-position", "list-style-image"}, expand: expandListStyle},
	"text-decoration": {longhands: []string{"text-decoration-line", "text-decoration-thickness", "text-decoration-style", "text-decoration-color"}, expand: expandTextDecoration},
	"background": {
		longhands: []string{
			"background-color", "background-image", "background-repeat", "background-attachment",
			"background-position-x", "background-position-y", "background-size", "background-origin", "background-clip",
		},
		expand: expandBackground,
	},
	"font": {
		longhands: []string{"font-style", "font-variant-caps", "font-weight", "font-stretch", "font-size", "line-height", "font-family"},
		expand:    expandFont,
	},
}

var wideKeywords = map[string]bool{
	"inherit": true, "initial": true, "unset": true, "revert": true, "revert-layer": true,
}

// IsShorthand reports whether property is expanded by the normalizer.
func IsShorthand(property string) bool {
	_, ok := shorthands[property]
	return ok
}

// Longhands returns canonical longhands of the shorthand property or nil.
func Longhands(property string) []string {
	if sh, ok := shorthands[property]; ok {
		return append([]string(nil), sh.longhands...)
	}
	return nil
}

// Expand converts shorthand declaration into its longhands. It reports false
// when declaration is not a known shorthand or its value could not be
// interpreted, in which case declaration must be kept verbatim. Values
// referencing custom properties are never expanded.
func Expand(d Declaration) ([]Declaration, bool) {
	sh, ok := shorthands[d.Property]
	if !ok || d.Value == "" || strings.Contains(strings.ToLower(d.Value), "var(") {
		return nil, false
	}

	fields := splitFields(d.Value)
	if len(fields) == 0 {
		return nil, false
	}

	var values []string
	if len(fields) == 1 && wideKeywords[strings.ToLower(fields[0].text)] {
		values = make([]string, len(sh.longhands))
		for i := range values {
			values[i] = fields[0].text
		}
	} else if values, ok = sh.expand(fields, d.Value); !ok {
		return nil, false
	}
	if len(values) != len(sh.longhands) || len(values) < 2 {
		return nil, false
	}

	res := make([]Declaration, len(values))
	for i, v := range values {
		res[i] = Declaration{Property: sh.longhands[i], Value: v, Important: d.Important}
	}
	return res, true
}

// field is a single top-level component of a value. Separators "/" and ","
// are returned as separate fields.
type field struct {
	text string
	pos  int
}

func (f field) is(s string) bool {
	return strings.EqualFold(f.text, s)
}

func (f field) separator() bool {
	return f.text == "/" || f.text == ","
}

// splitFields breaks value into top-level components using CSS lexer, so
// strings and function arguments are never split.
func splitFields(value string) []field {
	var (
		fields []field
		cur    strings.Builder
		start  int
		depth  int
		offset int
	)
	flush := func() {
		if cur.Len() > 0 {
			fields = append(fields, field{text: cur.String(), pos: start})
			cur.Reset()
		}
	}

	l := css.NewLexer(parse.NewInputString(value))
	for {
		tt, data := l.Next()
		if tt == css.ErrorToken {
			break
		}
		pos := offset
		offset += len(data)

		switch tt {
		case css.FunctionToken, css.LeftParenthesisToken, css.LeftBracketToken:
			depth++
		case css.RightParenthesisToken, css.RightBracketToken:
			depth--
		}
		if depth == 0 {
			switch {
			case tt == css.WhitespaceToken || tt == css.CommentToken:
				flush()
				continue
			case tt == css.CommaToken || tt == css.DelimToken && string(data) == "/":
				flush()
				fields = append(fields, field{text: string(data), pos: pos})
				continue
			}
		}
		if cur.Len() == 0 {
			start = pos
		}
		cur.Write(data)
	}
	flush()
	return fields
}

func texts(fields []field) []string {
	res := make([]string, len(fields))
	for i, f := range fields {
		res[i] = f.text
	}
	return res
}

func hasSeparator(fields []field) bool {
	for _, f := range fields {
		if f.separator() {
			return true
		}
	}
	return false
}

// splitBy splits fields into groups by separator, returns nil when any group is empty.
func splitBy(fields []field, sep string) [][]field {
	var (
		groups [][]field
		cur    []field
	)
	for _, f := range fields {
		if f.text == sep {
			if len(cur) == 0 {
				return nil
			}
			groups = append(groups, cur)
			cur = nil
			continue
		}
		cur = append(cur, f)
	}
	if len(cur) == 0 {
		return nil
	}
	return append(groups, cur)
}

func join(fields []field) string {
	return strings.Join(texts(fields), " ")
}

// sides applies usual 1 to 4 values box notation: top, right, bottom, left.
func sides(v []string) ([]string, bool) {
	switch len(v) {
	case 1:
		return []string{v[0], v[0], v[0], v[0]}, true
	case 2:
		return []string{v[0], v[1], v[0], v[1]}, true
	case 3:
		return []string{v[0], v[1], v[2], v[1]}, true
	case 4:
		return []string{v[0], v[1], v[2], v[3]}, true
	}
	return nil, false
}

func box(top, right, bottom, left string) shorthand {
	return shorthand{
		longhands: []string{top, right, bottom, left},
		expand: func(fields []field, _ string) ([]string, bool) {
			if hasSeparator(fields) {
				return nil, false
			}
			return sides(texts(fields))
		},
	}
}

func pair(first, second string) shorthand {
	return shorthand{
		longhands: []string{first, second},
		expand: func(fields []field, _ string) ([]string, bool) {
			if hasSeparator(fields) {
				return nil, false
			}
			switch len(fields) {
			case 1:
				return []string{fields[0].text, fields[0].text}, true
			case 2:
				return []string{fields[0].text, fields[1].text}, true
			}
			return nil, false
		},
	}
}

// place expands place-* properties. Multi-word alignment values (first
// baseline, safe center) are ambiguous and are kept verbatim.
func place(align, justify string) shorthand {
	p := pair(align, justify)
	inner := p.expand
	p.expand = func(fields []field, value string) ([]string, bool) {
		for _, f := range fields {
			switch strings.ToLower(f.text) {
			case "first", "last", "safe", "unsafe", "legacy":
				return nil, false
			}
		}
		return inner(fields, value)
	}
	return p
}

func expandRadius(fields []field, _ string) ([]string, bool) {
	groups := splitBy(fields, "/")
	if len(groups) == 0 || len(groups) > 2 {
		return nil, false
	}
	h, ok := sides(texts(groups[0]))
	if !ok {
		return nil, false
	}
	if len(groups) == 1 {
		return h, true
	}
	v, ok := sides(texts(groups[1]))
	if !ok {
		return nil, false
	}
	res := make([]string, 4)
	for i := range res {
		if h[i] == v[i] {
			res[i] = h[i]
		} else {
			res[i] = h[i] + " " + v[i]
		}
	}
	return res, true
}

var lineStyles = map[string]bool{
	"none": true, "hidden": true, "dotted": true, "dashed": true, "solid": true,
	"double": true, "groove": true, "ridge": true, "inset": true, "outset": true,
}

var lineWidths = map[string]bool{"thin": true, "medium": true, "thick": true}

var mathFunctions = []string{"calc(", "min(", "max(", "clamp("}

// isLength reports whether component looks like length, percentage or number.
func isLength(s string) bool {
	if s == "" {
		return false
	}
	switch c := s[0]; {
	case c >= '0' && c <= '9', c == '.':
		return true
	case c == '+' || c == '-':
		return len(s) > 1 && (s[1] >= '0' && s[1] <= '9' || s[1] == '.')
	}
	ls := strings.ToLower(s)
	for _, fn := range mathFunctions {
		if strings.HasPrefix(ls, fn) {
			return true
		}
	}
	return false
}

func isNumber(s string) bool {
	if !isLength(s) || strings.HasSuffix(s, "%") {
		return false
	}
	for _, c := range strings.TrimLeft(s, "+-") {
		if (c < '0' || c > '9') && c != '.' {
			return false
		}
	}
	return true
}

func isInteger(s string) bool {
	return isNumber(s) && !strings.Contains(s, ".")
}

// lineGroup expands width, style and color triplets for every listed prefix.
func lineGroup(outline bool, prefixes ...string) shorthand {
	var longhands []string
	for _, p := range prefixes {
		longhands = append(longhands, p+"-width", p+"-style", p+"-color")
	}
	return shorthand{
		longhands: longhands,
		expand: func(fields []field, _ string) ([]string, bool) {
			if hasSeparator(fields) || len(fields) > 3 {
				return nil, false
			}
			var width, style, color string
			for _, f := range fields {
				lt := strings.ToLower(f.text)
				switch {
				case style == "" && (lineStyles[lt] || outline && lt == "auto"):
					style = f.text
				case width == "" && (lineWidths[lt] || isLength(f.text)):
					width = f.text
				case color == "" && !isLength(f.text):
					color = f.text
				default:
					return nil, false
				}
			}
			width = or(width, "medium")
			style = or(style, "none")
			color = or(color, "currentcolor")

			res := make([]string, 0, len(longhands))
			for range prefixes {
				res = append(res, width, style, color)
			}
			return res, true
		},
	}
}

func or(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

var flexBasisKeywords = map[string]bool{
	"auto": true, "content": true, "max-content": true, "min-content": true, "fit-content": true,
}

func isFlexBasis(s string) bool {
	return flexBasisKeywords[strings.ToLower(s)] || isLength(s) && !isNumber(s)
}

func isZero(s string) bool {
	return isNumber(s) && strings.Trim(strings.TrimLeft(s, "+-"), "0.") == ""
}

func expandFlex(fields []field, _ string) ([]string, bool) {
	if hasSeparator(fields) {
		return nil, false
	}
	v := texts(fields)
	switch len(v) {
	case 1:
		switch strings.ToLower(v[0]) {
		case "none":
			return []string{"0", "0", "auto"}, true
		case "auto":
			return []string{"1", "1", "auto"}, true
		}
		if isNumber(v[0]) {
			return []string{v[0], "1", "0%"}, true
		}
		if isFlexBasis(v[0]) {
			return []string{"1", "1", v[0]}, true
		}
	case 2:
		if !isNumber(v[0]) {
			return nil, false
		}
		if isNumber(v[1]) {
			return []string{v[0], v[1], "0%"}, true
		}
		if isFlexBasis(v[1]) {
			return []string{v[0], "1", v[1]}, true
		}
	case 3:
		// unitless zero is basis only after both factors
		if isNumber(v[0]) && isNumber(v[1]) && (isFlexBasis(v[2]) || isZero(v[2])) {
			return []string{v[0], v[1], v[2]}, true
		}
	}
	return nil, false
}

var (
	flexDirections = map[string]bool{"row": true, "row-reverse": true, "column": true, "column-reverse": true}
	flexWraps      = map[string]bool{"nowrap": true, "wrap": true, "wrap-reverse": true}
)

func expandFlexFlow(fields []field, _ string) ([]string, bool) {
	if hasSeparator(fields) || len(fields) > 2 {
		return nil, false
	}
	var dir, wrap string
	for _, f := range fields {
		lt := strings.ToLower(f.text)
		switch {
		case dir == "" && flexDirections[lt]:
			dir = f.text
		case wrap == "" && flexWraps[lt]:
			wrap = f.text
		default:
			return nil, false
		}
	}
	return []string{or(dir, "row"), or(wrap, "nowrap")}, true
}

// isCustomIdent reports whether grid line is a named line which is copied to the
// omitted end.
func isCustomIdent(group []field) bool {
	if len(group) != 1 {
		return false
	}
	s := strings.ToLower(group[0].text)
	return s != "auto" && s != "span" && !isLength(s)
}

func gridLine(start, end string) shorthand {
	return shorthand{
		longhands: []string{start, end},
		expand: func(fields []field, _ string) ([]string, bool) {
			groups := splitBy(fields, "/")
			switch len(groups) {
			case 1:
				e := "auto"
				if isCustomIdent(groups[0]) {
					e = join(groups[0])
				}
				return []string{join(groups[0]), e}, true
			case 2:
				return []string{join(groups[0]), join(groups[1])}, true
			}
			return nil, false
		},
	}
}

func expandGridArea(fields []field, _ string) ([]string, bool) {
	groups := splitBy(fields, "/")
	if len(groups) == 0 || len(groups) > 4 {
		return nil, false
	}
	lines, idents := make([]string, 4), make([]bool, 4)
	for i, g := range groups {
		lines[i], idents[i] = join(g), isCustomIdent(g)
	}
	derive := func(i, from int) {
		switch {
		case lines[i] != "":
		case idents[from]:
			lines[i], idents[i] = lines[from], true
		default:
			lines[i] = "auto"
		}
	}
	derive(1, 0)
	derive(2, 0)
	derive(3, 1)
	return lines, true
}

func expandColumns(fields []field, _ string) ([]string, bool) {
	if hasSeparator(fields) || len(fields) > 2 {
		return nil, false
	}
	var width, count string
	for _, f := range fields {
		switch {
		case f.is("auto"):
			// fills whichever stays unset
		case count == "" && isInteger(f.text):
			count = f.text
		case width == "" && isLength(f.text):
			width = f.text
		default:
			return nil, false
		}
	}
	return []string{or(width, "auto"), or(count, "auto")}, true
}

func isImage(s string) bool {
	ls := strings.ToLower(s)
	return strings.HasPrefix(ls, "url(") || strings.Contains(ls, "gradient(") || strings.HasPrefix(ls, "image-set(")
}

func expandListStyle(fields []field, _ string) ([]string, bool) {
	if hasSeparator(fields) || len(fields) > 3 {
		return nil, false
	}
	var typ, position, image string
	nones := 0
	for _, f := range fields {
		lt := strings.ToLower(f.text)
		switch {
		case lt == "none":
			nones++
		case position == "" && (lt == "inside" || lt == "outside"):
			position = f.text
		case image == "" && isImage(f.text):
			image = f.text
		case typ == "":
			typ = f.text
		default:
			return nil, false
		}
	}
	for ; nones > 0; nones-- {
		switch {
		case typ == "":
			typ = "none"
		case image == "":
			image = "none"
		default:
			return nil, false
		}
	}
	return []string{or(typ, "disc"), or(position, "outside"), or(image, "none")}, true
}

var (
	decorationLines  = map[string]bool{"none": true, "underline": true, "overline": true, "line-through": true, "blink": true}
	decorationStyles = map[string]bool{"solid": true, "double": true, "dotted": true, "dashed": true, "wavy": true}
)

func expandTextDecoration(fields []field, _ string) ([]string, bool) {
	if hasSeparator(fields) {
		return nil, false
	}
	var lines []string
	var thickness, style, color string
	for _, f := range fields {
		lt := strings.ToLower(f.text)
		switch {
		case decorationLines[lt]:
			lines = append(lines, f.text)
		case style == "" && decorationStyles[lt]:
			style = f.text
		case thickness == "" && (lt == "from-font" || isLength(f.text)):
			thickness = f.text
		case color == "":
			color = f.text
		default:
			return nil, false
		}
	}
	return []string{or(strings.Join(lines, " "), "none"), or(thickness, "auto"), or(style, "solid"), or(color, "currentcolor")}, true
}

var (
	bgRepeats     = map[string]bool{"repeat": true, "repeat-x": true, "repeat-y": true, "no-repeat": true, "space": true, "round": true}
	bgAttachments = map[string]bool{"scroll": true, "fixed": true, "local": true}
	bgBoxes       = map[string]bool{"border-box": true, "padding-box": true, "content-box": true}
	bgPositions   = map[string]bool{"left": true, "right": true, "top": true, "bottom": true, "center": true}
)

func isPosition(s string) bool {
	return bgPositions[strings.ToLower(s)] || isLength(s)
}

// splitPosition converts 1, 2 or 4 value position into horizontal and vertical
// components.
func splitPosition(v []string) (x, y string, ok bool) {
	lower := func(i int) string { return strings.ToLower(v[i]) }
	switch len(v) {
	case 1:
		switch lower(0) {
		case "top", "bottom":
			return "center", v[0], true
		}
		return v[0], "center", true
	case 2:
		if lower(0) == "top" || lower(0) == "bottom" || lower(1) == "left" || lower(1) == "right" {
			return v[1], v[0], true
		}
		return v[0], v[1], true
	case 4:
		if !bgPositions[lower(0)] || !bgPositions[lower(2)] {
			return "", "", false
		}
		if lower(0) == "top" || lower(0) == "bottom" {
			return v[2] + " " + v[3], v[0] + " " + v[1], true
		}
		return v[0] + " " + v[1], v[2] + " " + v[3], true
	}
	return "", "", false
}

func expandBackground(fields []field, _ string) ([]string, bool) {
	for _, f := range fields {
		if f.text == "," {
			// multiple layers
			return nil, false
		}
	}
	var (
		color, image, attachment string
		repeat, position, size   []string
		boxes                    []string
		afterSlash               bool
	)
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		lt := strings.ToLower(f.text)
		switch {
		case f.text == "/":
			if len(position) == 0 || afterSlash {
				return nil, false
			}
			afterSlash = true
		case afterSlash && len(size) < 2 && (lt == "auto" || lt == "cover" || lt == "contain" || isLength(f.text)):
			size = append(size, f.text)
		case afterSlash && len(size) == 0:
			return nil, false
		case !afterSlash && len(position) < 4 && isPosition(f.text) && (len(position) == 0 || i > 0 && isPosition(fields[i-1].text)):
			position = append(position, f.text)
		case len(repeat) < 2 && bgRepeats[lt] && (len(repeat) == 0 || bgRepeats[strings.ToLower(fields[i-1].text)]):
			repeat = append(repeat, f.text)
		case attachment == "" && bgAttachments[lt]:
			attachment = f.text
		case len(boxes) < 2 && (bgBoxes[lt] || len(boxes) == 1 && lt == "text"):
			boxes = append(boxes, f.text)
		case image == "" && (lt == "none" || isImage(f.text)):
			image = f.text
		case color == "":
			color = f.text
		default:
			return nil, false
		}
		if afterSlash && f.text != "/" && i+1 < len(fields) && len(size) > 0 && !isSize(fields[i+1].text) {
			afterSlash = false
		}
	}

	x, y := "0%", "0%"
	if len(position) > 0 {
		var ok bool
		if x, y, ok = splitPosition(position); !ok {
			return nil, false
		}
	}
	origin, clip := "padding-box", "border-box"
	switch len(boxes) {
	case 1:
		origin, clip = boxes[0], boxes[0]
	case 2:
		origin, clip = boxes[0], boxes[1]
	}
	return []string{
		or(color, "transparent"),
		or(image, "none"),
		or(strings.Join(repeat, " "), "repeat"),
		or(attachment, "scroll"),
		x, y,
		or(strings.Join(size, " "), "auto"),
		origin, clip,
	}, true
}

func isSize(s string) bool {
	ls := strings.ToLower(s)
	return ls == "auto" || ls == "cover" || ls == "contain" || isLength(s)
}

var (
	systemFonts  = map[string]bool{"caption": true, "icon": true, "menu": true, "message-box": true, "small-caption": true, "status-bar": true}
	fontStyles   = map[string]bool{"italic": true, "oblique": true}
	fontWeights  = map[string]bool{"bold": true, "bolder": true, "lighter": true}
	fontStretchs = map[string]bool{
		"ultra-condensed": true, "extra-condensed": true, "condensed": true, "semi-condensed": true,
		"semi-expanded": true, "expanded": true, "extra-expanded": true, "ultra-expanded": true,
	}
	fontSizes = map[string]bool{
		"xx-small": true, "x-small": true, "small": true, "medium": true, "large": true, "x-large": true,
		"xx-large": true, "xxx-large": true, "larger": true, "smaller": true,
	}
)

// expandFont handles [style || variant || weight || stretch]? size [/ line-height]? family.
func expandFont(fields []field, value string) ([]string, bool) {
	if len(fields) == 1 && systemFonts[strings.ToLower(fields[0].text)] {
		return nil, false
	}

	var style, variant, weight, stretch, size, lineHeight string
	normals := 0
	i := 0
prefix:
	for ; i < len(fields); i++ {
		f := fields[i]
		lt := strings.ToLower(f.text)
		switch {
		case lt == "normal":
			normals++
		case style == "" && fontStyles[lt]:
			style = f.text
		case variant == "" && lt == "small-caps":
			variant = f.text
		case weight == "" && (fontWeights[lt] || isInteger(f.text) && len(f.text) == 3):
			weight = f.text
		case stretch == "" && fontStretchs[lt]:
			stretch = f.text
		default:
			break prefix
		}
	}
	if normals+boolCount(style, variant, weight, stretch) > 4 {
		return nil, false
	}

	if i >= len(fields) || !(fontSizes[strings.ToLower(fields[i].text)] || isLength(fields[i].text)) {
		return nil, false
	}
	size = fields[i].text
	i++
	if i < len(fields) && fields[i].text == "/" {
		if i+1 >= len(fields) || fields[i+1].separator() {
			return nil, false
		}
		lineHeight = fields[i+1].text
		i += 2
	}
	if i >= len(fields) || fields[i].separator() {
		return nil, false
	}
	family := strings.TrimSpace(value[fields[i].pos:])

	return []string{
		or(style, "normal"), or(variant, "normal"), or(weight, "normal"), or(stretch, "normal"),
		size, or(lineHeight, "normal"), family,
	}, true
}

func boolCount(values ...string) int {
	n := 0
	for _, v := range values {
		if v != "" {
			n++
		}
	}
	return n
}
