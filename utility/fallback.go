package utility

import "strings"

// prefixes maps longhand property to utility prefix used for arbitrary value
// classes.
var prefixes = map[string]string{
	"margin-top":     "mt",
	"margin-right":   "mr",
	"margin-bottom":  "mb",
	"margin-left":    "ml",
	"padding-top":    "pt",
	"padding-right":  "pr",
	"padding-bottom": "pb",
	"padding-left":   "pl",

	"width":      "w",
	"height":     "h",
	"min-width":  "min-w",
	"max-width":  "max-w",
	"min-height": "min-h",
	"max-height": "max-h",

	"top":     "top",
	"right":   "right",
	"bottom":  "bottom",
	"left":    "left",
	"z-index": "z",

	"color":                     "text",
	"font-size":                 "text",
	"font-weight":               "font",
	"font-family":               "font",
	"line-height":               "leading",
	"letter-spacing":            "tracking",
	"text-indent":               "indent",
	"vertical-align":            "align",
	"text-decoration-color":     "decoration",
	"text-decoration-thickness": "decoration",
	"text-underline-offset":     "underline-offset",

	"background-color": "bg",
	"background-image": "bg",
	"background-size":  "bg",
	"opacity":          "opacity",
	"box-shadow":       "shadow",

	"border-top-width":           "border-t",
	"border-right-width":         "border-r",
	"border-bottom-width":        "border-b",
	"border-left-width":          "border-l",
	"border-top-color":           "border-t",
	"border-right-color":         "border-r",
	"border-bottom-color":        "border-b",
	"border-left-color":          "border-l",
	"border-top-left-radius":     "rounded-tl",
	"border-top-right-radius":    "rounded-tr",
	"border-bottom-right-radius": "rounded-br",
	"border-bottom-left-radius":  "rounded-bl",
	"outline-width":              "outline",
	"outline-color":              "outline",
	"outline-offset":             "outline-offset",

	"row-gap":               "gap-y",
	"column-gap":            "gap-x",
	"flex-grow":             "grow",
	"flex-shrink":           "shrink",
	"flex-basis":            "basis",
	"order":                 "order",
	"grid-template-columns": "grid-cols",
	"grid-template-rows":    "grid-rows",
	"grid-column-start":     "col-start",
	"grid-column-end":       "col-end",
	"grid-row-start":        "row-start",
	"grid-row-end":          "row-end",
	"column-count":          "columns",
	"aspect-ratio":          "aspect",

	"scroll-margin-top":    "scroll-mt",
	"scroll-margin-right":  "scroll-mr",
	"scroll-margin-bottom": "scroll-mb",
	"scroll-margin-left":   "scroll-ml",
	"transition-duration":  "duration",
	"content":              "content",
	"fill":                 "fill",
	"stroke":               "stroke",
	"stroke-width":         "stroke",
}

// Fallback synthesizes arbitrary value class for property. Value is copied
// verbatim, spaces become underscores.
func Fallback(property, value string) (string, bool) {
	prefix, ok := prefixes[property]
	if !ok || value == "" {
		return "", false
	}
	return prefix + "-[" + strings.Join(strings.Fields(value), "_") + "]", true
}

// Qualify prefixes every class with breakpoint qualifier.
func Qualify(qualifier, classes string) string {
	fields := strings.Fields(classes)
	if qualifier == "" {
		return strings.Join(fields, " ")
	}
	for i, f := range fields {
		fields[i] = qualifier + f
	}
	return strings.Join(fields, " ")
}
