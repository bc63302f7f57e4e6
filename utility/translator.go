// Package utility turns attributed declarations into utility class strings.
package utility

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"twc/config"
	"twc/css"
)

// Translation is translator answer for single declaration block. Unmatched
// lists properties translator could not express, assembler falls back for
// them.
type Translation struct {
	OK        bool     `json:"success"`
	Classes   string   `json:"classes"`
	Unmatched []string `json:"unmatched,omitempty"`
}

// Translator converts declaration block ("p: v; p: v;") into utility classes.
type Translator interface {
	Translate(ctx context.Context, block string) (Translation, error)
}

// NewTranslator returns external translator when command is configured and
// builtin keyword translator otherwise.
func NewTranslator(cfg *config.TranslatorConfig, log *zap.Logger) Translator {
	if cfg.Command != "" {
		return NewExec(cfg, log)
	}
	return Builtin{}
}

// Builtin translates keyword valued properties using fixed table.
type Builtin struct{}

func (Builtin) Translate(ctx context.Context, block string) (Translation, error) {
	if err := ctx.Err(); err != nil {
		return Translation{}, err
	}
	var (
		classes   []string
		unmatched []string
	)
	for _, d := range css.SplitDeclarations(block) {
		if cls, ok := keyword(d.Property, d.Value); ok {
			classes = append(classes, cls)
			continue
		}
		unmatched = append(unmatched, d.Property)
	}
	return Translation{
		OK:        len(classes) > 0,
		Classes:   strings.Join(classes, " "),
		Unmatched: unmatched,
	}, nil
}

func keyword(property, value string) (string, bool) {
	if values, ok := keywords[property]; ok {
		if cls, ok := values[strings.ToLower(value)]; ok {
			return cls, true
		}
	}
	if value == "auto" {
		if prefix, ok := autoPrefixes[property]; ok {
			return prefix + "-auto", true
		}
	}
	return "", false
}

var autoPrefixes = map[string]string{
	"margin-top":    "mt",
	"margin-right":  "mr",
	"margin-bottom": "mb",
	"margin-left":   "ml",
	"width":         "w",
	"height":        "h",
	"flex-basis":    "basis",
}

var keywords = map[string]map[string]string{
	"display": {
		"block":        "block",
		"inline-block": "inline-block",
		"inline":       "inline",
		"flex":         "flex",
		"inline-flex":  "inline-flex",
		"grid":         "grid",
		"inline-grid":  "inline-grid",
		"table":        "table",
		"table-row":    "table-row",
		"table-cell":   "table-cell",
		"contents":     "contents",
		"flow-root":    "flow-root",
		"list-item":    "list-item",
		"none":         "hidden",
	},
	"position": {
		"static":   "static",
		"fixed":    "fixed",
		"absolute": "absolute",
		"relative": "relative",
		"sticky":   "sticky",
	},
	"visibility": {
		"visible":  "visible",
		"hidden":   "invisible",
		"collapse": "collapse",
	},
	"text-align": {
		"left":    "text-left",
		"center":  "text-center",
		"right":   "text-right",
		"justify": "text-justify",
		"start":   "text-start",
		"end":     "text-end",
	},
	"font-style": {
		"italic": "italic",
		"normal": "not-italic",
	},
	"font-weight": {
		"100":    "font-thin",
		"200":    "font-extralight",
		"300":    "font-light",
		"400":    "font-normal",
		"normal": "font-normal",
		"500":    "font-medium",
		"600":    "font-semibold",
		"700":    "font-bold",
		"bold":   "font-bold",
		"800":    "font-extrabold",
		"900":    "font-black",
	},
	"text-transform": {
		"uppercase":  "uppercase",
		"lowercase":  "lowercase",
		"capitalize": "capitalize",
		"none":       "normal-case",
	},
	"white-space": {
		"normal":       "whitespace-normal",
		"nowrap":       "whitespace-nowrap",
		"pre":          "whitespace-pre",
		"pre-line":     "whitespace-pre-line",
		"pre-wrap":     "whitespace-pre-wrap",
		"break-spaces": "whitespace-break-spaces",
	},
	"flex-direction": {
		"row":            "flex-row",
		"row-reverse":    "flex-row-reverse",
		"column":         "flex-col",
		"column-reverse": "flex-col-reverse",
	},
	"flex-wrap": {
		"wrap":         "flex-wrap",
		"wrap-reverse": "flex-wrap-reverse",
		"nowrap":       "flex-nowrap",
	},
	"justify-content": {
		"flex-start":    "justify-start",
		"start":         "justify-start",
		"flex-end":      "justify-end",
		"end":           "justify-end",
		"center":        "justify-center",
		"space-between": "justify-between",
		"space-around":  "justify-around",
		"space-evenly":  "justify-evenly",
	},
	"align-items": {
		"flex-start": "items-start",
		"start":      "items-start",
		"flex-end":   "items-end",
		"end":        "items-end",
		"center":     "items-center",
		"baseline":   "items-baseline",
		"stretch":    "items-stretch",
	},
	"box-sizing": {
		"border-box":  "box-border",
		"content-box": "box-content",
	},
	"float": {
		"left":  "float-left",
		"right": "float-right",
		"none":  "float-none",
	},
	"clear": {
		"left":  "clear-left",
		"right": "clear-right",
		"both":  "clear-both",
		"none":  "clear-none",
	},
	"overflow-x": {
		"auto":    "overflow-x-auto",
		"hidden":  "overflow-x-hidden",
		"clip":    "overflow-x-clip",
		"visible": "overflow-x-visible",
		"scroll":  "overflow-x-scroll",
	},
	"overflow-y": {
		"auto":    "overflow-y-auto",
		"hidden":  "overflow-y-hidden",
		"clip":    "overflow-y-clip",
		"visible": "overflow-y-visible",
		"scroll":  "overflow-y-scroll",
	},
	"text-decoration-line": {
		"underline":    "underline",
		"overline":     "overline",
		"line-through": "line-through",
		"none":         "no-underline",
	},
	"list-style-type": {
		"none":    "list-none",
		"disc":    "list-disc",
		"decimal": "list-decimal",
	},
	"cursor": {
		"auto":        "cursor-auto",
		"default":     "cursor-default",
		"pointer":     "cursor-pointer",
		"text":        "cursor-text",
		"move":        "cursor-move",
		"not-allowed": "cursor-not-allowed",
	},
}
