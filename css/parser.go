package css

import (
	"bytes"
	"errors"
	"io"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// maxConsecutiveErrors stops parsing of hopelessly broken input.
const maxConsecutiveErrors = 64

// Parser parses CSS stylesheets into a tree of rules preserving source order.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new CSS parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

// Parse parses CSS text into a Stylesheet. Malformed fragments are skipped and
// reported in Stylesheet.Warnings, parsing never fails.
// The optional source parameter identifies what's being parsed (for debug logging).
func (p *Parser) Parse(data []byte, source ...string) *Stylesheet {
	if len(source) > 0 && source[0] != "" {
		p.log.Debug("Parsing CSS", zap.String("source", source[0]), zap.Int("bytes", len(data)))
	}
	sheet := &Stylesheet{}
	sheet.Nodes = p.parseList(css.NewParser(parse.NewInput(bytes.NewReader(data)), false), sheet)
	return sheet
}

// ParseDeclarations parses bare declaration list as found in style attribute.
func (p *Parser) ParseDeclarations(block string) ([]Declaration, []Warning) {
	sheet := &Stylesheet{}
	nodes := p.parseList(css.NewParser(parse.NewInputString(block), true), sheet)
	return p.declarations(nodes, sheet, "inline style"), sheet.Warnings
}

// SplitDeclarations splits declaration block into separate declarations. Semicolons
// inside strings, functions and parentheses do not terminate declaration.
// Malformed declarations are dropped.
func SplitDeclarations(block string) []Declaration {
	decls, _ := NewParser(nil).ParseDeclarations(block)
	return decls
}

// parseList consumes grammar until the end of current block or input.
func (p *Parser) parseList(cp *css.Parser, sheet *Stylesheet) []Node {
	var (
		nodes    []Node
		failures int
	)
	for {
		gt, _, data := cp.Next()
		if gt != css.ErrorGrammar {
			failures = 0
		}

		switch gt {
		case css.ErrorGrammar:
			err := cp.Err()
			if err == nil || errors.Is(err, io.EOF) {
				return nodes
			}
			p.warn(sheet, "malformed CSS skipped", err.Error()+tokensContext(cp.Values()))
			if failures++; failures > maxConsecutiveErrors {
				p.warn(sheet, "too many consecutive errors, parsing stopped", "")
				return nodes
			}

		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			return nodes

		case css.AtRuleGrammar:
			nodes = append(nodes, Node{AtRule: &AtRule{
				Name:    string(data),
				Prelude: joinTokens(cp.Values(), false),
			}})

		case css.BeginAtRuleGrammar:
			nodes = append(nodes, Node{AtRule: p.parseAtRule(cp, sheet, string(data))})

		case css.BeginRulesetGrammar:
			selector := joinTokens(cp.Values(), true)
			rule := &Rule{Selector: selector}
			rule.Declarations = p.declarations(p.parseList(cp, sheet), sheet, selector)
			nodes = append(nodes, Node{Rule: rule})

		case css.DeclarationGrammar:
			if d, ok := declaration(string(data), cp.Values()); ok {
				nodes = append(nodes, Node{Declaration: &d})
			} else {
				p.warn(sheet, "empty declaration skipped", string(data))
			}

		case css.CustomPropertyGrammar:
			var value string
			if vals := cp.Values(); len(vals) > 0 {
				value = strings.TrimSpace(string(vals[0].Data))
			}
			nodes = append(nodes, Node{Declaration: &Declaration{Property: string(data), Value: value}})

		case css.CommentGrammar, css.TokenGrammar:
			// comments and stray CDO/CDC tokens are dropped
		}
	}
}

// parseAtRule reads block of at-rule. Blocks the tokenizer does not know about
// (@container, @counter-style, @property and others) are collected verbatim and
// parsed again as either rule list or declaration list.
func (p *Parser) parseAtRule(cp *css.Parser, sheet *Stylesheet, name string) *AtRule {
	at := &AtRule{
		Name:     name,
		Prelude:  joinTokens(cp.Values(), false),
		HasBlock: true,
	}

	switch unprefixed(name) {
	case "@font-face", "@page", "@media", "@supports", "@layer", "@document", "@keyframes":
		at.Block = p.parseList(cp, sheet)
		return at
	}

	var raw bytes.Buffer
	for {
		gt, _, data := cp.Next()
		if gt == css.EndAtRuleGrammar || gt == css.ErrorGrammar {
			if err := cp.Err(); gt == css.ErrorGrammar && err != nil && !errors.Is(err, io.EOF) {
				p.warn(sheet, "malformed at-rule block", name)
			}
			break
		}
		raw.Write(data)
	}

	body := raw.Bytes()
	if at.descriptors() || !bytes.ContainsRune(body, '{') {
		at.Block = p.parseList(css.NewParser(parse.NewInput(bytes.NewReader(body)), true), sheet)
	} else {
		at.Block = p.parseList(css.NewParser(parse.NewInput(bytes.NewReader(body)), false), sheet)
	}
	return at
}

// unprefixed strips vendor prefix: "@-webkit-keyframes" becomes "@keyframes".
func unprefixed(name string) string {
	if !strings.HasPrefix(name, "@-") {
		return name
	}
	if i := strings.IndexByte(name[2:], '-'); i >= 0 {
		return "@" + name[i+3:]
	}
	return name
}

// declarations keeps only declarations from parsed block, nested rules are not
// supported inside rule bodies.
func (p *Parser) declarations(nodes []Node, sheet *Stylesheet, owner string) []Declaration {
	decls := make([]Declaration, 0, len(nodes))
	for _, n := range nodes {
		if n.Declaration == nil {
			p.warn(sheet, "nested rule inside declaration block skipped", owner)
			continue
		}
		decls = append(decls, *n.Declaration)
	}
	return decls
}

func (p *Parser) warn(sheet *Stylesheet, msg, context string) {
	w := Warning{Message: msg, Context: strings.TrimSpace(context)}
	sheet.Warnings = append(sheet.Warnings, w)
	p.log.Debug("CSS parse problem", zap.Stringer("warning", w))
}

func tokensContext(tokens []css.Token) string {
	if len(tokens) == 0 {
		return ""
	}
	return " near '" + joinTokens(tokens, false) + "'"
}

// declaration builds declaration from parser values stripping trailing !important.
func declaration(property string, tokens []css.Token) (Declaration, bool) {
	d := Declaration{Property: property}

	end := len(tokens)
	for end > 0 && tokens[end-1].TokenType == css.WhitespaceToken {
		end--
	}
	if end >= 2 &&
		tokens[end-1].TokenType == css.IdentToken && strings.EqualFold(string(tokens[end-1].Data), "important") &&
		tokens[end-2].TokenType == css.DelimToken && string(tokens[end-2].Data) == "!" {
		d.Important = true
		end -= 2
	}
	d.Value = joinTokens(tokens[:end], false)
	return d, d.Value != ""
}

// joinTokens produces canonical text from tokens: whitespace runs become single
// space, combinators in selectors are surrounded by spaces and selector list
// items are separated by ", ". Parser already removed whitespace around
// ',' and '/' in declaration values, "a, b" comes out as "a,b".
func joinTokens(tokens []css.Token, selector bool) string {
	var (
		sb      strings.Builder
		depth   int
		pending bool
	)
	for _, t := range tokens {
		switch t.TokenType {
		case css.WhitespaceToken, css.CommentToken:
			pending = sb.Len() > 0
			continue
		case css.LeftParenthesisToken, css.LeftBracketToken, css.FunctionToken:
			depth++
		case css.RightParenthesisToken, css.RightBracketToken:
			depth--
		}

		if selector && depth == 0 {
			switch s := string(t.Data); {
			case t.TokenType == css.CommaToken:
				sb.WriteString(", ")
				pending = false
				continue
			case t.TokenType == css.DelimToken && (s == ">" || s == "+" || s == "~"):
				sb.WriteString(" " + s + " ")
				pending = false
				continue
			}
		}
		if pending && !strings.HasSuffix(sb.String(), " ") {
			sb.WriteByte(' ')
		}
		pending = false
		sb.Write(t.Data)
	}
	return strings.TrimSpace(sb.String())
}
