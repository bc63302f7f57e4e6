package oracle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap/zaptest"

	"twc/config"
	"twc/style"
	"twc/utility"
)

func TestIdentity(t *testing.T) {
	tests := []struct {
		name    string
		attrs   []string
		want    style.Identity
		wantErr bool
	}{
		{"found", []string{"class", "box", "data-twc-id", "12"}, 12, false},
		{"missing", []string{"class", "box"}, 0, true},
		{"odd list", []string{"class"}, 0, true},
		{"not a number", []string{"data-twc-id", "x"}, 0, true},
		{"not positive", []string{"data-twc-id", "0"}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := identity(tt.attrs, "data-twc-id")
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestComputedRecord(t *testing.T) {
	rec, err := computedRecord(&proto.CSSGetComputedStyleForNodeResult{
		ComputedStyle: []*proto.CSSCSSComputedStyleProperty{
			{Name: "display", Value: "block"},
			{Name: "margin-top", Value: "0px"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if want := (style.Record{"display": "block", "margin-top": "0px"}); !reflect.DeepEqual(rec, want) {
		t.Errorf("got %v, want %v", rec, want)
	}

	if _, err := computedRecord(&proto.CSSGetComputedStyleForNodeResult{
		ComputedStyle: []*proto.CSSCSSComputedStyleProperty{nil},
	}); err == nil {
		t.Error("expected error for malformed entry")
	}
}

func TestMatchedDeclarations(t *testing.T) {
	ruleRange := &proto.CSSSourceRange{StartLine: 1}
	rule := func(origin proto.CSSStyleSheetOrigin, selector string, props ...*proto.CSSCSSProperty) *proto.CSSRuleMatch {
		return &proto.CSSRuleMatch{Rule: &proto.CSSCSSRule{
			Origin:       origin,
			SelectorList: &proto.CSSSelectorList{Text: selector},
			Style:        &proto.CSSCSSStyle{CSSProperties: props, Range: ruleRange},
		}}
	}
	prop := func(name, value string) *proto.CSSCSSProperty {
		return &proto.CSSCSSProperty{Name: name, Value: value, Range: ruleRange}
	}

	res := &proto.CSSGetMatchedStylesForNodeResult{
		MatchedCSSRules: []*proto.CSSRuleMatch{
			rule(proto.CSSStyleSheetOriginUserAgent, "div", prop("display", "block")),
			rule(proto.CSSStyleSheetOriginRegular, ".box",
				prop("margin-top", "10px"),
				&proto.CSSCSSProperty{Name: "margin-right", Value: "5px"}, // synthesized longhand
				&proto.CSSCSSProperty{Name: "color", Value: "red", Range: ruleRange, Disabled: true},
			),
			rule(proto.CSSStyleSheetOriginRegular, "#a",
				&proto.CSSCSSProperty{Name: "margin-top", Value: "1px", Important: true, Range: ruleRange}),
		},
		InlineStyle: &proto.CSSCSSStyle{CSSProperties: []*proto.CSSCSSProperty{prop("width", "10vw")}, Range: ruleRange},
	}

	got, err := matchedDeclarations(res)
	if err != nil {
		t.Fatal(err)
	}
	want := []style.Declaration{
		{Property: "margin-top", Value: "10px", Rank: 0, Source: ".box"},
		{Property: "margin-top", Value: "1px", Rank: 1, Important: true, Source: "#a"},
		{Property: "width", Value: "10vw", Rank: 2, Source: "style"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v\nwant %+v", got, want)
	}
}

func TestMatchedDeclarations_VerbatimShorthands(t *testing.T) {
	ruleRange := &proto.CSSSourceRange{StartLine: 1}
	synthesized := func(name, value string) *proto.CSSCSSProperty {
		return &proto.CSSCSSProperty{Name: name, Value: value}
	}
	res := &proto.CSSGetMatchedStylesForNodeResult{
		MatchedCSSRules: []*proto.CSSRuleMatch{
			{Rule: &proto.CSSCSSRule{
				Origin:       proto.CSSStyleSheetOriginRegular,
				SelectorList: &proto.CSSSelectorList{Text: ".row"},
				Style: &proto.CSSCSSStyle{Range: ruleRange, CSSProperties: []*proto.CSSCSSProperty{
					{Name: "flex", Value: "1 1 0", Range: ruleRange},
					synthesized("flex-grow", "1"),
					synthesized("flex-shrink", "1"),
					synthesized("flex-basis", "0px"),
					{Name: "margin", Value: "var(--m)", Important: true, Range: ruleRange},
					synthesized("margin-top", "4px"),
					synthesized("margin-left", "4px"),
					{Name: "transition", Value: "opacity 1s", Range: ruleRange},
					synthesized("transition-duration", "1s"),
					{Name: "width", Value: "10px", Range: ruleRange},
					synthesized("height", "10px"),
				}},
			}},
		},
	}

	decls, err := matchedDeclarations(res)
	if err != nil {
		t.Fatal(err)
	}
	changed := []string{"flex-basis", "flex-grow", "flex-shrink", "height", "margin-left", "margin-top", "transition-duration"}
	attributed := style.Resolve(changed, decls)
	want := []style.Attributed{
		{Property: "flex-grow", Value: "1"},
		{Property: "flex-shrink", Value: "1"},
		{Property: "flex-basis", Value: "0px"},
		{Property: "margin-top", Value: "4px"},
		{Property: "margin-left", Value: "4px"},
		{Property: "transition-duration", Value: "1s"},
	}
	if !reflect.DeepEqual(attributed, want) {
		t.Fatalf("got %+v\nwant %+v", attributed, want)
	}
	for _, d := range decls {
		if d.Property == "margin-top" && !d.Important {
			t.Error("longhand must inherit importance of its shorthand")
		}
	}

	cls, err := utility.NewAssembler(zaptest.NewLogger(t), utility.Builtin{}, 1).Element(context.Background(), "md:", attributed)
	if err != nil {
		t.Fatal(err)
	}
	if want := "md:grow-[1] md:shrink-[1] md:basis-[0px] md:mt-[4px] md:ml-[4px] md:duration-[1s]"; cls != want {
		t.Errorf("classes = %q, want %q", cls, want)
	}
}

func TestMatchedDeclarations_Malformed(t *testing.T) {
	for name, res := range map[string]*proto.CSSGetMatchedStylesForNodeResult{
		"nil match": {MatchedCSSRules: []*proto.CSSRuleMatch{nil}},
		"no style":  {MatchedCSSRules: []*proto.CSSRuleMatch{{Rule: &proto.CSSCSSRule{Origin: proto.CSSStyleSheetOriginRegular}}}},
		"no name":   {InlineStyle: &proto.CSSCSSStyle{CSSProperties: []*proto.CSSCSSProperty{{Value: "1px"}}}},
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := matchedDeclarations(res); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSession(t *testing.T) {
	s := NewSession()
	release, err := s.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("session must be exclusive, got %v", err)
	}

	release()
	release()
	again, err := s.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	again()
}

const browserPage = `<!DOCTYPE html>
<html><head><style>
.box { margin-top: 10px; margin-right: 5px; }
@media (min-width: 800px) { .box { margin-top: 20px; } }
</style></head>
<body data-twc-id="1"><div class="box" data-twc-id="2" style="width: 50%">x</div></body></html>`

// Requires Chrome, run with TWC_BROWSER_TESTS=1.
func TestChrome(t *testing.T) {
	if os.Getenv("TWC_BROWSER_TESTS") != "1" {
		t.Skip("browser tests are disabled")
	}

	doc := filepath.Join(t.TempDir(), "page.html")
	if err := os.WriteFile(doc, []byte(browserPage), 0644); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	c, err := NewChrome(ctx, &config.OracleConfig{
		Headless:          true,
		NavigationTimeout: 30 * time.Second,
		QueryTimeout:      5 * time.Second,
		Workers:           2,
	}, "data-twc-id", zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })

	url := "file://" + doc
	vp := Viewport{Width: 400, Height: 600}

	if err := c.Load(ctx, url, false); err != nil {
		t.Fatal(err)
	}
	baseline, err := c.Snapshot(ctx, vp)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Load(ctx, url, true); err != nil {
		t.Fatal(err)
	}
	styled, err := c.Snapshot(ctx, vp)
	if err != nil {
		t.Fatal(err)
	}

	changed := style.Diff(baseline, styled)
	for _, prop := range []string{"margin-top", "margin-right", "width"} {
		if !changed.Contains(2, prop) {
			t.Errorf("%s expected to change, changed set %v", prop, changed[2])
		}
	}

	decls, err := c.MatchedDeclarations(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	resolved := style.Resolve([]string{"margin-right", "margin-top", "width"}, decls)
	want := []style.Attributed{
		{Property: "margin-top", Value: "10px", Rank: 0},
		{Property: "margin-right", Value: "5px", Rank: 0},
		{Property: "width", Value: "50%", Rank: 1},
	}
	if !reflect.DeepEqual(resolved, want) {
		t.Errorf("got %+v, want %+v", resolved, want)
	}

	if _, err := c.MatchedDeclarations(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
