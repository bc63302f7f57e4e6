package dom_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"

	"twc/dom"
	"twc/style"
)

const page = `<!DOCTYPE html>
<html>
<head>
  <title>t</title>
  <link rel="stylesheet" href="site.css">
  <link rel="icon" href="favicon.ico">
  <style>.old { color: red }</style>
</head>
<body class="page">
  <div id="a"><p>one</p><p>two <b>bold</b></p></div>
  <section><span style="margin: 1px 2px">x</span></section>
</body>
</html>`

func parse(t *testing.T, src string) *dom.Document {
	t.Helper()
	d, err := dom.Parse(strings.NewReader(src), nil)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func render(t *testing.T, d *dom.Document) string {
	t.Helper()
	data, err := d.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestAssign_PreOrder(t *testing.T) {
	d := parse(t, page)
	n, err := d.Assign("body", "")
	if err != nil {
		t.Fatal(err)
	}
	if n != 7 {
		t.Fatalf("expected 7 elements, got %d", n)
	}

	want := []string{"body.page", "div#a", "p", "p", "b", "section", "span"}
	for i, w := range want {
		if got := d.Describe(style.Identity(i + 1)); got != w {
			t.Errorf("identity %d: got %s, want %s", i+1, got, w)
		}
	}
	if d.Lookup(0) != nil || d.Lookup(8) != nil {
		t.Error("lookup out of range must return nil")
	}
	if got := d.Selector(3); got != `[data-twc-id="3"]` {
		t.Errorf("unexpected selector %s", got)
	}
}

func TestAssign_Stable(t *testing.T) {
	first := parse(t, page)
	if _, err := first.Assign("body", dom.DefaultAttribute); err != nil {
		t.Fatal(err)
	}
	once := render(t, first)

	// assigning again on decorated document must not change anything
	if _, err := first.Assign("body", dom.DefaultAttribute); err != nil {
		t.Fatal(err)
	}
	if twice := render(t, first); twice != once {
		t.Errorf("re-assignment changed document\n%s\n%s", once, twice)
	}

	// independent parse of the decorated output yields the same identities
	second := parse(t, once)
	if _, err := second.Assign("body", dom.DefaultAttribute); err != nil {
		t.Fatal(err)
	}
	if again := render(t, second); again != once {
		t.Errorf("identities are not stable across parses\n%s\n%s", once, again)
	}
}

func TestAssign_StaleIdentitiesReplaced(t *testing.T) {
	d := parse(t, `<html><head><meta data-twc-id="99"></head><body data-twc-id="5"><i data-twc-id="1"></i></body></html>`)
	if _, err := d.Assign("body", ""); err != nil {
		t.Fatal(err)
	}
	out := render(t, d)
	if strings.Contains(out, `"99"`) || strings.Contains(out, `"5"`) {
		t.Errorf("stale identities left: %s", out)
	}
	if !strings.Contains(out, `<body data-twc-id="1">`) || !strings.Contains(out, `<i data-twc-id="2">`) {
		t.Errorf("unexpected numbering: %s", out)
	}
}

func TestAssign_NoRoot(t *testing.T) {
	d := parse(t, page)
	if _, err := d.Assign("main", ""); !errors.Is(err, dom.ErrNoRoot) {
		t.Errorf("expected ErrNoRoot, got %v", err)
	}
}

func TestPrepare(t *testing.T) {
	d := parse(t, page)
	d.Prepare([]byte(".box {\n  margin-top: 1px;\n}\n"), func(block string) string {
		return "margin-top: 1px; margin-right: 2px;"
	})
	if _, err := d.Assign("body", ""); err != nil {
		t.Fatal(err)
	}
	out := render(t, d)

	for _, gone := range []string{"site.css", ".old"} {
		if strings.Contains(out, gone) {
			t.Errorf("%q must be removed", gone)
		}
	}
	for _, want := range []string{
		`favicon.ico`,
		`<style id="twc-authored">`,
		".box {\n  margin-top: 1px;\n}\n</style></head>",
		`style="margin-top: 1px; margin-right: 2px;"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q\n%s", want, out)
		}
	}
}

func TestDecorate(t *testing.T) {
	d := parse(t, page)
	d.Prepare([]byte("p{}"), nil)
	if _, err := d.Assign("body", ""); err != nil {
		t.Fatal(err)
	}
	d.Decorate(map[style.Identity]string{
		1: "page mt-[10px]",
		7: "mr-[2px]",
	}, false)
	out := render(t, d)

	for _, want := range []string{`<body class="page mt-[10px]">`, `<span class="mr-[2px]">x</span>`} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q\n%s", want, out)
		}
	}
	for _, gone := range []string{dom.DefaultAttribute, dom.AuthoredStyleID, "style="} {
		if strings.Contains(out, gone) {
			t.Errorf("%q must be removed\n%s", gone, out)
		}
	}
}

func TestDecorate_KeepIDs(t *testing.T) {
	d := parse(t, page)
	if _, err := d.Assign("body", "data-x"); err != nil {
		t.Fatal(err)
	}
	d.Decorate(nil, true)
	if out := render(t, d); !strings.Contains(out, `data-x="7"`) {
		t.Errorf("identities must be kept\n%s", out)
	}
}

func TestParse_Charset(t *testing.T) {
	src := []byte("<html><head><meta charset=\"windows-1251\"></head><body><p>\xcf\xf0\xe8\xe2\xe5\xf2</p></body></html>")

	d, err := dom.Parse(bytes.NewReader(src), nil)
	if err != nil {
		t.Fatal(err)
	}
	if out := render(t, d); !strings.Contains(out, "Привет") {
		t.Errorf("declared charset not honored: %s", out)
	}

	d, err = dom.Parse(bytes.NewReader([]byte("<p>\xcf\xf0\xe8\xe2\xe5\xf2</p>")), charmap.Windows1251)
	if err != nil {
		t.Fatal(err)
	}
	if out := render(t, d); !strings.Contains(out, "Привет") {
		t.Errorf("forced charset not honored: %s", out)
	}
}

func TestTitle(t *testing.T) {
	if got := parse(t, page).Title(); got != "t" {
		t.Errorf("unexpected title %q", got)
	}
	if got := parse(t, "<html><head><title>\n  Two\n  words </title></head></html>").Title(); got != "Two words" {
		t.Errorf("unexpected title %q", got)
	}
	if got := parse(t, "<p>no title</p>").Title(); got != "" {
		t.Errorf("unexpected title %q", got)
	}
}
