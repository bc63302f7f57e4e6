package convert

import (
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"twc/config"
	"twc/state"
)

func setupTestEnvForOutputPath(t *testing.T, transliterate bool, template string) *state.LocalEnv {
	t.Helper()
	logger := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.Document.FileNameTransliterate = transliterate
	cfg.Document.OutputNameTemplate = template
	return &state.LocalEnv{Log: logger, Cfg: cfg}
}

func TestBuildOutputPath(t *testing.T) {
	out := filepath.FromSlash("/output")

	tests := []struct {
		name          string
		template      string
		transliterate bool
		want          string
	}{
		{name: "no template", want: filepath.Join(out, "landing page.tw.html")},
		{name: "no template transliterated", transliterate: true, want: filepath.Join(out, "landing-page-tw.html")},
		{name: "default template", template: "{{ .Name }}.tw", want: filepath.Join(out, "landing page.tw.html")},
		{name: "subdirectories", template: "{{ .Stylesheet }}/{{ .Title }}", want: filepath.Join(out, "site", "Welcome Home.html")},
		{name: "subdirectories transliterated", template: "{{ .Stylesheet }}/{{ .Title }}", transliterate: true, want: filepath.Join(out, "site", "welcome-home.html")},
		{name: "parent directory dropped", template: "../../{{ .Stylesheet }}", want: filepath.Join(out, "site.html")},
		{name: "broken template", template: "{{ .Nope }}", want: filepath.Join(out, "landing page.tw.html")},
		{name: "empty expansion", template: "{{ \"\" }}", want: filepath.Join(out, "landing page.tw.html")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnvForOutputPath(t, tt.transliterate, tt.template)
			if got := buildOutputPath(sampleValues, out, env); got != tt.want {
				t.Errorf("buildOutputPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{path: "file", want: []string{"file"}},
		{path: filepath.Join("a", "b", "c"), want: []string{"a", "b", "c"}},
		{path: filepath.Join("a", "b") + string(filepath.Separator), want: []string{"a", "b"}},
		{path: filepath.FromSlash("/abs/file"), want: []string{"abs", "file"}},
		{path: filepath.FromSlash("./a/../b"), want: []string{"a", "b"}},
		{path: "", want: []string{}},
	}
	for _, tt := range tests {
		if got := splitPath(tt.path); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestCleanPathSegment(t *testing.T) {
	env := setupTestEnvForOutputPath(t, false, "")
	if got := cleanPathSegment("  ..hidden  ", env); got != "hidden" {
		t.Errorf("cleanPathSegment() = %q", got)
	}
	if got := cleanPathSegment("", env); got != "_bad_file_name_" {
		t.Errorf("cleanPathSegment() = %q", got)
	}
	env.Cfg.Document.FileNameTransliterate = true
	if got := cleanPathSegment("Привет мир", env); got != "privet-mir" {
		t.Errorf("cleanPathSegment() = %q", got)
	}
}
