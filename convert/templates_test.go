package convert

import (
	"testing"

	"twc/config"
)

var sampleValues = Values{
	Name:        "landing page",
	Stylesheet:  "site",
	Title:       "Welcome Home",
	RunID:       "0190a000-0000-7000-8000-000000000001",
	Breakpoints: []string{"base", "md", "lg"},
}

func TestExpandTemplate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		want     string
	}{
		{name: "simple text", template: "converted", want: "converted"},
		{name: "name", template: "{{ .Name }}.tw", want: "landing page.tw"},
		{name: "stylesheet", template: "{{ .Name }}-{{ .Stylesheet }}", want: "landing page-site"},
		{name: "title with sprig", template: "{{ .Title | lower | replace \" \" \"_\" }}", want: "welcome_home"},
		{name: "breakpoints", template: "{{ join \"+\" .Breakpoints }}", want: "base+md+lg"},
		{name: "run id", template: "{{ .RunID | trunc 8 }}", want: "0190a000"},
		{name: "context", template: "{{ .Context }}", want: string(config.OutputNameTemplateFieldName)},
		{name: "subdirectories", template: "{{ .Stylesheet }}/{{ .Name }}", want: "site/landing page"},
		{name: "default when empty", template: "{{ .Title | default \"untitled\" }}", want: "Welcome Home"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandTemplate(config.OutputNameTemplateFieldName, tt.template, sampleValues)
			if err != nil {
				t.Fatalf("expandTemplate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("expandTemplate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExpandTemplate_Errors(t *testing.T) {
	if _, err := expandTemplate(config.OutputNameTemplateFieldName, "{{ .Name ", sampleValues); err == nil {
		t.Error("expected parse error")
	}
	if _, err := expandTemplate(config.OutputNameTemplateFieldName, "{{ .Author }}", sampleValues); err == nil {
		t.Error("expected execution error for unknown field")
	}
}
