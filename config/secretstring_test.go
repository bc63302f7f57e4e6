package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	yaml "gopkg.in/yaml.v3"
)

func TestSecretString_Marshal(t *testing.T) {
	tests := []struct {
		name     string
		input    SecretString
		wantJSON string
		wantYAML string
	}{
		{name: "empty", input: "", wantJSON: "null", wantYAML: "null"},
		{name: "token url", input: "wss://chrome.example.com?token=abc", wantJSON: `"` + SecretStringValue + `"`, wantYAML: SecretStringValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			enc := json.NewEncoder(&buf)
			enc.SetEscapeHTML(false)
			if err := enc.Encode(tt.input); err != nil {
				t.Fatalf("json encode error = %v", err)
			}
			if got := strings.TrimSpace(buf.String()); got != tt.wantJSON {
				t.Errorf("json encode = %s, want %s", got, tt.wantJSON)
			}

			// default marshaling escapes angle brackets
			got, err := json.Marshal(tt.input)
			if err != nil {
				t.Fatalf("json.Marshal() error = %v", err)
			}
			if strings.Contains(string(got), "token") {
				t.Errorf("json.Marshal() leaks value: %s", got)
			}
			var back *string
			if err := json.Unmarshal(got, &back); err != nil {
				t.Fatalf("json.Unmarshal() error = %v", err)
			}
			if tt.input != "" && (back == nil || *back != SecretStringValue) {
				t.Errorf("json.Marshal() = %s, want %s", got, tt.wantJSON)
			}

			out, err := yaml.Marshal(tt.input)
			if err != nil {
				t.Fatalf("yaml.Marshal() error = %v", err)
			}
			if strings.TrimSpace(string(out)) != tt.wantYAML {
				t.Errorf("yaml.Marshal() = %q, want %q", out, tt.wantYAML)
			}
		})
	}
}

func TestSecretString_NotPrinted(t *testing.T) {
	s := SecretString("wss://chrome.example.com?token=abc")
	if got := fmt.Sprintf("%v", s); strings.Contains(got, "token") {
		t.Errorf("formatted secret leaks value: %s", got)
	}
	if s.Reveal() != "wss://chrome.example.com?token=abc" {
		t.Errorf("Reveal() = %q", s.Reveal())
	}
}

func TestSecretString_InConfigDump(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	cfg.Oracle.RemoteURL = "ws://127.0.0.1:9222/devtools/browser/secret-id"

	data, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	if strings.Contains(string(data), "secret-id") {
		t.Errorf("configuration dump leaks remote url:\n%s", data)
	}
}
