package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	DocumentConfig struct {
		Root                  string `yaml:"root" validate:"required"`
		IdentityAttribute     string `yaml:"identity_attribute" validate:"required"`
		KeepIdentities        bool   `yaml:"keep_identities"`
		OutputNameTemplate    string `yaml:"output_name_template"`
		FileNameTransliterate bool   `yaml:"file_name_transliterate"`
	}

	NormalizerConfig struct {
		ExpandShorthands bool `yaml:"expand_shorthands"`
	}

	OracleConfig struct {
		RemoteURL         SecretString  `yaml:"remote_url,omitempty"`
		BinPath           string        `yaml:"bin_path,omitempty" sanitize:"path_clean"`
		Headless          bool          `yaml:"headless"`
		Stealth           bool          `yaml:"stealth"`
		NavigationTimeout time.Duration `yaml:"navigation_timeout" validate:"gt=0"`
		QueryTimeout      time.Duration `yaml:"query_timeout" validate:"gt=0"`
		Workers           int           `yaml:"workers" validate:"min=1,max=64"`
	}

	BreakpointConfig struct {
		Name      string `yaml:"name" validate:"required"`
		Width     int    `yaml:"width" validate:"min=1"`
		Height    int    `yaml:"height" validate:"min=1"`
		MinWidth  int    `yaml:"min_width" validate:"gte=0"`
		Qualifier string `yaml:"qualifier,omitempty"`
	}

	MergeConfig struct {
		CollapseRedundant bool `yaml:"collapse_redundant"`
	}

	TranslatorConfig struct {
		Command string        `yaml:"command,omitempty"`
		Args    []string      `yaml:"args,omitempty"`
		Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
	}

	ArtifactsConfig struct {
		Directory string `yaml:"directory,omitempty" sanitize:"path_clean"`
		Database  string `yaml:"database,omitempty" sanitize:"path_clean,assure_dir_exists_for_file" validate:"omitempty,filepath"`
	}

	Config struct {
		Version     int                `yaml:"version" validate:"eq=1"`
		Document    DocumentConfig     `yaml:"document"`
		Normalizer  NormalizerConfig   `yaml:"normalizer"`
		Oracle      OracleConfig       `yaml:"oracle"`
		Breakpoints []BreakpointConfig `yaml:"breakpoints" validate:"required,min=1,dive"`
		Merge       MergeConfig        `yaml:"merge"`
		Translator  TranslatorConfig   `yaml:"translator"`
		Artifacts   ArtifactsConfig    `yaml:"artifacts"`
		Logging     LoggingConfig      `yaml:"logging"`
		Reporting   ReporterConfig     `yaml:"reporting"`
	}
)

const (
	// NOTE: must match yaml field name above
	OutputNameTemplateFieldName TemplateFieldName = "output_name_template"
)

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(OutputNameTemplateFieldName)),
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
		if err := checkBreakpoints(cfg.Breakpoints); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// checkBreakpoints enforces what struct tags cannot express: unique names and a
// single lowest min_width which becomes the default (unqualified) breakpoint.
func checkBreakpoints(bps []BreakpointConfig) error {
	names := make(map[string]struct{}, len(bps))
	lowest, count := -1, 0
	for _, bp := range bps {
		if _, exists := names[bp.Name]; exists {
			return fmt.Errorf("duplicate breakpoint name %q", bp.Name)
		}
		names[bp.Name] = struct{}{}
		switch {
		case lowest < 0 || bp.MinWidth < lowest:
			lowest, count = bp.MinWidth, 1
		case bp.MinWidth == lowest:
			count++
		}
	}
	if count > 1 {
		return fmt.Errorf("ambiguous default breakpoint: %d breakpoints share min_width %d", count, lowest)
	}
	return nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration tamplate to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	// breakpoints are a list, yaml would merge elements positionally
	defaults := cfg.Breakpoints
	cfg.Breakpoints = nil
	cfg, err = unmarshalConfig(data, cfg, false)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	if len(cfg.Breakpoints) == 0 {
		cfg.Breakpoints = defaults
	}
	if err := gencfg.Sanitize(cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	if err := gencfg.Validate(cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	if err := checkBreakpoints(cfg.Breakpoints); err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
