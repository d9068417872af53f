package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"maps"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"

	"docx2html/stylemap"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	ImagesConfig struct {
		AssetsDir string `yaml:"assets_dir" sanitize:"path_clean"`
		MaxWidth  int    `yaml:"max_width" validate:"gte=0"`
	}

	JSONConfig struct {
		Indent string `yaml:"indent"`
	}

	DocumentConfig struct {
		OutputNameTemplate    string                              `yaml:"output_name_template"`
		FileNameTransliterate bool                                `yaml:"file_name_transliterate"`
		Title                 string                              `yaml:"title" validate:"required"`
		UseMetadataTitle      bool                                `yaml:"use_metadata_title"`
		Language              string                              `yaml:"language" validate:"required"`
		StylesheetPath        string                              `yaml:"stylesheet_path" sanitize:"assure_file_access"`
		Fragment              bool                                `yaml:"fragment"`
		StyleMapPath          string                              `yaml:"style_map" sanitize:"assure_file_access"`
		Styles                map[string]stylemap.Entry           `yaml:"styles"`
		Rules                 map[stylemap.Kind]map[string]string `yaml:"rules"`
		Images                ImagesConfig                        `yaml:"images"`
		JSON                  JSONConfig                          `yaml:"json"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Document  DocumentConfig `yaml:"document"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

const (
	// NOTE: must match yaml field name above, alternative is to use struct
	// field name and reflection which I want to avoid for now
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
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to provide
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

	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// StyleMap assembles style map for conversion: styles defined in
// configuration come first, entries from the style map file (if any) override
// them.
func (conf *DocumentConfig) StyleMap() (*stylemap.Map, error) {
	m := stylemap.New(maps.Clone(conf.Styles))
	if len(conf.StyleMapPath) == 0 {
		return m, nil
	}
	loaded, err := stylemap.Load(conf.StyleMapPath)
	if err != nil {
		return nil, err
	}
	m.Merge(loaded)
	return m, nil
}

// TransformationRules compiles declarative rules from configuration.
func (conf *DocumentConfig) TransformationRules() (*stylemap.Rules, error) {
	rules := stylemap.NewRules()
	for kind, byStyle := range conf.Rules {
		for id, text := range byStyle {
			if err := rules.RegisterTemplate(kind, id, text); err != nil {
				return nil, err
			}
		}
	}
	return rules, nil
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
