package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in a repo root.
const FileName = "stmtimport.yaml"

// Config represents the top-level stmtimport.yaml configuration.
type Config struct {
	Logging   LoggingConfig    `yaml:"logging"`
	Output    OutputConfig     `yaml:"output"`
	Git       GitConfig        `yaml:"git"`
	Sources   []SourceConfig   `yaml:"sources,omitempty"`
	Importers []ImporterConfig `yaml:"importers,omitempty"`
}

// LoggingConfig controls the zerolog logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error
	Format string `yaml:"format"` // console or json
}

// OutputConfig controls where and how parsed records are written.
type OutputConfig struct {
	Format string `yaml:"format"` // csv or json
	Dir    string `yaml:"dir"`
}

// GitConfig controls commits made by "stmtimport import --commit".
type GitConfig struct {
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// SourceConfig routes statement files to an importer.
type SourceConfig struct {
	Match    string            `yaml:"match"` // glob on the file name, e.g. "chase*.csv"
	Importer string            `yaml:"importer"`
	Account  string            `yaml:"account,omitempty"`
	Fields   map[string]string `yaml:"fields,omitempty"`
}

// ImporterConfig declares a statement format without writing Go code.
type ImporterConfig struct {
	Name       string            `yaml:"name"`
	Encoding   string            `yaml:"encoding,omitempty"`
	Decimal    string            `yaml:"decimal,omitempty"`   // "." or ","; empty detects per amount
	Thousands  string            `yaml:"thousands,omitempty"` // "," "." "'" or " "
	Processors []ProcessorConfig `yaml:"processors"`
}

// ProcessorConfig declares one line shape. Processors match in list order.
type ProcessorConfig struct {
	Name        string      `yaml:"name"`
	Pattern     string      `yaml:"pattern"`
	DateLayouts []string    `yaml:"date_layouts,omitempty"` // Go time layouts
	Clean       CleanConfig `yaml:"clean,omitempty"`
}

// CleanConfig lists field rewrites applied to captured groups, in the
// order: rename, drop, trim, upper, lower, set, negate_amount.
type CleanConfig struct {
	Rename       map[string]string `yaml:"rename,omitempty"`
	Drop         []string          `yaml:"drop,omitempty"`
	Trim         []string          `yaml:"trim,omitempty"`
	Upper        []string          `yaml:"upper,omitempty"`
	Lower        []string          `yaml:"lower,omitempty"`
	Set          map[string]string `yaml:"set,omitempty"`
	NegateAmount bool              `yaml:"negate_amount,omitempty"`
}

// IsZero reports whether c requests no rewrites.
func (c CleanConfig) IsZero() bool {
	return len(c.Rename) == 0 && len(c.Drop) == 0 && len(c.Trim) == 0 &&
		len(c.Upper) == 0 && len(c.Lower) == 0 && len(c.Set) == 0 && !c.NegateAmount
}

// Load reads a stmtimport.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault reads path, falling back to Default when it does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate checks the parts of the config that do not depend on which
// importers are registered.
func (c *Config) Validate() error {
	var errs []error
	switch c.Output.Format {
	case "", "csv", "json":
	default:
		errs = append(errs, fmt.Errorf("output.format: unknown format %q", c.Output.Format))
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unknown format %q", c.Logging.Format))
	}
	for i, s := range c.Sources {
		if s.Importer == "" {
			errs = append(errs, fmt.Errorf("sources[%d]: importer is required", i))
		}
		if _, err := path.Match(s.Match, ""); err != nil {
			errs = append(errs, fmt.Errorf("sources[%d]: bad match %q: %w", i, s.Match, err))
		}
	}
	seen := make(map[string]bool)
	for i, imp := range c.Importers {
		key := strings.ToLower(imp.Name)
		switch {
		case key == "":
			errs = append(errs, fmt.Errorf("importers[%d]: name is required", i))
		case seen[key]:
			errs = append(errs, fmt.Errorf("importers[%d]: duplicate name %q", i, imp.Name))
		}
		seen[key] = true
		if len(imp.Processors) == 0 {
			errs = append(errs, fmt.Errorf("importers[%d] %s: no processors", i, imp.Name))
		}
		for j, p := range imp.Processors {
			if p.Pattern == "" {
				errs = append(errs, fmt.Errorf("importers[%d].processors[%d]: pattern is required", i, j))
			}
			targets := make(map[string]string, len(p.Clean.Rename))
			for _, from := range slices.Sorted(maps.Keys(p.Clean.Rename)) {
				to := p.Clean.Rename[from]
				if prev, ok := targets[to]; ok {
					errs = append(errs, fmt.Errorf("importers[%d].processors[%d]: clean.rename maps both %q and %q to %q", i, j, prev, from, to))
				}
				targets[to] = from
			}
		}
	}
	return errors.Join(errs...)
}

// SourceFor returns the first source whose glob matches fileName.
func (c *Config) SourceFor(fileName string) (SourceConfig, bool) {
	for _, s := range c.Sources {
		match := s.Match
		if match == "" {
			match = "*"
		}
		if ok, _ := path.Match(strings.ToLower(match), strings.ToLower(fileName)); ok {
			return s, true
		}
	}
	return SourceConfig{}, false
}

// Default returns a Config with sensible defaults for a new project.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Output: OutputConfig{
			Format: "csv",
			Dir:    "exports",
		},
		Git: GitConfig{
			AuthorName:  "stmtimport",
			AuthorEmail: "stmtimport@localhost",
		},
		Sources: []SourceConfig{
			{Match: "chase*.csv", Importer: "chase"},
			{Match: "*.txt", Importer: "generic"},
		},
		Importers: []ImporterConfig{
			{
				Name:      "semicolon-eu",
				Encoding:  "windows-1252",
				Decimal:   ",",
				Thousands: ".",
				Processors: []ProcessorConfig{
					{
						Name:        "booking",
						Pattern:     `^(?P<date>\d{2}\.\d{2}\.\d{4});(?P<description>[^;]*);(?P<amount>[^;]+)(?:;(?P<balance>[^;]*))?$`,
						DateLayouts: []string{"02.01.2006"},
						Clean: CleanConfig{
							Trim: []string{"description"},
							Drop: []string{"balance"},
						},
					},
				},
			},
		},
	}
}
