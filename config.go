package convexgen

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the .convexgen.yaml configuration file.
type Config struct {
	// Functions is the directory holding function modules, relative to the
	// config file.
	Functions string `yaml:"functions,omitempty"`

	// Schema is the schema file. Defaults to <functions>/schema.ts.
	Schema string `yaml:"schema,omitempty"`

	// Fixtures is a file or directory of fixture YAML run by `convexgen test`.
	Fixtures string `yaml:"fixtures,omitempty"`

	Generate GenerateConfig `yaml:"generate,omitempty"`
	Store    StoreConfig    `yaml:"store,omitempty"`
	Log      LogConfig      `yaml:"log,omitempty"`
}

// GenerateConfig holds settings for the generate command.
type GenerateConfig struct {
	// Language target (e.g., "go")
	Lang string `yaml:"lang,omitempty"`

	// Output directory for generated files
	Out string `yaml:"out,omitempty"`

	// Package name for generated code (Go-specific)
	Package string `yaml:"package,omitempty"`
}

// StoreConfig holds settings for the development document store.
type StoreConfig struct {
	Path string `yaml:"path,omitempty"`
}

// LogConfig selects the CLI logger.
type LogConfig struct {
	// Level is a zap level name: debug, info, warn, error.
	Level string `yaml:"level,omitempty"`

	// Format is "console" or "json".
	Format string `yaml:"format,omitempty"`
}

// DefaultConfigNames are the filenames we search for.
var DefaultConfigNames = []string{".convexgen.yaml", ".convexgen.yml", "convexgen.yaml", "convexgen.yml"}

// LoadConfig finds and loads the nearest .convexgen.yaml walking up from dir.
func LoadConfig(dir string) (*Config, error) {
	path, err := FindConfig(dir)
	if err != nil {
		return nil, err
	}

	return LoadConfigFile(path)
}

// FindConfig searches for a config file starting from dir and walking up.
func FindConfig(dir string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for dir := absDir; ; {
		for _, name := range DefaultConfigNames {
			path := filepath.Join(dir, name)

			_, err := os.Stat(path)
			if err == nil {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrConfigNotFound
		}

		dir = parent
	}
}

// LoadConfigFile loads a config from a specific path.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	var cfg Config

	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// FunctionsDir returns the function module directory resolved against base.
func (c *Config) FunctionsDir(base string) string {
	dir := c.Functions
	if dir == "" {
		dir = DefaultFunctionsDir
	}

	return resolve(base, dir)
}

// SchemaPath returns the schema file resolved against base.
func (c *Config) SchemaPath(base string) string {
	if c.Schema != "" {
		return resolve(base, c.Schema)
	}

	return filepath.Join(c.FunctionsDir(base), DefaultSchemaFile)
}

// FixturesPath returns the fixture file or directory resolved against base.
// Defaults to <functions>/fixtures.
func (c *Config) FixturesPath(base string) string {
	if c.Fixtures != "" {
		return resolve(base, c.Fixtures)
	}

	return filepath.Join(c.FunctionsDir(base), DefaultFixturesDir)
}

// StorePath returns the development store path resolved against base.
func (c *Config) StorePath(base string) string {
	path := c.Store.Path
	if path == "" {
		path = DefaultStorePath
	}

	return resolve(base, path)
}

func resolve(base, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}

	return filepath.Join(base, path)
}
