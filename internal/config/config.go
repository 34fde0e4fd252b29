// Package config loads the indexing section of a project's `.ruby-lsp.yml`.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/skelly-dev/rubyindex/internal/ignore"
)

const (
	FileName           = ".ruby-lsp.yml"
	DeprecatedFileName = ".index.yml"
	IgnoreFileName     = ".rubyindexignore"

	CacheDriverFile   = "file"
	CacheDriverSQLite = "sqlite"
	CacheDriverNone   = "none"
)

// DefaultExcludedPatterns keep test files out of the index; configured patterns are added to them.
var DefaultExcludedPatterns = []string{
	"**/{test,spec}/**/{*_test.rb,test_*.rb,*_spec.rb}",
}

// Config is the indexing configuration of one project.
type Config struct {
	ExcludedPatterns []string    `yaml:"excluded_patterns"`
	IncludedPatterns []string    `yaml:"included_patterns"`
	SignaturePaths   []string    `yaml:"signature_paths"`
	LoadPaths        []string    `yaml:"load_paths"`
	Workers          int         `yaml:"workers"`
	Cache            CacheConfig `yaml:"cache"`
	Watch            WatchConfig `yaml:"watch"`

	// Root is the project directory the configuration was loaded for.
	Root string `yaml:"-"`
	// Source is the file the configuration came from, empty when defaults were used.
	Source string `yaml:"-"`

	excluded *ignore.GlobSet
	included *ignore.GlobSet
}

type CacheConfig struct {
	Driver string `yaml:"driver"`
	Dir    string `yaml:"dir"`
	Path   string `yaml:"path"`
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

type rubyLSPFile struct {
	Indexing *Config `yaml:"indexing"`
}

// Load reads the configuration for root. The deprecated `.index.yml` takes precedence and is
// read as a bare indexing section; otherwise the `indexing` key of `.ruby-lsp.yml` is used. A
// project without either file gets the defaults.
func Load(root string) (*Config, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	deprecatedPath := filepath.Join(root, DeprecatedFileName)
	currentPath := filepath.Join(root, FileName)

	switch {
	case fileExists(deprecatedPath):
		slog.Warn("the .index.yml configuration file is deprecated, move its contents under the indexing key of .ruby-lsp.yml",
			"path", deprecatedPath)
		if err := decodeFile(deprecatedPath, cfg); err != nil {
			return nil, err
		}
		cfg.Source = deprecatedPath
	case fileExists(currentPath):
		var file rubyLSPFile
		if err := decodeFile(currentPath, &file); err != nil {
			return nil, err
		}
		if file.Indexing != nil {
			cfg = file.Indexing
		}
		cfg.Source = currentPath
	}

	cfg.Root = root
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid indexing configuration %s: %w", displaySource(cfg), err)
	}
	return cfg, nil
}

// Default returns the configuration used for a project without configuration files.
func Default(root string) (*Config, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	cfg := &Config{Root: root}
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read configuration file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse configuration file %s: %w", path, err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	cfg.ExcludedPatterns = append(append([]string(nil), DefaultExcludedPatterns...), cfg.ExcludedPatterns...)

	if len(cfg.LoadPaths) == 0 {
		cfg.LoadPaths = []string{"lib"}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	if strings.TrimSpace(cfg.Cache.Driver) == "" {
		cfg.Cache.Driver = CacheDriverFile
	}
	if strings.TrimSpace(cfg.Cache.Dir) == "" {
		cfg.Cache.Dir = filepath.Join(cfg.Root, ".ruby-lsp", "index")
	}
	if strings.TrimSpace(cfg.Cache.Path) == "" {
		cfg.Cache.Path = filepath.Join(cfg.Root, ".ruby-lsp", "index.db")
	}
	cfg.Cache.Dir = cfg.resolve(cfg.Cache.Dir)
	cfg.Cache.Path = cfg.resolve(cfg.Cache.Path)

	// Default debounce if not set.
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 200 * time.Millisecond
	}
}

func validate(cfg *Config) error {
	switch cfg.Cache.Driver {
	case CacheDriverFile, CacheDriverSQLite, CacheDriverNone:
	default:
		return fmt.Errorf("cache.driver must be one of %s, %s or %s, got %q",
			CacheDriverFile, CacheDriverSQLite, CacheDriverNone, cfg.Cache.Driver)
	}
	if cfg.Watch.Debounce < 0 {
		return errors.New("watch.debounce must not be negative")
	}

	var err error
	if cfg.excluded, err = ignore.CompileGlobs(cfg.ExcludedPatterns); err != nil {
		return fmt.Errorf("excluded_patterns: %w", err)
	}
	if cfg.included, err = ignore.CompileGlobs(cfg.IncludedPatterns); err != nil {
		return fmt.Errorf("included_patterns: %w", err)
	}
	for _, path := range cfg.SignaturePaths {
		if strings.TrimSpace(path) == "" {
			return errors.New("signature_paths must not contain empty entries")
		}
	}
	return nil
}

// Excluded returns the compiled exclusion globs.
func (c *Config) Excluded() *ignore.GlobSet {
	return c.excluded
}

// Included returns the compiled inclusion globs.
func (c *Config) Included() *ignore.GlobSet {
	return c.included
}

// IgnoreRules reads the project's ignore file, if any.
func (c *Config) IgnoreRules() ([]string, error) {
	data, err := os.ReadFile(filepath.Join(c.Root, IgnoreFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return strings.Split(string(data), "\n"), nil
}

// SignatureFiles expands signature_paths into the signature manifests they contain.
func (c *Config) SignatureFiles() ([]string, error) {
	var files []string
	for _, path := range c.SignaturePaths {
		path = c.resolve(path)
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				slog.Warn("signature path does not exist", "path", path)
				continue
			}
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isSignatureFile(p) {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func isSignatureFile(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	return strings.HasSuffix(base, ".sig.yml") || strings.HasSuffix(base, ".sig.yaml")
}

func (c *Config) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Root, path)
}

func displaySource(cfg *Config) string {
	if cfg.Source == "" {
		return "(defaults)"
	}
	return cfg.Source
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
