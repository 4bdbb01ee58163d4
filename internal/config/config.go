package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/sitesmith/internal/foundation/errors"
)

// CurrentVersion is the only configuration schema version accepted by Load.
const CurrentVersion = "1"

// DefaultPath is the config file looked up when -c is not given.
const DefaultPath = "sitesmith.yaml"

// Config is the complete site configuration.
type Config struct {
	Version     string            `yaml:"version"`
	Dir         DirConfig         `yaml:"dir"`
	Formats     []string          `yaml:"formats"`
	Passthrough []string          `yaml:"passthrough"`
	Ignores     []string          `yaml:"ignores,omitempty"`
	Extensions  []ExtensionConfig `yaml:"extensions,omitempty"`
	Sass        SassConfig        `yaml:"sass"`
	Markdown    MarkdownConfig    `yaml:"markdown"`
	Data        map[string]any    `yaml:"data,omitempty"`
	Site        SiteConfig        `yaml:"site"`
	Build       BuildConfig       `yaml:"build"`
	Output      OutputConfig      `yaml:"output"`
	Watch       WatchConfig       `yaml:"watch"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Tracing     TracingConfig     `yaml:"tracing,omitempty"`
}

// DirConfig locates the source and output trees. Layouts and data are
// relative to Input.
type DirConfig struct {
	Input   string `yaml:"input"`
	Output  string `yaml:"output"`
	Layouts string `yaml:"layouts"`
	Data    string `yaml:"data"`
}

// ExtensionConfig registers an extra file extension that reuses a built-in
// compiler (for example "scssx" compiled as "scss").
type ExtensionConfig struct {
	Extension       string `yaml:"extension"`
	Compiler        string `yaml:"compiler"`
	OutputExtension string `yaml:"output_extension,omitempty"`
}

// SassConfig controls the stylesheet compiler.
type SassConfig struct {
	LoadPaths      []string           `yaml:"load_paths"`
	Style          SassStyle          `yaml:"style"`
	Implementation SassImplementation `yaml:"implementation"`
	Binary         string             `yaml:"binary,omitempty"` // dart-sass executable for implementation "dart"
}

// MarkdownConfig mirrors the renderer options.
type MarkdownConfig struct {
	HTML        bool            `yaml:"html"`
	Linkify     bool            `yaml:"linkify"`
	Typographer bool            `yaml:"typographer"`
	Anchors     AnchorsConfig   `yaml:"anchors"`
	Highlight   HighlightConfig `yaml:"highlight"`
	Diagrams    DiagramsConfig  `yaml:"diagrams"`
}

type AnchorsConfig struct {
	Permalink bool   `yaml:"permalink"`
	Symbol    string `yaml:"symbol"`
	Class     string `yaml:"class"`
}

type HighlightConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Style       string `yaml:"style"`
	Classes     bool   `yaml:"classes"`
	LineNumbers bool   `yaml:"line_numbers"`
	CSSFile     string `yaml:"css_file,omitempty"` // output-relative; empty disables
}

type DiagramsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// SiteConfig is exposed to templates as "site".
type SiteConfig struct {
	Title string `yaml:"title"`
	URL   string `yaml:"url,omitempty"`
}

type BuildConfig struct {
	Concurrency int  `yaml:"concurrency,omitempty"` // 0 means GOMAXPROCS
	Strict      bool `yaml:"strict"`
	CheckLinks  bool `yaml:"check_links"`
}

type OutputConfig struct {
	Clean bool `yaml:"clean"`
}

// WatchConfig tunes the development server's rebuild triggers.
type WatchConfig struct {
	Debounce     string `yaml:"debounce"`
	PollInterval string `yaml:"poll_interval,omitempty"`
}

type ServerConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	LiveReload bool   `yaml:"livereload"`
}

type LogConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type TracingConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"`
	ServiceName  string `yaml:"service_name,omitempty"`
	Insecure     bool   `yaml:"insecure,omitempty"`
}

// DebounceDuration returns the parsed debounce interval.
func (w WatchConfig) DebounceDuration() time.Duration {
	d, err := time.ParseDuration(w.Debounce)
	if err != nil || d <= 0 {
		return DefaultDebounce
	}
	return d
}

// PollDuration returns the polling interval, or zero when polling is off.
func (w WatchConfig) PollDuration() time.Duration {
	if w.PollInterval == "" {
		return 0
	}
	d, err := time.ParseDuration(w.PollInterval)
	if err != nil {
		return 0
	}
	return d
}

// Addr returns host:port for the development server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// InputDir returns the absolute input directory.
func (c *Config) InputDir() string {
	return absOrSelf(c.Dir.Input)
}

// OutputDir returns the absolute output directory.
func (c *Config) OutputDir() string {
	return absOrSelf(c.Dir.Output)
}

// LayoutsDir returns the absolute layouts directory.
func (c *Config) LayoutsDir() string {
	return filepath.Join(c.InputDir(), filepath.FromSlash(c.Dir.Layouts))
}

// DataDir returns the absolute global data directory.
func (c *Config) DataDir() string {
	return filepath.Join(c.InputDir(), filepath.FromSlash(c.Dir.Data))
}

func absOrSelf(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}

// Load reads configPath, applies .env files, ${VAR} expansion and
// SITESMITH_* overrides on top of Default, then normalizes and validates.
// An empty configPath, or the default path when it does not exist, yields
// the defaults.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	cfg := Default()

	explicit := configPath != "" && configPath != DefaultPath
	if configPath == "" {
		configPath = DefaultPath
	}

	raw, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		expanded := os.ExpandEnv(string(raw))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, errors.WrapError(err, errors.CategoryConfig, "failed to parse configuration").
				WithFile(configPath).Fatal().Build()
		}
	case os.IsNotExist(err) && !explicit:
		slog.Debug("No configuration file, using defaults", slog.String("path", configPath))
	case os.IsNotExist(err):
		return nil, errors.ConfigError(fmt.Sprintf("configuration file not found: %s", configPath)).
			WithFile(configPath).Fatal().Build()
	default:
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").
			WithFile(configPath).Fatal().Build()
	}

	if cfg.Version != CurrentVersion {
		return nil, errors.ConfigError(fmt.Sprintf("unsupported configuration version: %s (expected %s)", cfg.Version, CurrentVersion)).
			WithFile(configPath).Fatal().Build()
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	res, err := Normalize(cfg)
	if err != nil {
		return nil, err
	}
	for _, w := range res.Warnings {
		slog.Warn("config normalization", slog.String("detail", w))
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ConfigError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath)).
			WithFile(configPath).Build()
	}

	example := Default()
	example.Site.Title = "My Site"
	example.Ignores = []string{"README.md", "drafts/**"}
	example.Extensions = []ExtensionConfig{{Extension: "scssx", Compiler: "scss"}}
	example.Markdown.Highlight.CSSFile = "css/highlight.css"

	out, err := yaml.Marshal(example)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal example config").Build()
	}
	header := "# sitesmith configuration\n# Values support ${VAR} expansion; SITESMITH_* environment variables override them.\n"
	if err := os.WriteFile(configPath, append([]byte(header), out...), 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write config file").
			WithFile(configPath).Build()
	}
	return nil
}
