package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/helmcode/pairprog-ai/pkg/backend"
	"github.com/helmcode/pairprog-ai/pkg/diagnostics"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
	"k8s.io/client-go/util/homedir"
)

// Config holds every setting of the tool. Precedence, lowest first:
// defaults, YAML file, .env file, environment, command-line flags.
type Config struct {
	Backend  BackendConfig  `yaml:"backend"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Output   OutputConfig   `yaml:"output"`
	Log      LogConfig      `yaml:"log"`
	Watch    WatchConfig    `yaml:"watch"`
}

type BackendConfig struct {
	URL      string `yaml:"url"`
	Protocol string `yaml:"protocol"`
	// Timeout bounds one backend call; 0 keeps the transport default.
	Timeout time.Duration `yaml:"timeout"`
}

type AnalysisConfig struct {
	Language    string `yaml:"language"`
	LinePolicy  string `yaml:"line_policy"`
	StrictOrder bool   `yaml:"strict_order"`
	Concurrency int    `yaml:"concurrency"`
}

type OutputConfig struct {
	Format string `yaml:"format"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
	Listen   string        `yaml:"listen"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:      backend.DefaultBaseURL,
			Protocol: string(backend.ProtocolQuery),
			Timeout:  60 * time.Second,
		},
		Analysis: AnalysisConfig{
			Language:    "python",
			LinePolicy:  string(diagnostics.LinePolicyDrop),
			StrictOrder: true,
			Concurrency: 4,
		},
		Output: OutputConfig{Format: "human"},
		Log:    LogConfig{Level: "warn", Format: "console"},
		Watch:  WatchConfig{Debounce: 300 * time.Millisecond},
	}
}

// DefaultPath is ~/.pairprog/config.yaml, or empty when no home is known.
func DefaultPath() string {
	if home := homedir.HomeDir(); home != "" {
		return filepath.Join(home, ".pairprog", "config.yaml")
	}
	return ""
}

// Options control where Load looks.
type Options struct {
	// Path of the YAML file. When Required is false a missing file is
	// silently skipped.
	Path     string
	Required bool
	// EnvFile is loaded into the process environment without overriding
	// variables that are already set. Missing files are skipped.
	EnvFile string
	// SkipValidation leaves Validate to callers that merge further
	// settings, such as command-line flags, on top of the result.
	SkipValidation bool
	// Overridden names environment variables the caller replaces with its
	// own values. They are neither read nor parsed.
	Overridden []string
}

// Load builds the configuration from file and environment and validates it.
func Load(opts Options) (*Config, error) {
	cfg := Default()

	if opts.Path != "" {
		if err := cfg.mergeFile(opts.Path, opts.Required); err != nil {
			return nil, err
		}
	}

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", opts.EnvFile, err)
		}
	}

	if err := cfg.applyEnv(newEnv(opts.Overridden)); err != nil {
		return nil, err
	}

	if opts.SkipValidation {
		return cfg, nil
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Check is Validate as a single error.
func (c *Config) Check() error {
	if problems := c.Validate(); len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) mergeFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Environment variables read by Load.
const (
	EnvBackendURL    = "PAIRPROG_BACKEND_URL"
	EnvProtocol      = "PAIRPROG_PROTOCOL"
	EnvTimeout       = "PAIRPROG_TIMEOUT"
	EnvLanguage      = "PAIRPROG_LANGUAGE"
	EnvLinePolicy    = "PAIRPROG_LINE_POLICY"
	EnvStrictOrder   = "PAIRPROG_STRICT_ORDER"
	EnvConcurrency   = "PAIRPROG_CONCURRENCY"
	EnvOutput        = "PAIRPROG_OUTPUT"
	EnvLogLevel      = "PAIRPROG_LOG_LEVEL"
	EnvLogFormat     = "PAIRPROG_LOG_FORMAT"
	EnvWatchDebounce = "PAIRPROG_WATCH_DEBOUNCE"
	EnvListen        = "PAIRPROG_LISTEN"
)

func (c *Config) applyEnv(e env) error {
	var errs []error

	e.setString(&c.Backend.URL, EnvBackendURL)
	e.setString(&c.Backend.Protocol, EnvProtocol)
	errs = append(errs, e.setDuration(&c.Backend.Timeout, EnvTimeout))

	e.setString(&c.Analysis.Language, EnvLanguage)
	e.setString(&c.Analysis.LinePolicy, EnvLinePolicy)
	errs = append(errs, e.setBool(&c.Analysis.StrictOrder, EnvStrictOrder))
	errs = append(errs, e.setInt(&c.Analysis.Concurrency, EnvConcurrency))

	e.setString(&c.Output.Format, EnvOutput)
	e.setString(&c.Log.Level, EnvLogLevel)
	e.setString(&c.Log.Format, EnvLogFormat)

	errs = append(errs, e.setDuration(&c.Watch.Debounce, EnvWatchDebounce))
	e.setString(&c.Watch.Listen, EnvListen)

	return errors.Join(errs...)
}

// Validate returns every problem found, or nil.
func (c *Config) Validate() []string {
	var problems []string

	if c.Backend.URL == "" {
		problems = append(problems, "backend.url is required")
	} else if !strings.HasPrefix(c.Backend.URL, "http://") && !strings.HasPrefix(c.Backend.URL, "https://") {
		problems = append(problems, "backend.url must start with http:// or https://")
	}
	if _, err := backend.ParseProtocol(c.Backend.Protocol); err != nil {
		problems = append(problems, "backend.protocol must be one of: rest, query")
	}
	if c.Backend.Timeout < 0 {
		problems = append(problems, "backend.timeout must not be negative")
	}
	if _, err := diagnostics.ParseLinePolicy(c.Analysis.LinePolicy); err != nil {
		problems = append(problems, "analysis.line_policy must be one of: drop, clamp")
	}
	if c.Analysis.Concurrency < 1 {
		problems = append(problems, "analysis.concurrency must be at least 1")
	}
	if !contains([]string{"human", "json", "yaml"}, c.Output.Format) {
		problems = append(problems, "output.format must be one of: human, json, yaml")
	}
	if !contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Log.Level)) {
		problems = append(problems, "log.level must be one of: debug, info, warn, error")
	}
	if !contains([]string{"console", "json"}, strings.ToLower(c.Log.Format)) {
		problems = append(problems, "log.format must be one of: console, json")
	}
	if c.Watch.Debounce < 0 {
		problems = append(problems, "watch.debounce must not be negative")
	}

	return problems
}

// Protocol returns the parsed backend protocol. Call after Validate.
func (c *Config) Protocol() backend.Protocol {
	p, _ := backend.ParseProtocol(c.Backend.Protocol)
	return p
}

// LinePolicy returns the parsed line policy. Call after Validate.
func (c *Config) LinePolicy() diagnostics.LinePolicy {
	p, _ := diagnostics.ParseLinePolicy(c.Analysis.LinePolicy)
	return p
}

// YAML renders the effective configuration.
func (c *Config) YAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// env reads the process environment, skipping overridden keys.
type env struct {
	skip map[string]bool
}

func newEnv(overridden []string) env {
	skip := make(map[string]bool, len(overridden))
	for _, key := range overridden {
		skip[key] = true
	}
	return env{skip: skip}
}

func (e env) get(key string) string {
	if e.skip[key] {
		return ""
	}
	return os.Getenv(key)
}

func (e env) setString(dst *string, key string) {
	if v := e.get(key); v != "" {
		*dst = v
	}
}

func (e env) setDuration(dst *time.Duration, key string) error {
	v := e.get(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func (e env) setBool(dst *bool, key string) error {
	v := e.get(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func (e env) setInt(dst *int, key string) error {
	v := e.get(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
