package cmd

import (
	"time"

	"github.com/helmcode/pairprog-ai/pkg/analyzer"
	"github.com/helmcode/pairprog-ai/pkg/backend"
	"github.com/helmcode/pairprog-ai/pkg/config"
	"github.com/helmcode/pairprog-ai/pkg/diagnostics"
	"github.com/helmcode/pairprog-ai/pkg/logging"
	"github.com/helmcode/pairprog-ai/pkg/metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// commonOptions are the flags shared by every command that talks to the
// backend. A flag only overrides the configuration when it was set.
type commonOptions struct {
	configPath   string
	envFile      string
	url          string
	protocol     string
	timeout      time.Duration
	language     string
	linePolicy   string
	strictOrder  bool
	concurrency  int
	outputFormat string
	verbose      bool
}

func (o *commonOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.configPath, "config", config.DefaultPath(), "Path to the configuration file")
	cmd.Flags().StringVar(&o.envFile, "env-file", ".env", "Environment file to load (skipped when missing)")
	cmd.Flags().StringVar(&o.url, "url", backend.DefaultBaseURL, "Base URL of the analysis backend")
	cmd.Flags().StringVar(&o.protocol, "protocol", string(backend.ProtocolQuery), "Backend protocol (rest, query)")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 60*time.Second, "Timeout for one backend call (0 disables it)")
	cmd.Flags().StringVar(&o.language, "language", analyzer.DefaultLanguage, "Language the backend is tuned for; other languages get an advisory")
	cmd.Flags().StringVar(&o.linePolicy, "line-policy", string(diagnostics.LinePolicyDrop), "What to do with suggestions outside the document (drop, clamp)")
	cmd.Flags().BoolVar(&o.strictOrder, "strict-order", true, "Discard responses superseded by a newer request for the same document")
	cmd.Flags().IntVar(&o.concurrency, "concurrency", 4, "Maximum number of documents analyzed at once")
	cmd.Flags().StringVarP(&o.outputFormat, "output", "o", "human", "Output format (human, json, yaml)")
	cmd.Flags().BoolVarP(&o.verbose, "verbose", "v", false, "Verbose output")
}

// load resolves the configuration: defaults, file, env file, environment,
// then the flags that were set explicitly. Validation runs once, on the
// merged result, so a flag can replace a bad file or environment value.
func (o *commonOptions) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(config.Options{
		Path:           o.configPath,
		Required:       cmd.Flags().Changed("config"),
		EnvFile:        o.envFile,
		SkipValidation: true,
		Overridden:     overriddenEnv(cmd),
	})
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.Backend.URL = o.url
	}
	if flags.Changed("protocol") {
		cfg.Backend.Protocol = o.protocol
	}
	if flags.Changed("timeout") {
		cfg.Backend.Timeout = o.timeout
	}
	if flags.Changed("language") {
		cfg.Analysis.Language = o.language
	}
	if flags.Changed("line-policy") {
		cfg.Analysis.LinePolicy = o.linePolicy
	}
	if flags.Changed("strict-order") {
		cfg.Analysis.StrictOrder = o.strictOrder
	}
	if flags.Changed("concurrency") {
		cfg.Analysis.Concurrency = o.concurrency
	}
	if flags.Changed("output") {
		cfg.Output.Format = o.outputFormat
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// flagEnv pairs each flag with the environment variable it overrides.
var flagEnv = map[string]string{
	"url":          config.EnvBackendURL,
	"protocol":     config.EnvProtocol,
	"timeout":      config.EnvTimeout,
	"language":     config.EnvLanguage,
	"line-policy":  config.EnvLinePolicy,
	"strict-order": config.EnvStrictOrder,
	"concurrency":  config.EnvConcurrency,
	"output":       config.EnvOutput,
	"debounce":     config.EnvWatchDebounce,
	"listen":       config.EnvListen,
	"verbose":      config.EnvLogLevel,
}

// overriddenEnv lists the variables replaced by flags set on cmd, so a bad
// value there cannot fail a run the flag already fixes.
func overriddenEnv(cmd *cobra.Command) []string {
	var keys []string
	for flag, key := range flagEnv {
		if cmd.Flags().Changed(flag) {
			keys = append(keys, key)
		}
	}
	return keys
}

// app is everything an analysis needs, built from one configuration.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	recorder *metrics.Recorder
	analyzer *analyzer.Analyzer
}

func newApp(cfg *config.Config) (*app, error) {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	recorder := metrics.New()
	b, err := backend.New(cfg.Protocol(), backend.Options{
		BaseURL:  cfg.Backend.URL,
		Timeout:  cfg.Backend.Timeout,
		Logger:   logger,
		Recorder: recorder,
	})
	if err != nil {
		return nil, err
	}

	store := diagnostics.NewStore(diagnostics.StoreOptions{
		StrictOrder: cfg.Analysis.StrictOrder,
		OnChange:    recorder.SetDocuments,
	})
	a := analyzer.New(b, store, analyzer.Options{
		ExpectedLanguage: cfg.Analysis.Language,
		LinePolicy:       cfg.LinePolicy(),
		Logger:           logger,
		Recorder:         recorder,
	})

	return &app{cfg: cfg, logger: logger, recorder: recorder, analyzer: a}, nil
}
