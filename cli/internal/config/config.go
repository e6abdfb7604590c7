// Package config provides utgen configuration with a defined load order:
// CLI flags > environment variables > .env file > repo config > global config > defaults.
//
// Paths:
//   - Repo: .utgen/config.toml (relative to repo root)
//   - Global: XDG config dir, e.g. ~/.config/utgen/config.toml (see os.UserConfigDir)
//   - Dotenv: .env in the repo root; its values never override the real environment.
//
// Environment variables (override config files when set):
//   - UTGEN_PROVIDER (ollama or openai), UTGEN_MODEL, UTGEN_OLLAMA_BASE_URL, UTGEN_OPENAI_BASE_URL,
//   - OPENAI_API_KEY (the key is never read from config files),
//   - UTGEN_TEMPERATURES (comma-separated, e.g. 0.2,0.5), UTGEN_MAX_ATTEMPTS, UTGEN_CANDIDATES, UTGEN_POLICY,
//   - UTGEN_COMPLETION_TIMEOUT, UTGEN_TEST_TIMEOUT (Go duration string or integer seconds),
//   - UTGEN_TEST_COMMAND, UTGEN_COVERAGE_COMMAND (split on whitespace; empty coverage disables it),
//   - UTGEN_TEST_SUFFIX, UTGEN_SOURCE_FOLDER, UTGEN_SOURCE_EXTENSIONS (comma-separated), UTGEN_TEST_DIR,
//   - UTGEN_BASELINE_TAG, UTGEN_SCRATCH_DIR, UTGEN_STATE_DIR, UTGEN_WORKTREE_ROOT,
//   - UTGEN_CONTEXT_LIMIT, UTGEN_WARN_THRESHOLD, UTGEN_NUM_CTX,
//   - UTGEN_LANGUAGE, UTGEN_SNIPPETS_FILE, UTGEN_LOG_LEVEL, UTGEN_LOG_FORMAT.
package config

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"utgen/cli/internal/erruser"
)

// Provider names.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Config holds all utgen configuration. Empty StateDir/WorktreeRoot mean
// "use default behavior" (.utgen in the repo).
type Config struct {
	Provider      string `toml:"provider"`
	Model         string `toml:"model"`
	OllamaBaseURL string `toml:"ollama_base_url"`
	OpenAIBaseURL string `toml:"openai_base_url"`
	OpenAIAPIKey  string `toml:"-"`

	Temperatures      []float64     `toml:"temperatures"`
	MaxAttempts       int           `toml:"max_attempts"`
	Candidates        int           `toml:"candidates"` // Completions requested per prompt (openai only).
	Policy            string        `toml:"policy"`     // lifo or fifo.
	CompletionTimeout time.Duration `toml:"completion_timeout"`

	TestCommand     []string      `toml:"test_command"`
	CoverageCommand []string      `toml:"coverage_command"`
	TestTimeout     time.Duration `toml:"test_timeout"`
	TestSuffix      string        `toml:"test_suffix"`
	ScratchDir      string        `toml:"scratch_dir"` // Empty uses TestDir.

	SourceFolder     string   `toml:"source_folder"`
	SourceExtensions []string `toml:"source_extensions"`
	TestDir          string   `toml:"test_dir"`
	BaselineTag      string   `toml:"baseline_tag"`

	StateDir     string `toml:"state_dir"`
	WorktreeRoot string `toml:"worktree_root"`

	ContextLimit  int     `toml:"context_limit"`
	WarnThreshold float64 `toml:"warn_threshold"`
	NumCtx        int     `toml:"num_ctx"`

	Language     string `toml:"language"`
	SnippetsFile string `toml:"snippets_file"`
	LogLevel     string `toml:"log_level"`
	LogFormat    string `toml:"log_format"`
}

// Overrides represents optional CLI flag overrides. Non-nil means "override
// with this value".
type Overrides struct {
	Provider     *string
	Model        *string
	Temperatures []float64
	MaxAttempts  *int
	Candidates   *int
	Policy       *string
	SourceFolder *string
	TestDir      *string
	StateDir     *string
	LogLevel     *string
	LogFormat    *string
}

// LoadOptions configures Load. All fields are optional.
type LoadOptions struct {
	// RepoRoot is the repository root; if set, repo config is RepoRoot/.utgen/config.toml
	// and RepoRoot/.env is read.
	RepoRoot string
	// GlobalConfigPath is the global config file path; if empty, XDG path is used.
	GlobalConfigPath string
	// Env is the environment key=value slice; if nil, os.Environ() is used.
	Env []string
	// Overrides are applied last (highest precedence).
	Overrides *Overrides
}

const (
	_defaultProvider          = ProviderOllama
	_defaultModel             = "qwen3-coder:30b"
	_defaultOllamaBaseURL     = "http://localhost:11434"
	_defaultOpenAIBaseURL     = "https://api.openai.com/v1"
	_defaultMaxAttempts       = 5
	_defaultCandidates        = 1
	_defaultPolicy            = "lifo"
	_defaultCompletionTimeout = 5 * time.Minute
	_defaultTestTimeout       = 2 * time.Minute
	_defaultTestSuffix        = ".test.ts"
	_defaultSourceFolder      = "src"
	_defaultTestDir           = "test"
	_defaultBaselineTag       = "auto-unit-test-baseline"
	_defaultContextLimit      = 32768
	_defaultWarnThreshold     = 0.9
	_defaultNumCtx            = 32768
	_defaultLanguage          = "typescript"
	_defaultLogLevel          = "info"
	_defaultLogFormat         = "text"
)

// DefaultTemperatures is the sampling schedule tried per function, in order.
func DefaultTemperatures() []float64 { return []float64{0.2, 0.5, 0.8, 1.0} }

func defaultTestCommand() []string {
	return []string{"npx", "jest", "--ci", "--runTestsByPath", "{test}"}
}

func defaultCoverageCommand() []string {
	return []string{
		"npx", "jest", "--ci", "--runTestsByPath", "{test}",
		"--coverage", "--coverageReporters=json-summary",
		"--coverageDirectory={coverage_dir}",
		"--collectCoverageFrom={source}",
	}
}

// errIntOverflow is returned when an int64 value does not fit in int.
var errIntOverflow = errors.New("value out of range for int")

func int64ToInt(n int64) (int, error) {
	if n < int64(math.MinInt) || n > int64(math.MaxInt) {
		return 0, errIntOverflow
	}
	return int(n), nil
}

// DefaultConfig returns the default configuration (no I/O).
func DefaultConfig() Config {
	return Config{
		Provider:          _defaultProvider,
		Model:             _defaultModel,
		OllamaBaseURL:     _defaultOllamaBaseURL,
		OpenAIBaseURL:     _defaultOpenAIBaseURL,
		Temperatures:      DefaultTemperatures(),
		MaxAttempts:       _defaultMaxAttempts,
		Candidates:        _defaultCandidates,
		Policy:            _defaultPolicy,
		CompletionTimeout: _defaultCompletionTimeout,
		TestCommand:       defaultTestCommand(),
		CoverageCommand:   defaultCoverageCommand(),
		TestTimeout:       _defaultTestTimeout,
		TestSuffix:        _defaultTestSuffix,
		SourceFolder:      _defaultSourceFolder,
		SourceExtensions:  []string{".ts"},
		TestDir:           _defaultTestDir,
		BaselineTag:       _defaultBaselineTag,
		ContextLimit:      _defaultContextLimit,
		WarnThreshold:     _defaultWarnThreshold,
		NumCtx:            _defaultNumCtx,
		Language:          _defaultLanguage,
		LogLevel:          _defaultLogLevel,
		LogFormat:         _defaultLogFormat,
	}
}

// EffectiveStateDir returns the directory used for session, lock, report,
// and history files. If StateDir is set it is returned (relative paths are
// resolved against repoRoot); otherwise repoRoot/.utgen.
func (c Config) EffectiveStateDir(repoRoot string) string {
	if c.StateDir == "" {
		return filepath.Join(repoRoot, ".utgen")
	}
	if filepath.IsAbs(c.StateDir) {
		return c.StateDir
	}
	return filepath.Join(repoRoot, c.StateDir)
}

// EffectiveScratchDir is where candidate tests are written while validated.
// It defaults to TestDir so candidates resolve imports like the final file.
func (c Config) EffectiveScratchDir() string {
	if c.ScratchDir != "" {
		return c.ScratchDir
	}
	return c.TestDir
}

// EffectiveSnippetsFile returns the snippet store path: SnippetsFile when set
// (relative to repoRoot), otherwise snippets.yaml in the state dir.
func (c Config) EffectiveSnippetsFile(repoRoot string) string {
	if c.SnippetsFile == "" {
		return filepath.Join(c.EffectiveStateDir(repoRoot), "snippets.yaml")
	}
	if filepath.IsAbs(c.SnippetsFile) {
		return c.SnippetsFile
	}
	return filepath.Join(repoRoot, c.SnippetsFile)
}

// Validate reports the first invalid setting as a user error.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return erruser.New(fmt.Sprintf("Unknown provider %q; use ollama or openai.", c.Provider), nil)
	}
	if strings.TrimSpace(c.Model) == "" {
		return erruser.New("A model name is required.", nil)
	}
	if len(c.Temperatures) == 0 {
		return erruser.New("At least one temperature is required.", nil)
	}
	for _, t := range c.Temperatures {
		if t < 0 || t > 2 {
			return erruser.New("Temperatures must be between 0 and 2.", nil)
		}
	}
	if c.MaxAttempts < 1 {
		return erruser.New("max_attempts must be at least 1.", nil)
	}
	if c.Candidates < 1 {
		return erruser.New("candidates must be at least 1.", nil)
	}
	if p := strings.ToLower(strings.TrimSpace(c.Policy)); p != "lifo" && p != "fifo" {
		return erruser.New("policy must be lifo or fifo.", nil)
	}
	if len(c.TestCommand) == 0 {
		return erruser.New("test_command must not be empty.", nil)
	}
	if len(c.SourceExtensions) == 0 {
		return erruser.New("At least one source extension is required.", nil)
	}
	if c.WarnThreshold < 0 || c.WarnThreshold > 1 {
		return erruser.New("warn_threshold must be between 0 and 1.", nil)
	}
	return nil
}

// Load loads configuration with precedence:
// defaults < global file < repo file < .env < env < overrides.
// Missing files are ignored. Invalid TOML, dotenv, or env values return an error.
func Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	if opts.Env == nil {
		opts.Env = os.Environ()
	}
	cfg := DefaultConfig()

	globalPath := opts.GlobalConfigPath
	if globalPath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, erruser.New("Could not determine config directory.", err)
		}
		globalPath = filepath.Join(dir, "utgen", "config.toml")
	}
	if err := mergeFile(&cfg, globalPath); err != nil {
		return nil, err
	}

	env := envMap(opts.Env)
	if opts.RepoRoot != "" {
		if err := mergeFile(&cfg, filepath.Join(opts.RepoRoot, ".utgen", "config.toml")); err != nil {
			return nil, err
		}
		dotenv, err := readDotenv(filepath.Join(opts.RepoRoot, ".env"))
		if err != nil {
			return nil, err
		}
		for k, v := range dotenv {
			if _, ok := env[k]; !ok {
				env[k] = v
			}
		}
	}

	if err := applyEnv(&cfg, env); err != nil {
		return nil, err
	}
	applyOverrides(&cfg, opts.Overrides)
	cfg.Policy = strings.ToLower(strings.TrimSpace(cfg.Policy))
	return &cfg, nil
}

func readDotenv(path string) (map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, erruser.New("Could not read .env file.", err)
	}
	vals, err := godotenv.Read(path)
	if err != nil {
		return nil, erruser.New("Invalid .env file.", err)
	}
	return vals, nil
}

// fileConfig mirrors Config with pointers so absent keys keep earlier values.
type fileConfig struct {
	Provider          *string   `toml:"provider"`
	Model             *string   `toml:"model"`
	OllamaBaseURL     *string   `toml:"ollama_base_url"`
	OpenAIBaseURL     *string   `toml:"openai_base_url"`
	Temperatures      []float64 `toml:"temperatures"`
	MaxAttempts       *int64    `toml:"max_attempts"`
	Candidates        *int64    `toml:"candidates"`
	Policy            *string   `toml:"policy"`
	CompletionTimeout *string   `toml:"completion_timeout"`
	TestCommand       []string  `toml:"test_command"`
	CoverageCommand   *[]string `toml:"coverage_command"`
	TestTimeout       *string   `toml:"test_timeout"`
	TestSuffix        *string   `toml:"test_suffix"`
	ScratchDir        *string   `toml:"scratch_dir"`
	SourceFolder      *string   `toml:"source_folder"`
	SourceExtensions  []string  `toml:"source_extensions"`
	TestDir           *string   `toml:"test_dir"`
	BaselineTag       *string   `toml:"baseline_tag"`
	StateDir          *string   `toml:"state_dir"`
	WorktreeRoot      *string   `toml:"worktree_root"`
	ContextLimit      *int64    `toml:"context_limit"`
	WarnThreshold     *float64  `toml:"warn_threshold"`
	NumCtx            *int64    `toml:"num_ctx"`
	Language          *string   `toml:"language"`
	SnippetsFile      *string   `toml:"snippets_file"`
	LogLevel          *string   `toml:"log_level"`
	LogFormat         *string   `toml:"log_format"`
}

// mergeFile reads path and merges into cfg. Empty strings and zero numbers in
// the file keep the previous value, except coverage_command where an empty
// array disables coverage. A missing file is skipped.
func mergeFile(cfg *Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return erruser.New("Invalid configuration file.", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return erruser.New("Could not read configuration file.", err)
	}
	var file fileConfig
	if _, err := toml.Decode(string(data), &file); err != nil {
		return erruser.New(fmt.Sprintf("Invalid configuration in %s.", path), err)
	}

	setString(&cfg.Provider, file.Provider)
	setString(&cfg.Model, file.Model)
	setString(&cfg.OllamaBaseURL, file.OllamaBaseURL)
	setString(&cfg.OpenAIBaseURL, file.OpenAIBaseURL)
	setString(&cfg.Policy, file.Policy)
	setString(&cfg.TestSuffix, file.TestSuffix)
	setString(&cfg.ScratchDir, file.ScratchDir)
	setString(&cfg.SourceFolder, file.SourceFolder)
	setString(&cfg.TestDir, file.TestDir)
	setString(&cfg.BaselineTag, file.BaselineTag)
	setString(&cfg.Language, file.Language)
	setString(&cfg.LogLevel, file.LogLevel)
	setString(&cfg.LogFormat, file.LogFormat)
	if file.StateDir != nil {
		cfg.StateDir = *file.StateDir
	}
	if file.WorktreeRoot != nil {
		cfg.WorktreeRoot = *file.WorktreeRoot
	}
	if file.SnippetsFile != nil {
		cfg.SnippetsFile = *file.SnippetsFile
	}
	if len(file.Temperatures) > 0 {
		cfg.Temperatures = slices.Clone(file.Temperatures)
	}
	if len(file.TestCommand) > 0 {
		cfg.TestCommand = slices.Clone(file.TestCommand)
	}
	if file.CoverageCommand != nil {
		cfg.CoverageCommand = slices.Clone(*file.CoverageCommand)
	}
	if len(file.SourceExtensions) > 0 {
		cfg.SourceExtensions = normalizeExtensions(file.SourceExtensions)
	}
	for _, f := range []struct {
		name string
		src  *int64
		dst  *int
	}{
		{"max_attempts", file.MaxAttempts, &cfg.MaxAttempts},
		{"candidates", file.Candidates, &cfg.Candidates},
		{"context_limit", file.ContextLimit, &cfg.ContextLimit},
		{"num_ctx", file.NumCtx, &cfg.NumCtx},
	} {
		if f.src == nil || *f.src <= 0 {
			continue
		}
		v, err := int64ToInt(*f.src)
		if err != nil {
			return erruser.New(fmt.Sprintf("Configuration %s value out of range.", f.name), err)
		}
		*f.dst = v
	}
	if file.WarnThreshold != nil && *file.WarnThreshold >= 0 {
		cfg.WarnThreshold = *file.WarnThreshold
	}
	if file.CompletionTimeout != nil && *file.CompletionTimeout != "" {
		d, err := parseDuration(*file.CompletionTimeout)
		if err != nil {
			return erruser.New("Configuration completion_timeout is invalid.", err)
		}
		cfg.CompletionTimeout = d
	}
	if file.TestTimeout != nil && *file.TestTimeout != "" {
		d, err := parseDuration(*file.TestTimeout)
		if err != nil {
			return erruser.New("Configuration test_timeout is invalid.", err)
		}
		cfg.TestTimeout = d
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil && *src != "" {
		*dst = *src
	}
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	// Try Go duration first (e.g. "5m", "30s")
	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}
	// Try integer seconds
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return time.Duration(n) * time.Second, nil
}

// parseFloatList parses "0.2, 0.5,1" into a slice; empty items are errors.
func parseFloatList(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// normalizeExtensions trims each extension and ensures a leading dot.
func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

// env key names for config
const (
	envProvider          = "UTGEN_PROVIDER"
	envModel             = "UTGEN_MODEL"
	envOllamaBaseURL     = "UTGEN_OLLAMA_BASE_URL"
	envOpenAIBaseURL     = "UTGEN_OPENAI_BASE_URL"
	envOpenAIAPIKey      = "OPENAI_API_KEY"
	envTemperatures      = "UTGEN_TEMPERATURES"
	envMaxAttempts       = "UTGEN_MAX_ATTEMPTS"
	envCandidates        = "UTGEN_CANDIDATES"
	envPolicy            = "UTGEN_POLICY"
	envCompletionTimeout = "UTGEN_COMPLETION_TIMEOUT"
	envTestTimeout       = "UTGEN_TEST_TIMEOUT"
	envTestCommand       = "UTGEN_TEST_COMMAND"
	envCoverageCommand   = "UTGEN_COVERAGE_COMMAND"
	envTestSuffix        = "UTGEN_TEST_SUFFIX"
	envScratchDir        = "UTGEN_SCRATCH_DIR"
	envSourceFolder      = "UTGEN_SOURCE_FOLDER"
	envSourceExtensions  = "UTGEN_SOURCE_EXTENSIONS"
	envTestDir           = "UTGEN_TEST_DIR"
	envBaselineTag       = "UTGEN_BASELINE_TAG"
	envStateDir          = "UTGEN_STATE_DIR"
	envWorktreeRoot      = "UTGEN_WORKTREE_ROOT"
	envContextLimit      = "UTGEN_CONTEXT_LIMIT"
	envWarnThreshold     = "UTGEN_WARN_THRESHOLD"
	envNumCtx            = "UTGEN_NUM_CTX"
	envLanguage          = "UTGEN_LANGUAGE"
	envSnippetsFile      = "UTGEN_SNIPPETS_FILE"
	envLogLevel          = "UTGEN_LOG_LEVEL"
	envLogFormat         = "UTGEN_LOG_FORMAT"
)

func envMap(env []string) map[string]string {
	vals := make(map[string]string, len(env))
	for _, e := range env {
		idx := strings.Index(e, "=")
		if idx <= 0 {
			continue
		}
		vals[strings.TrimSpace(e[:idx])] = strings.TrimSpace(e[idx+1:])
	}
	return vals
}

func applyEnv(cfg *Config, vals map[string]string) error {
	for key, dst := range map[string]*string{
		envProvider:      &cfg.Provider,
		envModel:         &cfg.Model,
		envOllamaBaseURL: &cfg.OllamaBaseURL,
		envOpenAIBaseURL: &cfg.OpenAIBaseURL,
		envOpenAIAPIKey:  &cfg.OpenAIAPIKey,
		envPolicy:        &cfg.Policy,
		envTestSuffix:    &cfg.TestSuffix,
		envScratchDir:    &cfg.ScratchDir,
		envSourceFolder:  &cfg.SourceFolder,
		envTestDir:       &cfg.TestDir,
		envBaselineTag:   &cfg.BaselineTag,
		envLanguage:      &cfg.Language,
		envLogLevel:      &cfg.LogLevel,
		envLogFormat:     &cfg.LogFormat,
	} {
		if v, ok := vals[key]; ok && v != "" {
			*dst = v
		}
	}
	// Set-but-empty clears these.
	if v, ok := vals[envStateDir]; ok {
		cfg.StateDir = v
	}
	if v, ok := vals[envWorktreeRoot]; ok {
		cfg.WorktreeRoot = v
	}
	if v, ok := vals[envSnippetsFile]; ok {
		cfg.SnippetsFile = v
	}
	if v, ok := vals[envCoverageCommand]; ok {
		cfg.CoverageCommand = strings.Fields(v)
	}
	if v, ok := vals[envTestCommand]; ok && v != "" {
		cfg.TestCommand = strings.Fields(v)
	}
	if v, ok := vals[envSourceExtensions]; ok && v != "" {
		cfg.SourceExtensions = normalizeExtensions(strings.Split(v, ","))
	}
	if v, ok := vals[envTemperatures]; ok && v != "" {
		temps, err := parseFloatList(v)
		if err != nil {
			return erruser.New("UTGEN_TEMPERATURES must be a comma-separated list of numbers.", err)
		}
		for _, t := range temps {
			if t < 0 || t > 2 {
				return erruser.New("UTGEN_TEMPERATURES values must be between 0 and 2.", nil)
			}
		}
		cfg.Temperatures = temps
	}
	for _, f := range []struct {
		key string
		dst *int
		min int64
	}{
		{envMaxAttempts, &cfg.MaxAttempts, 1},
		{envCandidates, &cfg.Candidates, 1},
		{envContextLimit, &cfg.ContextLimit, 0},
		{envNumCtx, &cfg.NumCtx, 0},
	} {
		v, ok := vals[f.key]
		if !ok || v == "" {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return erruser.New(f.key+" must be a valid number.", err)
		}
		if n < f.min {
			return erruser.New(fmt.Sprintf("%s must be at least %d.", f.key, f.min), nil)
		}
		*f.dst, err = int64ToInt(n)
		if err != nil {
			return erruser.New(f.key+" value out of range.", err)
		}
	}
	if cfg.NumCtx == 0 {
		cfg.NumCtx = _defaultNumCtx
	}
	if v, ok := vals[envWarnThreshold]; ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return erruser.New("UTGEN_WARN_THRESHOLD must be a valid number.", err)
		}
		cfg.WarnThreshold = f
	}
	for key, dst := range map[string]*time.Duration{
		envCompletionTimeout: &cfg.CompletionTimeout,
		envTestTimeout:       &cfg.TestTimeout,
	} {
		v, ok := vals[key]
		if !ok || v == "" {
			continue
		}
		d, err := parseDuration(v)
		if err != nil {
			return erruser.New(key+" must be a valid duration.", err)
		}
		*dst = d
	}
	return nil
}

func applyOverrides(cfg *Config, o *Overrides) {
	if o == nil {
		return
	}
	setString(&cfg.Provider, o.Provider)
	setString(&cfg.Model, o.Model)
	setString(&cfg.Policy, o.Policy)
	setString(&cfg.SourceFolder, o.SourceFolder)
	setString(&cfg.TestDir, o.TestDir)
	setString(&cfg.LogLevel, o.LogLevel)
	setString(&cfg.LogFormat, o.LogFormat)
	if o.StateDir != nil {
		cfg.StateDir = *o.StateDir
	}
	if len(o.Temperatures) > 0 {
		cfg.Temperatures = slices.Clone(o.Temperatures)
	}
	if o.MaxAttempts != nil {
		cfg.MaxAttempts = *o.MaxAttempts
	}
	if o.Candidates != nil {
		cfg.Candidates = *o.Candidates
	}
}
