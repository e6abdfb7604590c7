package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"slices"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"utgen/cli/internal/collector"
	"utgen/cli/internal/completion"
	"utgen/cli/internal/config"
	"utgen/cli/internal/engine"
	"utgen/cli/internal/erruser"
	"utgen/cli/internal/git"
	"utgen/cli/internal/history"
	"utgen/cli/internal/logging"
	"utgen/cli/internal/metrics"
	"utgen/cli/internal/ollama"
	"utgen/cli/internal/prompt"
	"utgen/cli/internal/report"
	"utgen/cli/internal/runner"
	"utgen/cli/internal/session"
	"utgen/cli/internal/snippet"
	"utgen/cli/internal/suite"
	"utgen/cli/internal/tokens"
	"utgen/cli/internal/trace"
	"utgen/cli/internal/version"
)

// Exit codes.
const (
	exitOK          = 0
	exitError       = 1
	exitUnreachable = 2
	exitNoTests     = 3
)

// errExit is an error that carries an exit code for the CLI. Use errors.As to detect it.
type errExit int

func (e errExit) Error() string {
	return "exit " + strconv.Itoa(int(e))
}

// stdout and stderr are the CLI's writers. Tests replace them to capture output.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	os.Exit(Run())
}

// Run is the entry point for the CLI.
func Run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return runCLI(ctx, os.Args[1:])
}

func runCLI(ctx context.Context, args []string) int {
	rootCmd := &cobra.Command{
		Use:     "utgen",
		Short:   "Generate, validate, and refine unit tests with an LLM",
		Version: version.String(),
	}
	rootCmd.PersistentFlags().String("repo", "", "Repository to operate on (default: current directory)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json")
	rootCmd.AddCommand(newGenerateCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newDoctorCmd())
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var exitErr errExit
		if errors.As(err, &exitErr) {
			return int(exitErr)
		}
		fmt.Fprintln(stderr, err)
		if u := errors.Unwrap(err); u != nil {
			fmt.Fprintf(stderr, "Details: %v\n", u)
		}
		if hint := erruser.HintOf(err); hint != "" {
			fmt.Fprintf(stderr, "Hint: %s\n", hint)
		}
		return exitError
	}
	return exitOK
}

// loadConfig resolves the repo root and loads configuration with flag overrides.
func loadConfig(cmd *cobra.Command, overrides *config.Overrides) (repoRoot string, cfg *config.Config, err error) {
	dir, _ := cmd.Flags().GetString("repo")
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return "", nil, erruser.New("Could not determine current directory.", err)
		}
	}
	repoRoot, err = git.RepoRoot(cmd.Context(), dir)
	if err != nil {
		return "", nil, erruser.New("Not a git repository.", err)
	}
	if overrides == nil {
		overrides = &config.Overrides{}
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		overrides.LogLevel = &v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		overrides.LogFormat = &v
	}
	cfg, err = config.Load(cmd.Context(), config.LoadOptions{RepoRoot: repoRoot, Overrides: overrides})
	if err != nil {
		return "", nil, err
	}
	if err := cfg.Validate(); err != nil {
		return "", nil, err
	}
	return repoRoot, cfg, nil
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	log, err := logging.New(stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, erruser.New("Invalid logging configuration.", err)
	}
	return log, nil
}

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [head-ref]",
		Short: "Generate unit tests for new or changed source files (default HEAD)",
		Long:  "Generate unit tests for new or changed source files.\nhead-ref must name the checked-out commit: candidate tests are validated against the working tree.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runGenerate,
	}
	cmd.Flags().String("base", "", "Base ref for changed files (default: baseline tag when present)")
	cmd.Flags().String("branch", "", "Branch to commit tests to (default: current branch)")
	cmd.Flags().Bool("dry-run", false, "Generate and report, but do not commit tests or move the baseline")
	cmd.Flags().Bool("allow-dirty", false, "Proceed with uncommitted changes (warns)")
	cmd.Flags().String("output", "human", "Output format: human (default) or json")
	cmd.Flags().Bool("trace", false, "Print prompts, candidates, and runner outcomes to stderr")
	cmd.Flags().String("provider", "", "Completion provider: ollama or openai")
	cmd.Flags().String("model", "", "Model name")
	cmd.Flags().Float64Slice("temperatures", nil, "Sampling temperatures tried in order (e.g. 0.2,0.5)")
	cmd.Flags().Int("max-attempts", 0, "Prompts per temperature before moving on")
	cmd.Flags().Int("candidates", 0, "Completions requested per prompt (openai)")
	cmd.Flags().String("policy", "", "Worklist policy: lifo (default) or fifo")
	cmd.Flags().String("source-folder", "", "Folder scanned for source files")
	cmd.Flags().String("test-dir", "", "Folder generated test files are written to")
	cmd.Flags().String("state-dir", "", "State directory (default: .utgen in the repo)")
	return cmd
}

// overridesFromFlags maps changed flags to config overrides.
func overridesFromFlags(cmd *cobra.Command) *config.Overrides {
	o := &config.Overrides{}
	str := func(name string) *string {
		if !cmd.Flags().Changed(name) {
			return nil
		}
		v, _ := cmd.Flags().GetString(name)
		return &v
	}
	num := func(name string) *int {
		if !cmd.Flags().Changed(name) {
			return nil
		}
		v, _ := cmd.Flags().GetInt(name)
		return &v
	}
	o.Provider = str("provider")
	o.Model = str("model")
	o.Policy = str("policy")
	o.SourceFolder = str("source-folder")
	o.TestDir = str("test-dir")
	o.StateDir = str("state-dir")
	o.MaxAttempts = num("max-attempts")
	o.Candidates = num("candidates")
	if cmd.Flags().Changed("temperatures") {
		o.Temperatures, _ = cmd.Flags().GetFloat64Slice("temperatures")
	}
	return o
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	output, _ := cmd.Flags().GetString("output")
	if output != "human" && output != "json" {
		return errors.New("Invalid output format; use human or json.")
	}
	repoRoot, cfg, err := loadConfig(cmd, overridesFromFlags(cmd))
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	var tracer *trace.Tracer
	if on, _ := cmd.Flags().GetBool("trace"); on {
		tracer = trace.New(stderr)
	}

	headArg := "HEAD"
	if len(args) > 0 {
		headArg = args[0]
	}
	head, err := git.RevParse(ctx, repoRoot, headArg)
	if err != nil {
		return erruser.New(fmt.Sprintf("Unknown ref %q.", headArg), err)
	}
	// Candidates run against the working tree, so sources must come from it too.
	checkedOut, err := git.RevParse(ctx, repoRoot, "HEAD")
	if err != nil {
		return erruser.New("Could not resolve the checked-out commit.", err)
	}
	if head != checkedOut {
		return erruser.WithHint(
			fmt.Sprintf("Ref %q is not the checked-out commit.", headArg),
			fmt.Sprintf("Tests are validated against the working tree; run 'git checkout %s' first.", headArg), nil)
	}
	branch, _ := cmd.Flags().GetString("branch")
	if branch == "" {
		if branch, err = git.CurrentBranch(ctx, repoRoot); err != nil {
			return erruser.WithHint("Could not determine the target branch.", "Pass --branch explicitly.", err)
		}
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	clean, err := git.IsClean(ctx, repoRoot)
	if err != nil {
		return err
	}
	if !clean {
		if allowDirty, _ := cmd.Flags().GetBool("allow-dirty"); !allowDirty {
			return erruser.WithHint("Working tree has uncommitted changes.", "Commit or stash them, or pass --allow-dirty.", nil)
		}
		log.Warn("working tree has uncommitted changes; tests run against them", "repo", repoRoot)
	}

	stateDir := cfg.EffectiveStateDir(repoRoot)
	release, err := session.AcquireLock(stateDir)
	if err != nil {
		if errors.Is(err, session.ErrLocked) {
			hint := "Wait for it to finish."
			if pid := session.LockHolder(stateDir); pid > 0 {
				hint = fmt.Sprintf("Wait for it to finish (pid %d).", pid)
			}
			return erruser.WithHint("Another utgen run is active for this repository.", hint, err)
		}
		return err
	}
	defer release()

	state := session.Begin(head, branch, time.Now())
	if err := session.Save(stateDir, &state); err != nil {
		return err
	}

	provider, err := newProvider(cfg, log)
	if err != nil {
		return err
	}
	lang, err := prompt.LookupLanguage(cfg.Language)
	if err != nil {
		return erruser.New("Invalid language.", err)
	}
	tmpl, err := prompt.LoadTemplates(stateDir)
	if err != nil {
		return erruser.New("Could not load prompt templates.", err)
	}
	snippets, err := snippet.Load(cfg.EffectiveSnippetsFile(repoRoot))
	if err != nil {
		return erruser.New("Could not load snippets.", err)
	}
	col := collector.New()
	rec := metrics.NewRecorder()
	eng, err := engine.New(engine.Options{
		Temperatures: cfg.Temperatures,
		MaxAttempts:  cfg.MaxAttempts,
		Policy:       engine.Policy(cfg.Policy),
		Provider:     provider,
		Runner: runner.New(runner.Config{
			TestCommand:     cfg.TestCommand,
			CoverageCommand: cfg.CoverageCommand,
			ScratchDir:      cfg.EffectiveScratchDir(),
			TestSuffix:      cfg.TestSuffix,
			Timeout:         cfg.TestTimeout,
			Logger:          log,
		}),
		Collector: col,
		Snippets:  snippets,
		Prompts:   prompt.NewFactory(lang, tmpl),
		Budget:    tokens.Budget{ContextLimit: cfg.ContextLimit, WarnThreshold: cfg.WarnThreshold},
		Observer:  rec,
		Logger:    log,
		Trace:     tracer,
	})
	if err != nil {
		return erruser.New("Invalid generation settings.", err)
	}
	base, _ := cmd.Flags().GetString("base")

	res, runErr := suite.Run(ctx, suite.Options{
		Host:         &git.Host{RepoRoot: repoRoot, WorktreeRoot: cfg.WorktreeRoot},
		Engine:       eng,
		Collector:    col,
		Metrics:      rec,
		RunID:        state.RunID,
		BaseRef:      base,
		HeadRef:      head,
		Branch:       branch,
		SourceFolder: cfg.SourceFolder,
		Extensions:   cfg.SourceExtensions,
		TestDir:      cfg.TestDir,
		TestSuffix:   cfg.TestSuffix,
		BaselineTag:  cfg.BaselineTag,
		DryRun:       dryRun,
		StateDir:     stateDir,
		RootDir:      repoRoot,
		Logger:       log,
	})

	status := session.StatusSucceeded
	switch {
	case errors.Is(runErr, suite.ErrNoTests):
		status = session.StatusNoTests
	case runErr != nil:
		status = session.StatusFailed
	}
	if res != nil {
		state.Mode = res.Mode
	}
	state.Finish(status, runErr, time.Now())
	if err := session.Save(stateDir, &state); err != nil {
		log.Warn("could not save run state", "err", err)
	}
	if res != nil && res.Report != nil {
		if err := report.AppendHistory(stateDir, res.Report, status, runConfig(cfg)); err != nil {
			log.Warn("could not append run history", "err", err)
		}
		if err := writeResult(output, res.Report); err != nil {
			return err
		}
	}

	switch {
	case runErr == nil:
		return nil
	case errors.Is(runErr, suite.ErrNoTests):
		fmt.Fprintln(stderr, "No test cases generated.")
		return errExit(exitNoTests)
	case errors.Is(runErr, context.Canceled):
		return erruser.New("Run interrupted; partial report written.", runErr)
	default:
		return erruser.New("Test generation failed.", runErr)
	}
}

func writeResult(output string, r *report.Report) error {
	if output == "json" {
		data, err := r.JSON()
		if err != nil {
			return erruser.New("Could not write report.", err)
		}
		if _, err := stdout.Write(data); err != nil {
			return erruser.New("Could not write report.", err)
		}
		return nil
	}
	_, err := fmt.Fprintln(stdout, renderSummary(r))
	return err
}

func runConfig(cfg *config.Config) *history.RunConfig {
	return &history.RunConfig{
		Provider:     cfg.Provider,
		Model:        cfg.Model,
		Temperatures: cfg.Temperatures,
		MaxAttempts:  cfg.MaxAttempts,
		Policy:       cfg.Policy,
		Candidates:   cfg.Candidates,
	}
}

// newProvider builds the configured completion provider.
func newProvider(cfg *config.Config, log *slog.Logger) (completion.Provider, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		p, err := completion.NewOpenAI(completion.OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.Model,
			Candidates: cfg.Candidates,
			System:     completion.SystemPrompt,
			Timeout:    cfg.CompletionTimeout,
			Logger:     log,
		})
		if err != nil {
			return nil, erruser.New("Invalid OpenAI provider settings.", err)
		}
		return p, nil
	default:
		client := ollama.NewClient(cfg.OllamaBaseURL, nil)
		return completion.NewOllama(client, cfg.Model, completion.OllamaOptions{
			System:  completion.SystemPrompt,
			NumCtx:  cfg.NumCtx,
			Timeout: cfg.CompletionTimeout,
			Logger:  log,
		}), nil
	}
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current or last run",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
	cmd.Flags().String("output", "human", "Output format: human (default) or json")
	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	repoRoot, cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	stateDir := cfg.EffectiveStateDir(repoRoot)
	state, err := session.Load(stateDir)
	if err != nil {
		return err
	}
	last, ok, err := history.Last(stateDir)
	if err != nil {
		return err
	}
	if state.RunID == "" && !ok {
		fmt.Fprintln(stderr, "No runs yet. Run 'utgen generate' to start.")
		return errExit(exitError)
	}
	output, _ := cmd.Flags().GetString("output")
	if output == "json" {
		payload := struct {
			State session.State   `json:"state"`
			Last  *history.Record `json:"last,omitempty"`
		}{State: state}
		if ok {
			payload.Last = &last
		}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return erruser.New("Could not write status.", err)
		}
		_, err = fmt.Fprintln(stdout, string(data))
		return err
	}
	if state.RunID != "" {
		fmt.Fprintf(stdout, "run: %s\n", state.RunID)
		fmt.Fprintf(stdout, "status: %s\n", state.Status)
		fmt.Fprintf(stdout, "head: %s\n", state.HeadRef)
		fmt.Fprintf(stdout, "branch: %s\n", state.Branch)
		fmt.Fprintf(stdout, "started_at: %s\n", state.StartedAt.Format(time.RFC3339))
		if state.Error != "" {
			fmt.Fprintf(stdout, "error: %s\n", state.Error)
		}
	}
	if ok {
		fmt.Fprintln(stdout, "---")
		fmt.Fprintln(stdout, renderRecord(last))
	}
	return nil
}

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Verify environment (git, provider, model, test command)",
		Args:  cobra.NoArgs,
		RunE:  runDoctor,
	}
}

func runDoctor(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	switch cfg.Provider {
	case config.ProviderOpenAI:
		p, err := completion.NewOpenAI(completion.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL, Model: cfg.Model, Timeout: 30 * time.Second,
		})
		if err != nil {
			return erruser.New("Invalid OpenAI provider settings.", err)
		}
		ids, err := p.Models(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "OpenAI endpoint unreachable at %s.\n", cfg.OpenAIBaseURL)
			fmt.Fprintf(stderr, "Details: %v\n", err)
			return errExit(exitUnreachable)
		}
		if !slices.Contains(ids, cfg.Model) {
			fmt.Fprintf(stderr, "Model %q not served by %s.\n", cfg.Model, cfg.OpenAIBaseURL)
			return errExit(exitError)
		}
		fmt.Fprintln(stdout, "OpenAI OK")
	default:
		result, err := ollama.NewClient(cfg.OllamaBaseURL, nil).Check(ctx, cfg.Model)
		if err != nil {
			if errors.Is(err, ollama.ErrUnreachable) {
				fmt.Fprintf(stderr, "Ollama unreachable at %s. Is the server running? For local: ollama serve.\n", cfg.OllamaBaseURL)
				fmt.Fprintf(stderr, "Details: %v\n", err)
				return errExit(exitUnreachable)
			}
			fmt.Fprintln(stderr, err.Error())
			return errExit(exitError)
		}
		if !result.ModelPresent {
			fmt.Fprintf(stderr, "Model %q not found. Pull it with: ollama pull %s\n", cfg.Model, cfg.Model)
			return errExit(exitError)
		}
		fmt.Fprintln(stdout, "Ollama OK")
	}
	fmt.Fprintf(stdout, "Model: %s\n", cfg.Model)
	if _, err := exec.LookPath(cfg.TestCommand[0]); err != nil {
		fmt.Fprintf(stderr, "Test command %q not found on PATH.\n", cfg.TestCommand[0])
		return errExit(exitError)
	}
	fmt.Fprintf(stdout, "Test command: %s\n", cfg.TestCommand[0])
	return nil
}
