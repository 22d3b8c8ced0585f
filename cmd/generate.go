package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/takeiteasy/sokol-hpp/tools/pkg"
	"github.com/takeiteasy/sokol-hpp/tools/pkg/bindgen"
	"github.com/takeiteasy/sokol-hpp/tools/pkg/config"
	"github.com/takeiteasy/sokol-hpp/tools/pkg/pydriver"
	"github.com/takeiteasy/sokol-hpp/tools/pkg/stargen"
)

func newGenerateCmd() *cobra.Command {
	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the bindings",
		Long: `Runs the generator for every task and writes the combined bindings to the output file.
Tasks the generator fails on are skipped. The run only fails if the generator can't be prepared or
the output can't be written.`,
		Args: cobra.NoArgs,
		RunE: runGenerate,
	}

	addGenerateFlags(generateCmd)
	return generateCmd
}

func addGenerateFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "", "path of the generated file (default \"sokol.inl\")")
	cmd.Flags().Bool("strict", false, "exit with status 2 if any task was skipped")
	cmd.Flags().Bool("if-changed", false, "only generate if a header is newer than the output")
	cmd.Flags().BoolP("dry", "n", false, "dry run; only print the plan, don't run the generator")
	cmd.Flags().Bool("progress", false, "show a progress bar")
}

// session bundles everything a command derives from the config, the flags and the task manifest
type session struct {
	cfg    *config.Config
	logger zerolog.Logger
	tasks  bindgen.TaskList
	// manifest is the absolute path of the task manifest or empty if the built-in list is used
	manifest string
	output   string
}

func loadSession(cmd *cobra.Command) (*session, error) {
	pkg.Out = cmd.OutOrStdout()
	flags := cmd.Flags()

	cfgPath, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, failed(newLogger(nil, cmd.ErrOrStderr()), err, "Failed to load the config")
	}

	err = applyFlags(cmd, cfg)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		return nil, failed(newLogger(nil, cmd.ErrOrStderr()), err, "Invalid configuration")
	}

	s := &session{
		cfg:    cfg,
		logger: newLogger(cfg, cmd.ErrOrStderr()),
		tasks:  bindgen.DefaultTasks(),
		output: cfg.Output,
	}

	if cfg.Tasks != "" {
		s.manifest = cfg.Resolve(cfg.Tasks)

		var manifestOutput string
		s.tasks, manifestOutput, err = bindgen.LoadManifest(s.manifest)
		if err != nil {
			return nil, failed(s.logger, err, "Failed to load the task manifest")
		}

		if manifestOutput != "" && !flags.Changed("output") {
			s.output = manifestOutput
			if !filepath.IsAbs(s.output) {
				s.output = filepath.Join(filepath.Dir(s.manifest), s.output)
			}
		}
	}

	return s, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	stringFlags := []struct {
		name   string
		target *string
		isPath bool
	}{
		{"output", &cfg.Output, false},
		{"backend", &cfg.Backend, false},
		{"tasks", &cfg.Tasks, true},
		{"bindgen-dir", &cfg.Bindgen.Dir, true},
		{"script", &cfg.Starlark.Script, true},
	}

	for _, item := range stringFlags {
		if !flags.Changed(item.name) {
			continue
		}

		value, err := flags.GetString(item.name)
		if err != nil {
			return err
		}

		// paths passed on the command line are relative to the working directory, not the config file
		if item.isPath && value != "" {
			value, err = filepath.Abs(value)
			if err != nil {
				return eris.Wrapf(err, "Failed to resolve --%s", item.name)
			}
		}

		*item.target = value
	}

	if flags.Changed("strict") {
		strict, err := flags.GetBool("strict")
		if err != nil {
			return err
		}
		cfg.Strict = strict
	}

	verbose, err := flags.GetBool("verbose")
	if err != nil {
		return err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	if flags.Changed("log-json") {
		cfg.Log.JSON, err = flags.GetBool("log-json")
		if err != nil {
			return err
		}
	}

	return nil
}

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	if cfg == nil {
		return zerolog.New(NewConsoleWriter(out))
	}

	var writer io.Writer = out
	if !cfg.Log.JSON {
		writer = NewConsoleWriter(out)
	}

	return zerolog.New(writer).Level(cfg.LogLevel()).With().Timestamp().Logger()
}

// failed logs a fatal error and turns it into exit status 1
func failed(logger zerolog.Logger, err error, msg string) error {
	logger.Error().Err(err).Msg(msg)
	return &exitError{code: 1, err: eris.Wrap(err, msg)}
}

// backend is a configured generator
type backend struct {
	gen bindgen.Generator
	// id identifies the generator in the run state
	id    string
	close func() error
}

func (s *session) newBackend() (*backend, error) {
	switch s.cfg.Backend {
	case "starlark":
		script := s.cfg.Resolve(s.cfg.Starlark.Script)
		gen, err := stargen.New(script)
		if err != nil {
			return nil, err
		}

		return &backend{
			gen:   gen,
			id:    "starlark:" + script,
			close: func() error { return nil },
		}, nil
	default:
		dir := s.cfg.Resolve(s.cfg.Bindgen.Dir)
		info, err := os.Stat(dir)
		if err != nil {
			return nil, eris.Wrapf(err, "Could not find the bindgen directory %s", dir)
		}
		if !info.IsDir() {
			return nil, eris.Errorf("%s is not a directory", dir)
		}

		driver := pydriver.New(pydriver.Options{
			Command: s.cfg.Python.Command,
			Dir:     dir,
			Module:  s.cfg.Python.Module,
			Version: s.cfg.Python.Version,
		})

		return &backend{
			gen:   driver,
			id:    "python:" + dir + ":" + s.cfg.Python.Module,
			close: driver.Close,
		}, nil
	}
}

// generatorDir returns the directory the task headers are relative to
func (s *session) generatorDir() string {
	if s.cfg.Backend == "starlark" {
		return filepath.Dir(s.cfg.Resolve(s.cfg.Starlark.Script))
	}
	return s.cfg.Resolve(s.cfg.Bindgen.Dir)
}

// inputs lists the files the generated output depends on: the headers, the manifest, the config
// and the generator's own sources
func (s *session) inputs() []string {
	genDir := s.generatorDir()
	result := make([]string, 0, len(s.tasks)+4)
	for _, header := range s.tasks.Headers() {
		if !filepath.IsAbs(header) {
			header = filepath.Join(genDir, header)
		}
		result = append(result, header)
	}

	if s.manifest != "" {
		result = append(result, s.manifest)
	}
	if s.cfg.File() != "" {
		result = append(result, s.cfg.File())
	}

	if s.cfg.Backend == "starlark" {
		result = append(result, s.cfg.Resolve(s.cfg.Starlark.Script))
	} else {
		// the module usually imports helpers from the same directory
		sources, _ := filepath.Glob(filepath.Join(genDir, "*.py"))
		result = append(result, sources...)
	}

	return result
}

// upToDate reports whether the output is newer than its inputs and was produced by a complete run
// of the same generator and tasks
func (s *session) upToDate(b *backend, output string) bool {
	fresh, err := bindgen.UpToDate(output, s.inputs())
	if err != nil {
		s.logger.Warn().Err(err).Msg("Could not check whether the output is up to date")
		return false
	}
	if !fresh {
		return false
	}

	statePath, err := bindgen.StatePath(output)
	if err != nil {
		s.logger.Debug().Err(err).Msg("No run state available")
		return false
	}

	state, err := bindgen.ReadState(statePath)
	if err != nil {
		s.logger.Debug().Err(err).Msg("No run state available")
		return false
	}

	return state.Matches(b.id, s.tasks)
}

func (s *session) saveState(b *backend, report *bindgen.Report) {
	statePath, err := bindgen.StatePath(report.Output)
	if err == nil {
		err = bindgen.WriteState(statePath, bindgen.NewRunState(b.id, report))
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to save the run state")
	}
}

func (s *session) printPlan(genDir string) {
	pkg.PrintTask(fmt.Sprintf("Would generate %s with the %s backend", s.output, s.cfg.Backend))
	pkg.PrintSubtask(fmt.Sprintf("generator directory: %s", genDir))

	for _, task := range s.tasks {
		line := fmt.Sprintf("%s from %s", task.Prefix, task.Header)
		if len(task.Deps) > 0 {
			line += fmt.Sprintf(" (deps: %s)", strings.Join(task.Deps, ", "))
		}
		pkg.PrintSubtask(line)
	}
}

func newProgressBar(count int, out io.Writer) *progressbar.ProgressBar {
	if os.Getenv("CI") == "true" {
		return progressbar.NewOptions(count, progressbar.OptionSetVisibility(false))
	}

	return progressbar.NewOptions(count,
		progressbar.OptionSetDescription("generating"),
		progressbar.OptionSetWriter(out),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(out, "\n")
		}),
	)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	s, err := loadSession(cmd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	dryRun, err := flags.GetBool("dry")
	if err != nil {
		return err
	}

	ifChanged, err := flags.GetBool("if-changed")
	if err != nil {
		return err
	}

	showProgress, err := flags.GetBool("progress")
	if err != nil {
		return err
	}

	if dryRun {
		s.printPlan(s.generatorDir())
		return nil
	}

	b, err := s.newBackend()
	if err != nil {
		return failed(s.logger, err, "Failed to set up the generator")
	}
	defer func() {
		if err := b.close(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to shut down the generator")
		}
	}()

	if ifChanged {
		output, err := filepath.Abs(s.output)
		if err != nil {
			return failed(s.logger, err, "Failed to resolve the output path")
		}

		if s.upToDate(b, output) {
			s.logger.Info().Str("path", output).Msgf("%s is up to date", output)
			return nil
		}
	}

	opts := bindgen.Options{
		Tasks:  s.tasks,
		Output: s.output,
	}

	if showProgress {
		bar := newProgressBar(len(s.tasks), cmd.ErrOrStderr())
		opts.OnTask = func(idx int, result bindgen.TaskResult) {
			bar.Describe(result.Task.Prefix)
			_ = bar.Add(1)
		}
	}

	ctx := bindgen.WithLogger(cmd.Context(), &s.logger)
	report, err := bindgen.Run(ctx, b.gen, opts)
	if err != nil {
		return failed(s.logger, err, "Generation failed")
	}

	s.saveState(b, report)

	if s.cfg.Strict && report.Partial() {
		skipped := len(report.Skipped())
		s.logger.Error().Int("skipped", skipped).Msgf("%d tasks were skipped and strict mode is enabled", skipped)
		return &exitError{code: 2, err: eris.Errorf("%d tasks skipped", skipped)}
	}

	return nil
}
