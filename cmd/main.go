package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/takeiteasy/sokol-hpp/tools/pkg"
)

// exitError is returned by commands that already reported their failure
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sokolgen",
		Short: "Generates sokol.inl from the sokol headers",
		Long: `This command passes each sokol header to the bindgen generator and collects the results
in a single file (sokol.inl by default). Headers the generator fails on are skipped with a warning.

Without a subcommand, sokolgen behaves like "sokolgen generate".`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          runGenerate,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file (defaults to the closest sokolgen.toml)")
	flags.String("tasks", "", "YAML task manifest (overrides the built-in sokol header list)")
	flags.String("backend", "", "generator backend: python or starlark")
	flags.String("bindgen-dir", "", "directory containing the python bindgen module")
	flags.String("script", "", "generator script for the starlark backend")
	flags.BoolP("verbose", "v", false, "print debug messages")
	flags.Bool("log-json", false, "print log messages as JSON lines")

	addGenerateFlags(rootCmd)
	rootCmd.AddCommand(newGenerateCmd(), newTasksCmd())
	return rootCmd
}

// Execute runs the command line and exits with the appropriate status code
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}

	// usage errors reported by cobra itself
	pkg.Out = stderr
	pkg.PrintError(err.Error())
	fmt.Fprintln(stderr, `Run "sokolgen --help" for usage.`)
	return 1
}
