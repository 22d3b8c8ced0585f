package bindgen

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/rotisserie/eris"
)

// MaxErrorLength limits the length of the error message logged for a skipped task
const MaxErrorLength = 100

// Options configures a single Run
type Options struct {
	Tasks TaskList
	// Output is resolved against the working directory at the time Run is called
	Output string
	// OnTask is called after each Gen call
	OnTask func(idx int, result TaskResult)
}

// Run passes every task to gen and writes the accumulated bindings to opts.Output.
//
// A failing Gen call only skips the affected task. Failures of Prepare, Finalize or the final
// line count abort the run and are returned.
func Run(ctx context.Context, gen Generator, opts Options) (*Report, error) {
	if opts.Output == "" {
		return nil, eris.New("no output path specified")
	}

	output, err := filepath.Abs(opts.Output)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to resolve output path %s", opts.Output)
	}

	logger := Log(ctx)
	logger.Info().Msgf("Generating %s...", filepath.Base(output))
	logger.Info().Str("path", output).Msgf("Output: %s", output)

	results, err := generate(ctx, gen, opts.Tasks, output, opts.OnTask)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Output:  output,
		Results: results,
	}

	report.Lines, err = CountLines(output)
	if err != nil {
		return nil, eris.Wrap(err, "failed to read the generated file")
	}

	logger.Info().Str("path", output).Msgf("Successfully generated %s", output)
	logger.Info().Int("lines", report.Lines).Msgf("Generated %d lines of code", report.Lines)

	skipped := report.Skipped()
	if len(skipped) > 0 {
		prefixes := make([]string, len(skipped))
		for idx, item := range skipped {
			prefixes[idx] = item.Task.Prefix
		}

		logger.Info().
			Int("skipped", len(skipped)).
			Msgf("%d of %d tasks skipped (%s)", len(skipped), len(results), strings.Join(prefixes, ", "))
	}

	return report, nil
}

func generate(ctx context.Context, gen Generator, tasks TaskList, output string, onTask func(int, TaskResult)) (results []TaskResult, err error) {
	if dirGen, ok := gen.(WorkDirGenerator); ok && dirGen.WorkDir() != "" {
		restore, dirErr := enterDir(dirGen.WorkDir())
		if dirErr != nil {
			return nil, dirErr
		}

		defer func() {
			restoreErr := restore()
			if restoreErr == nil {
				return
			}

			if err == nil {
				err = restoreErr
			} else {
				Log(ctx).Error().Err(restoreErr).Msg("Failed to restore the working directory")
			}
		}()
	}

	err = gen.Prepare(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "failed to prepare the generator")
	}

	results = make([]TaskResult, 0, len(tasks))
	for idx, task := range tasks {
		if err = ctx.Err(); err != nil {
			return nil, eris.Wrapf(err, "aborted before %s", task.Prefix)
		}

		result := TaskResult{
			Task: task,
			Err:  genTask(ctx, gen, task),
		}
		if result.Err != nil {
			logSkipped(ctx, result)
		}

		results = append(results, result)
		if onTask != nil {
			onTask(idx, result)
		}
	}

	err = gen.Finalize(ctx, output)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to write %s", output)
	}

	return results, nil
}

// PanicError is the result of a Gen call that panicked
type PanicError struct {
	Value interface{}
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Trace returns the stack of the panicking goroutine
func (e *PanicError) Trace() string {
	return e.Stack
}

func genTask(ctx context.Context, gen Generator, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()

	return gen.Gen(ctx, task)
}

func logSkipped(ctx context.Context, result TaskResult) {
	Log(ctx).Warn().
		Str("prefix", result.Task.Prefix).
		Str("header", result.Task.Header).
		Str("trace", traceOf(result.Err)).
		Msgf("skipped %s due to error: %s", result.Task.Prefix, Truncate(result.Err.Error(), MaxErrorLength))
}

func traceOf(err error) string {
	var tracer Tracer
	if errors.As(err, &tracer) {
		return tracer.Trace()
	}

	return eris.ToString(err, true)
}
