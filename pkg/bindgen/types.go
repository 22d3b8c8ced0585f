package bindgen

import (
	"context"
	"fmt"
)

// Task describes a single header that should be passed to the generator
type Task struct {
	// Header is the path of the C header, relative to the generator's directory
	Header string `yaml:"header"`
	// Prefix selects the symbols the generator extracts from Header
	Prefix string `yaml:"prefix"`
	// Deps lists the prefixes of other tasks whose bindings this task refers to
	Deps []string `yaml:"deps,omitempty"`
}

func (t Task) String() string {
	return fmt.Sprintf("<Task %s: %s>", t.Prefix, t.Header)
}

// TaskList is processed in order. The order determines the layout of the generated artifact.
type TaskList []Task

// Headers returns the header path of each task
func (l TaskList) Headers() []string {
	result := make([]string, len(l))
	for idx, task := range l {
		result[idx] = task.Header
	}
	return result
}

// DefaultTasks returns the headers that make up sokol.inl
func DefaultTasks() TaskList {
	return TaskList{
		{Header: "../sokol_log.h", Prefix: "slog_", Deps: []string{}},
		{Header: "../sokol_gfx.h", Prefix: "sg_", Deps: []string{}},
		{Header: "../sokol_app.h", Prefix: "sapp_", Deps: []string{}},
		{Header: "../sokol_time.h", Prefix: "stm_", Deps: []string{}},
		{Header: "../sokol_audio.h", Prefix: "saudio_", Deps: []string{}},
	}
}

// Generator is the external code generator. Prepare resets its accumulated state, each Gen call
// appends the bindings for one header and Finalize writes everything to a single file.
// Calls are never made concurrently.
type Generator interface {
	Prepare(ctx context.Context) error
	Gen(ctx context.Context, task Task) error
	Finalize(ctx context.Context, output string) error
}

// WorkDirGenerator is implemented by generators which resolve relative paths against the process'
// working directory. Run changes into WorkDir() while the generator is active.
type WorkDirGenerator interface {
	Generator
	WorkDir() string
}

// Tracer is implemented by errors which carry their own stack trace (i.e. a Python traceback)
type Tracer interface {
	Trace() string
}

// TaskResult records the outcome of a single Gen call. Err is nil if the task succeeded.
type TaskResult struct {
	Task Task
	Err  error
}

// OK reports whether the task succeeded
func (r TaskResult) OK() bool {
	return r.Err == nil
}

// Report summarizes a completed run
type Report struct {
	// Output is the absolute path of the generated artifact
	Output  string
	Lines   int
	Results []TaskResult
}

// Skipped returns the results of all failed tasks in task order
func (r *Report) Skipped() []TaskResult {
	result := make([]TaskResult, 0)
	for _, item := range r.Results {
		if !item.OK() {
			result = append(result, item)
		}
	}
	return result
}

// Partial reports whether at least one task was skipped
func (r *Report) Partial() bool {
	return len(r.Skipped()) > 0
}
