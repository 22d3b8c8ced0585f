package stargen

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"go.starlark.net/starlark"

	"github.com/takeiteasy/sokol-hpp/tools/pkg/bindgen"
)

const localKey = "generator"

// Generator runs a Starlark generator script
type Generator struct {
	script    string
	ctx       context.Context
	thread    *starlark.Thread
	globals   starlark.StringDict
	output    bytes.Buffer
	yamlCache map[string]interface{}
}

var _ bindgen.WorkDirGenerator = (*Generator)(nil)

// New returns a generator for the given script file
func New(script string) (*Generator, error) {
	script, err := filepath.Abs(script)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to resolve %s", script)
	}

	info, err := os.Stat(script)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to check script %s", script)
	}
	if info.IsDir() {
		return nil, eris.Errorf("%s is a directory", script)
	}

	return &Generator{script: script}, nil
}

// WorkDir returns the script's directory
func (g *Generator) WorkDir() string {
	return filepath.Dir(g.script)
}

// Prepare loads the script with fresh globals, clears the output and calls prepare()
func (g *Generator) Prepare(ctx context.Context) error {
	g.ctx = ctx
	g.output.Reset()
	g.yamlCache = make(map[string]interface{})

	g.thread = &starlark.Thread{
		Name: "bindgen",
		Print: func(thread *starlark.Thread, msg string) {
			bindgen.Log(ctx).Info().Str("thread", thread.Name).Msg(msg)
		},
	}
	g.thread.SetLocal(localKey, g)

	script, err := os.ReadFile(g.script)
	if err != nil {
		return eris.Wrapf(err, "failed to read %s", g.script)
	}

	predeclared := starlark.StringDict{
		"OS":   starlark.String(runtime.GOOS),
		"ARCH": starlark.String(runtime.GOARCH),
	}

	builtins := map[string]builtinFunc{
		"info":         logBuiltin(zerolog.InfoLevel),
		"warn":         logBuiltin(zerolog.WarnLevel),
		"error":        fail,
		"getenv":       getenv,
		"emit":         emit,
		"read_file":    readFile,
		"write_file":   writeFile,
		"isfile":       statBuiltin(isRegular),
		"isdir":        statBuiltin(isDir),
		"read_yaml":    readYaml,
		"header_decls": headerDecls,
		"execute":      execute,
	}
	for name, fn := range builtins {
		predeclared[name] = starlark.NewBuiltin(name, fn)
	}

	g.globals, err = starlark.ExecFile(g.thread, g.script, script, predeclared)
	if err != nil {
		return wrapEvalError(err, "failed to execute "+g.script)
	}

	if _, ok := g.globals["gen"]; !ok {
		return eris.Errorf("%s did not declare a gen function", g.script)
	}

	return g.call("prepare", false)
}

// Gen calls gen(header, prefix, deps). Output emitted by a failing call is discarded.
func (g *Generator) Gen(ctx context.Context, task bindgen.Task) error {
	if g.thread == nil {
		return eris.New("gen called before prepare")
	}
	g.ctx = ctx

	deps := make([]starlark.Value, len(task.Deps))
	for idx, dep := range task.Deps {
		deps[idx] = starlark.String(dep)
	}

	mark := g.output.Len()
	err := g.call("gen", true, starlark.String(task.Header), starlark.String(task.Prefix), starlark.NewList(deps))
	if err != nil {
		g.output.Truncate(mark)
		return err
	}
	return nil
}

// Finalize calls finalize(output) and writes the collected output to the given path
func (g *Generator) Finalize(ctx context.Context, output string) error {
	if g.thread == nil {
		return eris.New("finalize called before prepare")
	}
	g.ctx = ctx

	err := g.call("finalize", false, starlark.String(output))
	if err != nil {
		return err
	}

	err = os.WriteFile(output, g.output.Bytes(), 0o644)
	if err != nil {
		return eris.Wrapf(err, "failed to write %s", output)
	}
	return nil
}

func (g *Generator) call(name string, required bool, args ...starlark.Value) error {
	value, ok := g.globals[name]
	if !ok {
		if required {
			return eris.Errorf("%s did not declare a %s function", g.script, name)
		}
		return nil
	}

	fn, ok := value.(starlark.Callable)
	if !ok {
		return eris.Errorf("%s did declare a %s value but it's not a function", g.script, name)
	}

	_, err := starlark.Call(g.thread, fn, starlark.Tuple(args), nil)
	if err != nil {
		return wrapEvalError(err, "failed "+name+" call")
	}
	return nil
}
