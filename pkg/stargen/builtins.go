package stargen

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
	"gopkg.in/yaml.v3"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/takeiteasy/sokol-hpp/tools/pkg/bindgen"
)

type builtinFunc = func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)

func getGenerator(thread *starlark.Thread) *Generator {
	return thread.Local(localKey).(*Generator)
}

// logBuiltin returns a builtin which logs its message together with the caller's position
func logBuiltin(level zerolog.Level) builtinFunc {
	return func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var msg string
		if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &msg); err != nil {
			return nil, err
		}

		pos := thread.CallFrame(1).Pos
		bindgen.Log(getGenerator(thread).ctx).WithLevel(level).
			Str("script", pos.Filename()).
			Msgf("%s:%d:%d: %s", filepath.Base(pos.Filename()), pos.Line, pos.Col, msg)
		return starlark.None, nil
	}
}

// fail aborts the current call. Inside gen() this skips the task.
func fail(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var msg string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &msg); err != nil {
		return nil, err
	}

	return nil, eris.New(msg)
}

func getenv(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	fallback := ""
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name, "default?", &fallback); err != nil {
		return nil, err
	}

	if value, ok := os.LookupEnv(name); ok {
		return starlark.String(value), nil
	}
	return starlark.String(fallback), nil
}

// statBuiltin returns a builtin which reports whether a path exists and satisfies check
func statBuiltin(check func(os.FileInfo) bool) builtinFunc {
	return func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var path string
		if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &path); err != nil {
			return nil, err
		}

		fi, err := os.Stat(path)
		return starlark.Bool(err == nil && check(fi)), nil
	}
}

func isDir(fi os.FileInfo) bool {
	return fi.IsDir()
}

func isRegular(fi os.FileInfo) bool {
	return fi.Mode().IsRegular()
}

func emit(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, eris.Errorf("%s: unexpected keyword arguments", fn.Name())
	}

	g := getGenerator(thread)
	for idx, arg := range args {
		value, ok := starlark.AsString(arg)
		if !ok {
			return nil, eris.Errorf("%s: argument %d is a %s but only strings are supported", fn.Name(), idx, arg.Type())
		}

		g.output.WriteString(value)
	}

	return starlark.None, nil
}

func readFile(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &path)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read %s", path)
	}

	return starlark.String(content), nil
}

func writeFile(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path string
	var content string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 2, &path, &content)
	if err != nil {
		return nil, err
	}

	err = os.WriteFile(path, []byte(content), 0o644)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to write %s", path)
	}

	return starlark.None, nil
}

func readYaml(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var yamlFile string
	var yamlKey string
	var defaultValue starlark.Value = starlark.None

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 2, &yamlFile, &yamlKey, &defaultValue)
	if err != nil {
		return nil, err
	}

	cache := getGenerator(thread).yamlCache
	doc, loaded := cache[yamlFile]
	if !loaded {
		content, err := os.ReadFile(yamlFile)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to open file %s", yamlFile)
		}

		err = yaml.Unmarshal(content, &doc)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to parse file %s", yamlFile)
		}
		cache[yamlFile] = doc
	}

	value := doc
	if yamlKey != "" {
		for _, key := range strings.Split(yamlKey, ".") {
			switch node := value.(type) {
			case map[string]interface{}:
				value = node[key]
			case []interface{}:
				idx, err := strconv.Atoi(key)
				if err != nil || idx < 0 || idx >= len(node) {
					value = nil
				} else {
					value = node[idx]
				}
			default:
				value = nil
			}

			if value == nil {
				return defaultValue, nil
			}
		}
	}

	if value == nil {
		return defaultValue, nil
	}
	return toStarlark(value)
}

func execute(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var command starlark.Value
	var format string
	var showError bool

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "command", &command, "format?", &format, "show_error?", &showError)
	if err != nil {
		return nil, err
	}

	if format == "" {
		format = "text"
	}

	if format != "text" && format != "json" {
		return nil, eris.Errorf("%s: unsupported format %q (expected text or json)", fn.Name(), format)
	}

	var nodes []syntax.Node
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))

	switch command := command.(type) {
	case starlark.String:
		file, err := parser.Parse(strings.NewReader(command.GoString()), fn.Name())
		if err != nil {
			return nil, eris.Wrapf(err, "failed to parse command %s", command.GoString())
		}

		for _, stmt := range file.Stmts {
			nodes = append(nodes, stmt)
		}
	case starlark.Tuple:
		expr, err := buildCallExpr(command)
		if err != nil {
			return nil, err
		}
		nodes = []syntax.Node{expr}
	case *starlark.List:
		parts := make(starlark.Tuple, command.Len())
		for idx := range parts {
			parts[idx] = command.Index(idx)
		}

		expr, err := buildCallExpr(parts)
		if err != nil {
			return nil, err
		}
		nodes = []syntax.Node{expr}
	default:
		return nil, eris.Errorf("unexpected type %s for command parameter, only strings, tuples and lists are valid", command.Type())
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, eris.Wrap(err, "failed to retrieve the current working directory")
	}

	stdout := strings.Builder{}
	var errOut io.Writer = os.Stderr
	if !showError {
		errOut = io.Discard
	}

	runner, err := interp.New(
		interp.Dir(wd),
		interp.Env(expand.ListEnviron(os.Environ()...)),
		interp.OpenHandler(openHandler),
		interp.StdIO(nil, &stdout, errOut),
		interp.Params("-e"),
	)
	if err != nil {
		return nil, eris.Wrap(err, "failed to set up the shell")
	}

	g := getGenerator(thread)
	for _, cmd := range nodes {
		err := runner.Run(g.ctx, cmd)
		if err != nil {
			if showError {
				bindgen.Log(g.ctx).Error().Err(err).Msg("shell error")
			}
			return starlark.False, nil
		}
	}

	if format == "json" {
		var decoded interface{}
		err = json.Unmarshal([]byte(stdout.String()), &decoded)
		if err != nil {
			return nil, eris.Wrap(err, "command output is not valid JSON")
		}

		return toStarlark(decoded)
	}

	return starlark.String(stdout.String()), nil
}

func headerDecls(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var header string
	var prefix string

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "header", &header, "prefix?", &prefix)
	if err != nil {
		return nil, err
	}

	handle, err := os.Open(header)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to open %s", header)
	}
	defer handle.Close()

	decls, err := ParseDecls(handle, prefix)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to parse %s", header)
	}

	result := make([]starlark.Value, len(decls))
	for idx, decl := range decls {
		item := starlark.NewDict(4)
		_ = item.SetKey(starlark.String("name"), starlark.String(decl.Name))
		_ = item.SetKey(starlark.String("ret"), starlark.String(decl.Return))
		_ = item.SetKey(starlark.String("params"), starlark.String(decl.Params))
		_ = item.SetKey(starlark.String("line"), starlark.MakeInt(decl.Line))
		result[idx] = item
	}

	return starlark.NewList(result), nil
}
