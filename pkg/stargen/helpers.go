package stargen

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

var defaultOpenHandler = interp.DefaultOpenHandler()

func openHandler(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	if path == "/dev/null" {
		path = os.DevNull
	}

	return defaultOpenHandler(ctx, path, flag, perm)
}

// buildCallExpr turns a list of arguments into a shell command without any expansion
func buildCallExpr(parts starlark.Tuple) (*syntax.CallExpr, error) {
	if len(parts) == 0 {
		return nil, eris.New("empty command")
	}

	cmd := new(syntax.CallExpr)
	cmd.Args = make([]*syntax.Word, len(parts))
	for idx, arg := range parts {
		value, ok := starlark.AsString(arg)
		if !ok {
			return nil, eris.Errorf("found argument of type %s but only strings are supported: %s", arg.Type(), arg.String())
		}

		var wordPart syntax.WordPart
		if value == "" || strings.ContainsAny(value, " \t\n$'\"\\*?[]{}~;&|<>()`#") {
			node := new(syntax.SglQuoted)
			node.Value = value
			if strings.Contains(value, "'") {
				// single quotes can't be escaped inside '', $'' can
				node.Dollar = true
				node.Value = strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value)
			}
			wordPart = node
		} else {
			node := new(syntax.Lit)
			node.Value = value
			wordPart = node
		}

		cmd.Args[idx] = &syntax.Word{Parts: []syntax.WordPart{wordPart}}
	}

	return cmd, nil
}

func toStarlark(value interface{}) (starlark.Value, error) {
	switch value := value.(type) {
	case nil:
		return starlark.None, nil
	case string:
		return starlark.String(value), nil
	case bool:
		return starlark.Bool(value), nil
	case int:
		return starlark.MakeInt(value), nil
	case int64:
		return starlark.MakeInt64(value), nil
	case uint64:
		return starlark.MakeUint64(value), nil
	case float64:
		if value == float64(int64(value)) {
			return starlark.MakeInt64(int64(value)), nil
		}
		return starlark.Float(value), nil
	case []interface{}:
		items := make([]starlark.Value, len(value))
		for idx, raw := range value {
			item, err := toStarlark(raw)
			if err != nil {
				return nil, err
			}
			items[idx] = item
		}
		return starlark.NewList(items), nil
	case map[string]interface{}:
		dict := starlark.NewDict(len(value))
		for k, raw := range value {
			item, err := toStarlark(raw)
			if err != nil {
				return nil, err
			}

			err = dict.SetKey(starlark.String(k), item)
			if err != nil {
				return nil, err
			}
		}
		return dict, nil
	}

	return nil, eris.Errorf("encountered unsupported type %T", value)
}
