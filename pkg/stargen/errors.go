package stargen

import (
	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"
)

// ScriptError is returned when the script failed. It carries the Starlark backtrace.
type ScriptError struct {
	Message   string
	Backtrace string
}

func (e *ScriptError) Error() string {
	return e.Message
}

// Trace returns the Starlark backtrace
func (e *ScriptError) Trace() string {
	return e.Backtrace
}

func wrapEvalError(err error, msg string) error {
	if evalError, ok := err.(*starlark.EvalError); ok {
		return &ScriptError{
			Message:   evalError.Msg,
			Backtrace: evalError.Backtrace(),
		}
	}

	return eris.Wrap(err, msg)
}
