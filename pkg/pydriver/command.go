package pydriver

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/shell"
)

// SplitCommand splits an interpreter command line like a POSIX shell would. Variables are expanded
// from env first and the process environment second.
func SplitCommand(command string, env []string) ([]string, error) {
	fields, err := shell.Fields(command, func(name string) string {
		for idx := len(env) - 1; idx >= 0; idx-- {
			parts := strings.SplitN(env[idx], "=", 2)
			if len(parts) == 2 && parts[0] == name {
				return parts[1]
			}
		}
		return os.Getenv(name)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "failed to parse command %s", command)
	}

	if len(fields) == 0 {
		return nil, eris.New("empty interpreter command")
	}
	return fields, nil
}
