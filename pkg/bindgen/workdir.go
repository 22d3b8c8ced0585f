package bindgen

import (
	"os"

	"github.com/rotisserie/eris"
)

// enterDir changes the process' working directory to dir. The returned function restores the
// previous working directory.
func enterDir(dir string) (func() error, error) {
	prev, err := os.Getwd()
	if err != nil {
		return nil, eris.Wrap(err, "failed to retrieve the current working directory")
	}

	err = os.Chdir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to change into %s", dir)
	}

	return func() error {
		if err := os.Chdir(prev); err != nil {
			return eris.Wrapf(err, "failed to restore working directory %s", prev)
		}
		return nil
	}, nil
}
