package bindgen

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
)

// UpToDate reports whether output exists and is newer than all inputs. All inputs have to exist.
func UpToDate(output string, inputs []string) (bool, error) {
	var newestInput time.Time
	for _, item := range inputs {
		info, err := os.Stat(item)
		if err != nil {
			return false, eris.Wrapf(err, "Failed to check input %s", item)
		}

		if info.ModTime().Sub(newestInput) > 0 {
			newestInput = info.ModTime()
		}
	}

	info, err := os.Stat(output)
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, eris.Wrapf(err, "Failed to check output %s", output)
	}

	return info.ModTime().Sub(newestInput) > 0, nil
}
