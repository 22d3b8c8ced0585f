package bindgen

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// RunState records what produced an output file
type RunState struct {
	// Generator identifies the backend and its location
	Generator string
	Tasks     TaskList
	// Skipped lists the prefixes of the tasks that failed
	Skipped []string
}

// NewRunState builds the state for a completed run
func NewRunState(generator string, report *Report) RunState {
	state := RunState{
		Generator: generator,
		Tasks:     make(TaskList, len(report.Results)),
	}

	for idx, result := range report.Results {
		state.Tasks[idx] = result.Task
		if !result.OK() {
			state.Skipped = append(state.Skipped, result.Task.Prefix)
		}
	}
	return state
}

// Matches reports whether the state describes a complete run of the given generator and tasks
func (s RunState) Matches(generator string, tasks TaskList) bool {
	if len(s.Skipped) > 0 || s.Generator != generator || len(s.Tasks) != len(tasks) {
		return false
	}

	for idx, task := range tasks {
		if !sameTask(s.Tasks[idx], task) {
			return false
		}
	}
	return true
}

func sameTask(a, b Task) bool {
	if a.Header != b.Header || a.Prefix != b.Prefix || len(a.Deps) != len(b.Deps) {
		return false
	}

	for idx := range a.Deps {
		if a.Deps[idx] != b.Deps[idx] {
			return false
		}
	}
	return true
}

// StatePath returns the location of the state file for the given output inside the user's cache
// directory
func StatePath(output string) (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", eris.Wrap(err, "Failed to locate the cache directory")
	}

	output, err = filepath.Abs(output)
	if err != nil {
		return "", eris.Wrapf(err, "Failed to resolve %s", output)
	}

	hash := sha256.Sum256([]byte(output))
	return filepath.Join(cacheDir, "sokolgen", hex.EncodeToString(hash[:8])+".state"), nil
}

// WriteState stores state in file, creating its directory if necessary
func WriteState(file string, state RunState) error {
	err := os.MkdirAll(filepath.Dir(file), 0o755)
	if err != nil {
		return eris.Wrapf(err, "Failed to create %s", filepath.Dir(file))
	}

	handle, err := os.Create(file)
	if err != nil {
		return eris.Wrapf(err, "Failed to open %s", file)
	}
	defer handle.Close()

	err = gob.NewEncoder(handle).Encode(state)
	if err != nil {
		return eris.Wrapf(err, "Failed to write %s", file)
	}

	return handle.Close()
}

// ReadState loads a state stored by WriteState
func ReadState(file string) (RunState, error) {
	var state RunState

	handle, err := os.Open(file)
	if err != nil {
		return state, eris.Wrapf(err, "Failed to open %s", file)
	}
	defer handle.Close()

	err = gob.NewDecoder(handle).Decode(&state)
	if err != nil {
		return state, eris.Wrapf(err, "Failed to decode %s", file)
	}

	return state, nil
}
