package bindgen

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

type manifest struct {
	Output string   `yaml:"output,omitempty"`
	Tasks  TaskList `yaml:"tasks"`
}

// LoadManifest reads a YAML task manifest. It returns the declared tasks and the optional output
// path (empty if the manifest doesn't declare one).
func LoadManifest(path string) (TaskList, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", eris.Wrapf(err, "Could not open file %s.", path)
	}

	tasks, output, err := ParseManifest(data)
	if err != nil {
		return nil, "", eris.Wrapf(err, "Failed to parse %s.", path)
	}
	return tasks, output, nil
}

// ParseManifest decodes a YAML task manifest
func ParseManifest(data []byte) (TaskList, string, error) {
	var doc manifest
	err := yaml.Unmarshal(data, &doc)
	if err != nil {
		return nil, "", eris.Wrap(err, "invalid YAML")
	}

	if len(doc.Tasks) == 0 {
		return nil, "", eris.New("no tasks declared")
	}

	for idx := range doc.Tasks {
		task := &doc.Tasks[idx]
		if task.Header == "" {
			return nil, "", eris.Errorf("task #%d is missing a header", idx)
		}
		if task.Prefix == "" {
			return nil, "", eris.Errorf("task #%d (%s) is missing a prefix", idx, task.Header)
		}
		if task.Deps == nil {
			task.Deps = []string{}
		}
	}

	return doc.Tasks, doc.Output, nil
}
