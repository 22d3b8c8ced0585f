package config

import (
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigtoml"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// DefaultFile is searched for if no config file is passed explicitly
const DefaultFile = "sokolgen.toml"

// Settings describes all configuration options
type Settings struct {
	Output  string `default:"sokol.inl" usage:"Path of the generated file, relative to the working directory"`
	Backend string `default:"python" usage:"Generator backend (python or starlark)"`
	Tasks   string `usage:"YAML task manifest; the built-in sokol task list is used if empty"`
	Strict  bool   `default:"false" usage:"Exit with status 2 if a task was skipped"`
	Bindgen struct {
		Dir string `default:"../sokol/bindgen" usage:"Directory containing the bindgen module"`
	}
	Python struct {
		Command string `default:"python3 -u" usage:"Interpreter command line"`
		Module  string `default:"gen_cpp" usage:"Generator module inside the bindgen directory"`
		Version string `default:">= 3.6" usage:"Version constraint for the interpreter"`
	}
	Starlark struct {
		Script string `default:"bindgen.star" usage:"Generator script"`
	}
	Log struct {
		Level string `default:"info"`
		JSON  bool   `default:"false" usage:"Output JSONND instead of pretty console messages"`
	}
}

// Config holds the loaded settings and remembers where they were loaded from
type Config struct {
	Settings

	baseDir string
	file    string
}

var backends = map[string]bool{
	"python":   true,
	"starlark": true,
}

// Load reads the defaults, the given TOML file and SOKOLGEN_* environment variables (in that order).
// If file is empty, the closest DefaultFile in the working directory or one of its parents is used.
func Load(file string) (*Config, error) {
	cfg := Config{}
	files := []string{}

	if file == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, eris.Wrap(err, "Failed to retrieve the current working directory")
		}

		file, err = Find(wd)
		if err != nil {
			return nil, err
		}
	} else if _, err := os.Stat(file); err != nil {
		return nil, eris.Wrapf(err, "Could not open config file %s", file)
	}

	baseDir := "."
	if file != "" {
		files = append(files, file)
		baseDir = filepath.Dir(file)
	}

	var err error
	cfg.baseDir, err = filepath.Abs(baseDir)
	if err != nil {
		return nil, eris.Wrap(err, "Failed to resolve the config directory")
	}
	if file != "" {
		cfg.file = filepath.Join(cfg.baseDir, filepath.Base(file))
	}

	loader := aconfig.LoaderFor(&cfg.Settings, aconfig.Config{
		SkipFlags: true,
		EnvPrefix: "SOKOLGEN",
		Files:     files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".toml": aconfigtoml.New(),
		},
	})

	if err := loader.Load(); err != nil {
		return nil, eris.Wrap(err, "Failed to load config")
	}

	return &cfg, nil
}

// Validate verifies that all config fields have valid values
func (cfg *Config) Validate() error {
	if cfg.Output == "" {
		return eris.New("Invalid value for output: must not be empty")
	}

	if !backends[cfg.Backend] {
		return eris.Errorf("Invalid value for backend: %s (must be python or starlark)", cfg.Backend)
	}

	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil || cfg.Log.Level == "" {
		return eris.Errorf("Invalid value for log.level: %s", cfg.Log.Level)
	}

	if cfg.Python.Version != "" {
		if _, err := semver.NewConstraint(cfg.Python.Version); err != nil {
			return eris.Wrapf(err, "Invalid value for python.version: %s", cfg.Python.Version)
		}
	}

	return nil
}

// LogLevel converts the .Log.Level field to a zerolog.Level
func (cfg *Config) LogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// File returns the absolute path of the loaded config file or an empty string if there was none
func (cfg *Config) File() string {
	return cfg.file
}

// Resolve turns a path from the config into an absolute path. Relative paths are interpreted
// relative to the config file's directory (or the working directory if there is no config file).
func (cfg *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(cfg.baseDir, path)
}

// Find looks for DefaultFile in start and all of its parents. It returns an empty string if there
// is none.
func Find(start string) (string, error) {
	path := start
	for {
		cfgPath := filepath.Join(path, DefaultFile)
		_, err := os.Stat(cfgPath)
		if err == nil {
			return cfgPath, nil
		}
		if !eris.Is(err, os.ErrNotExist) {
			return "", eris.Wrapf(err, "Failed to check %s", cfgPath)
		}

		parent := filepath.Dir(path)
		if parent == path {
			return "", nil
		}

		path = parent
	}
}
