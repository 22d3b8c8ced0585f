package cmd

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/takeiteasy/sokol-hpp/tools/pkg/bindgen"
	"github.com/takeiteasy/sokol-hpp/tools/pkg/config"
)

const testScript = `
def gen(header, prefix, deps):
    if not isfile(header):
        error("missing header " + header)
    emit("// ", prefix, " ", str(len(deps)), "\n")
`

const testManifest = `
tasks:
  - header: include/a.h
    prefix: a_
  - header: include/missing.h
    prefix: m_
  - header: include/b.h
    prefix: b_
    deps: [a_]
`

type project struct {
	dir    string
	config string
	output string
}

func setupProject(t *testing.T) project {
	t.Helper()
	t.Setenv("NO_COLOR", "1")

	cache := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", cache)
	t.Setenv("HOME", cache)

	dir := t.TempDir()
	files := map[string]string{
		"sokolgen.toml":    "backend = \"starlark\"\ntasks = \"tasks.yml\"\n\n[starlark]\nscript = \"gen/bindgen.star\"\n",
		"tasks.yml":        testManifest,
		"gen/bindgen.star": testScript,
		"gen/include/a.h":  "void a_init(void);\n",
		"gen/include/b.h":  "void b_init(void);\n",
	}

	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	return project{
		dir:    dir,
		config: filepath.Join(dir, "sokolgen.toml"),
		output: filepath.Join(dir, "out", "sokol.inl"),
	}
}

func runCli(t *testing.T, args ...string) (int, string, string) {
	t.Helper()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	code := run(context.Background(), args, stdout, stderr)
	return code, stdout.String(), stderr.String()
}

func TestGenerate(t *testing.T) {
	p := setupProject(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(p.output), 0o755))

	before, err := os.Getwd()
	require.NoError(t, err)

	code, _, logs := runCli(t, "--config", p.config, "-o", p.output)
	require.Equal(t, 0, code, logs)

	after, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, before, after)

	data, err := os.ReadFile(p.output)
	require.NoError(t, err)
	assert.Equal(t, "// a_ 0\n// b_ 1\n", string(data))

	assert.Contains(t, logs, "Generating sokol.inl...")
	assert.Contains(t, logs, "skipped m_ due to error: ")
	assert.Contains(t, logs, "Traceback (most recent call last)")
	assert.Contains(t, logs, "bindgen.star")
	assert.Contains(t, logs, "Successfully generated")
	assert.Contains(t, logs, "Generated 2 lines of code")
	assert.Contains(t, logs, "1 of 3 tasks skipped (m_)")
}

func TestGenerateSubcommand(t *testing.T) {
	p := setupProject(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(p.output), 0o755))

	code, _, logs := runCli(t, "generate", "--config", p.config, "--output", p.output, "--progress")
	require.Equal(t, 0, code, logs)
	assert.FileExists(t, p.output)
}

func TestGenerateStrict(t *testing.T) {
	p := setupProject(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(p.output), 0o755))

	code, _, logs := runCli(t, "--config", p.config, "-o", p.output, "--strict")
	assert.Equal(t, 2, code)
	assert.Contains(t, logs, "strict mode")

	// the artifact is still written
	assert.FileExists(t, p.output)
}

func TestGenerateFatal(t *testing.T) {
	p := setupProject(t)

	// the output directory doesn't exist so the generated file can't be written
	code, _, logs := runCli(t, "--config", p.config, "-o", p.output)
	assert.Equal(t, 1, code)
	assert.Contains(t, logs, "Error: Generation failed")
	assert.NotContains(t, logs, "Successfully generated")
	assert.NoFileExists(t, p.output)
}

func TestGenerateDryRun(t *testing.T) {
	p := setupProject(t)

	code, stdout, logs := runCli(t, "--config", p.config, "-o", p.output, "--dry")
	require.Equal(t, 0, code, logs)

	assert.Contains(t, stdout, "Would generate "+p.output+" with the starlark backend")
	assert.Contains(t, stdout, "a_ from include/a.h")
	assert.Contains(t, stdout, "b_ from include/b.h (deps: a_)")
	assert.NoFileExists(t, p.output)
}

func TestGenerateIfChanged(t *testing.T) {
	p := setupProject(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(p.output), 0o755))

	// the missing header can't be checked so the generator runs anyway
	code, _, logs := runCli(t, "--config", p.config, "-o", p.output, "--if-changed")
	require.Equal(t, 0, code, logs)
	assert.Contains(t, logs, "Could not check whether the output is up to date")
	assert.FileExists(t, p.output)

	// the previous run skipped a task so this one can't be skipped
	require.NoError(t, os.WriteFile(filepath.Join(p.dir, "gen", "include", "missing.h"), []byte("\n"), 0o644))
	code, _, logs = runCli(t, "--config", p.config, "-o", p.output, "--if-changed")
	require.Equal(t, 0, code, logs)
	assert.NotContains(t, logs, "is up to date")

	data, err := os.ReadFile(p.output)
	require.NoError(t, err)
	assert.Equal(t, "// a_ 0\n// m_ 0\n// b_ 1\n", string(data))

	future := time.Now().Add(time.Hour)
	require.NoError(t, os.WriteFile(p.output, []byte("// cached\n"), 0o644))
	require.NoError(t, os.Chtimes(p.output, future, future))

	code, _, logs = runCli(t, "--config", p.config, "-o", p.output, "--if-changed")
	require.Equal(t, 0, code, logs)
	assert.Contains(t, logs, "is up to date")

	data, err = os.ReadFile(p.output)
	require.NoError(t, err)
	assert.Equal(t, "// cached\n", string(data))

	// a different task list invalidates the output even though it's newer than every input
	other := filepath.Join(p.dir, "other.yml")
	require.NoError(t, os.WriteFile(other, []byte("tasks:\n  - header: include/a.h\n    prefix: a_\n"), 0o644))

	code, _, logs = runCli(t, "--config", p.config, "-o", p.output, "--if-changed", "--tasks", other)
	require.Equal(t, 0, code, logs)
	assert.NotContains(t, logs, "is up to date")

	data, err = os.ReadFile(p.output)
	require.NoError(t, err)
	assert.Equal(t, "// a_ 0\n", string(data))
}

func TestGenerateInvalidConfig(t *testing.T) {
	p := setupProject(t)

	code, _, logs := runCli(t, "--config", p.config, "--backend", "lua")
	assert.Equal(t, 1, code)
	assert.Contains(t, logs, "Invalid configuration")
}

func TestGenerateMissingBindgenDir(t *testing.T) {
	p := setupProject(t)

	code, _, logs := runCli(t, "--config", p.config, "--backend", "python", "--bindgen-dir", filepath.Join(p.dir, "nope"))
	assert.Equal(t, 1, code)
	assert.Contains(t, logs, "Failed to set up the generator")
}

func TestUsageError(t *testing.T) {
	code, _, stderr := runCli(t, "--no-such-flag")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "no-such-flag")
	assert.Contains(t, stderr, "sokolgen --help")
}

func TestTasks(t *testing.T) {
	p := setupProject(t)

	code, stdout, logs := runCli(t, "tasks", "--config", p.config)
	require.Equal(t, 0, code, logs)

	assert.Contains(t, stdout, "Tasks from "+filepath.Join(p.dir, "tasks.yml")+":")
	assert.Contains(t, stdout, " * a_:   include/a.h\n")
	assert.Contains(t, stdout, " * b_:   include/b.h (deps: a_)\n")
	assert.Contains(t, stdout, "Output: sokol.inl\n")
}

func TestTasksBuiltin(t *testing.T) {
	p := setupProject(t)
	require.NoError(t, os.WriteFile(p.config, []byte("backend = \"python\"\n"), 0o644))

	code, stdout, logs := runCli(t, "tasks", "--config", p.config)
	require.Equal(t, 0, code, logs)

	assert.Contains(t, stdout, "Built-in tasks:")
	assert.Contains(t, stdout, " * slog_:     ../sokol_log.h\n")
	assert.Contains(t, stdout, " * saudio_:   ../sokol_audio.h\n")
}

func TestGenerateDryRunWithoutBindgenDir(t *testing.T) {
	p := setupProject(t)
	bindgenDir := filepath.Join(p.dir, "not-cloned-yet")

	code, stdout, logs := runCli(t, "--config", p.config, "--backend", "python", "--bindgen-dir", bindgenDir, "--dry")
	require.Equal(t, 0, code, logs)
	assert.Contains(t, stdout, "with the python backend")
	assert.Contains(t, stdout, "generator directory: "+bindgenDir)
}

func TestSessionInputs(t *testing.T) {
	p := setupProject(t)
	bindgenDir := filepath.Join(p.dir, "bindgen")
	require.NoError(t, os.MkdirAll(bindgenDir, 0o755))
	for _, name := range []string{"gen_cpp.py", "gen_util.py", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(bindgenDir, name), []byte("\n"), 0o644))
	}

	cfg, err := config.Load(p.config)
	require.NoError(t, err)
	cfg.Backend = "python"
	cfg.Bindgen.Dir = "bindgen"

	s := &session{
		cfg:      cfg,
		tasks:    bindgen.TaskList{{Header: "../sokol_gfx.h", Prefix: "sg_"}},
		manifest: filepath.Join(p.dir, "tasks.yml"),
	}

	expected := []string{
		filepath.Join(p.dir, "sokol_gfx.h"),
		filepath.Join(p.dir, "tasks.yml"),
		p.config,
		filepath.Join(bindgenDir, "gen_cpp.py"),
		filepath.Join(bindgenDir, "gen_util.py"),
	}
	if diff := cmp.Diff(expected, s.inputs()); diff != "" {
		t.Errorf("unexpected inputs (-want +got):\n%s", diff)
	}
}

// ageProject moves the mtime of every project file an hour into the past and the output half an
// hour into the past, so only files touched afterwards count as changed.
func ageProject(t *testing.T, dir, output string) {
	t.Helper()

	past := time.Now().Add(-time.Hour)
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		return os.Chtimes(path, past, past)
	})
	require.NoError(t, err)

	recent := past.Add(30 * time.Minute)
	require.NoError(t, os.Chtimes(output, recent, recent))
}

func TestGenerateIfChangedConfigEdit(t *testing.T) {
	p := setupProject(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(p.output), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(p.dir, "gen", "include", "missing.h"), []byte("\n"), 0o644))

	code, _, logs := runCli(t, "--config", p.config, "-o", p.output)
	require.Equal(t, 0, code, logs)

	ageProject(t, p.dir, p.output)
	code, _, logs = runCli(t, "--config", p.config, "-o", p.output, "--if-changed")
	require.Equal(t, 0, code, logs)
	assert.Contains(t, logs, "is up to date")

	cfg, err := os.ReadFile(p.config)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(p.config, append(cfg, []byte("# touched\n")...), 0o644))

	code, _, logs = runCli(t, "--config", p.config, "-o", p.output, "--if-changed")
	require.Equal(t, 0, code, logs)
	assert.NotContains(t, logs, "is up to date")
	assert.Contains(t, logs, "Successfully generated")
}

const versionedModule = `
_out = []

def prepare():
    _out.clear()

def gen(header, prefix, deps):
    _out.append('// %s %s\n' % (VERSION, prefix))

def finalize(path):
    with open(path, 'w') as f:
        f.write(''.join(_out))
`

func TestGenerateIfChangedPythonModule(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 is not available")
	}
	// a stale bytecode cache would hide the edit below
	t.Setenv("PYTHONDONTWRITEBYTECODE", "1")

	p := setupProject(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(p.output), 0o755))

	bindgenDir := filepath.Join(p.dir, "bindgen")
	require.NoError(t, os.MkdirAll(bindgenDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bindgenDir, "fakegen.py"), []byte("VERSION = 'v1'\n"+versionedModule), 0o644))
	require.NoError(t, os.WriteFile(p.config, []byte(
		"backend = \"python\"\n\n[bindgen]\ndir = \"bindgen\"\n\n[python]\nmodule = \"fakegen\"\n"), 0o644))

	manifest := filepath.Join(p.dir, "tasks.yml")
	require.NoError(t, os.WriteFile(manifest, []byte("tasks:\n  - header: ../gen/include/a.h\n    prefix: a_\n"), 0o644))

	args := []string{"--config", p.config, "-o", p.output, "--tasks", manifest, "--if-changed"}
	code, _, logs := runCli(t, args...)
	require.Equal(t, 0, code, logs)

	ageProject(t, p.dir, p.output)
	code, _, logs = runCli(t, args...)
	require.Equal(t, 0, code, logs)
	assert.Contains(t, logs, "is up to date")

	require.NoError(t, os.WriteFile(filepath.Join(bindgenDir, "fakegen.py"), []byte("VERSION = 'v2'\n"+versionedModule), 0o644))

	code, _, logs = runCli(t, args...)
	require.Equal(t, 0, code, logs)
	assert.NotContains(t, logs, "is up to date")

	data, err := os.ReadFile(p.output)
	require.NoError(t, err)
	assert.Equal(t, "// v2 a_\n", string(data))
}
