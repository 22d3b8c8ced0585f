package bindgen

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x\n"), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestUpToDate(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	header := filepath.Join(dir, "sokol_gfx.h")
	output := filepath.Join(dir, "sokol.inl")

	touch(t, header, now.Add(-time.Hour))

	fresh, err := UpToDate(output, []string{header})
	require.NoError(t, err)
	assert.False(t, fresh, "missing output is never up to date")

	touch(t, output, now)
	fresh, err = UpToDate(output, []string{header})
	require.NoError(t, err)
	assert.True(t, fresh)

	touch(t, header, now.Add(time.Hour))
	fresh, err = UpToDate(output, []string{header})
	require.NoError(t, err)
	assert.False(t, fresh)
}

func TestUpToDateMissingInput(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "sokol.inl")
	touch(t, output, time.Now())

	_, err := UpToDate(output, []string{filepath.Join(dir, "missing.h")})
	assert.Error(t, err)
}
