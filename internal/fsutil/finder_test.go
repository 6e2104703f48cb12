package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindFilesByExtension(t *testing.T) {
	t.Run("finds matching files recursively", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(root, "nested"), 0o755))
		for _, name := range []string{"a.hcl", "nested/b.hcl", "nested/ignore.json"} {
			require.NoError(t, os.WriteFile(filepath.Join(root, name), nil, 0o644))
		}

		files, err := FindFilesByExtension(root, ".hcl")
		require.NoError(t, err)
		require.Len(t, files, 2)
		assert.Contains(t, files, filepath.Join(root, "a.hcl"))
		assert.Contains(t, files, filepath.Join(root, "nested", "b.hcl"))
	})

	t.Run("empty directory yields no files", func(t *testing.T) {
		files, err := FindFilesByExtension(t.TempDir(), ".hcl")
		require.NoError(t, err)
		assert.Empty(t, files)
	})

	t.Run("missing root is an error", func(t *testing.T) {
		_, err := FindFilesByExtension(filepath.Join(t.TempDir(), "missing"), ".hcl")
		assert.Error(t, err)
	})

	t.Run("empty extension panics", func(t *testing.T) {
		assert.Panics(t, func() {
			_, _ = FindFilesByExtension(t.TempDir(), "")
		})
	})
}
