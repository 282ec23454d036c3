package storage

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *DiskStore {
	t.Helper()
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestSaveAndOpen(t *testing.T) {
	store := newTestStore(t)

	path, size, err := store.Save("report.pdf", strings.NewReader("pdf bytes"))
	require.NoError(t, err)
	assert.Equal(t, int64(9), size)
	assert.True(t, strings.HasSuffix(path, ".pdf"))
	assert.NotContains(t, path, "report")

	f, err := store.Open(path)
	require.NoError(t, err)
	defer f.Close()

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(data))
}

func TestSaveUniqueNames(t *testing.T) {
	store := newTestStore(t)

	path1, _, err := store.Save("a.txt", strings.NewReader("one"))
	require.NoError(t, err)
	path2, _, err := store.Save("a.txt", strings.NewReader("two"))
	require.NoError(t, err)

	assert.NotEqual(t, path1, path2)
}

func TestRemove(t *testing.T) {
	store := newTestStore(t)

	path, _, err := store.Save("doc.txt", strings.NewReader("content"))
	require.NoError(t, err)
	assert.True(t, store.Exists(path))

	require.NoError(t, store.Remove(path))
	assert.False(t, store.Exists(path))

	// Removing an already-gone file is not an error
	assert.NoError(t, store.Remove(path))
}

func TestResolveRejectsTraversal(t *testing.T) {
	store := newTestStore(t)

	for _, path := range []string{"../outside.txt", "/etc/passwd", "a/../../b", "."} {
		t.Run(path, func(t *testing.T) {
			_, err := store.Open(path)
			assert.Error(t, err)
			assert.False(t, store.Exists(path))
		})
	}
}

func TestSanitizeExt(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{".pdf", ".pdf"},
		{".PDF", ".pdf"},
		{".docx", ".docx"},
		{"", ""},
		{".we!rd", ""},
		{".averylongextension", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, sanitizeExt(tt.in), "ext %q", tt.in)
	}
}
