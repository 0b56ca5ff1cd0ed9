package fsops

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callOK(t *testing.T, p *Provider, name string, args map[string]any) map[string]any {
	t.Helper()
	result, err := p.Call(context.Background(), name, args)
	require.NoError(t, err)
	out, ok := result.(map[string]any)
	require.True(t, ok, "result should be a map")
	return out
}

func TestListEntries(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hi"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	out := callOK(t, NewProvider(), "fs_list", map[string]any{"path": dir})
	entries := out["entries"].([]map[string]any)
	require.Len(t, entries, 2)

	types := map[string]string{}
	for _, e := range entries {
		types[e["name"].(string)] = e["type"].(string)
	}
	assert.Equal(t, "file", types["a.txt"])
	assert.Equal(t, "directory", types["sub"])
}

func TestListRecursive(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub", "deep"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "f.txt"), []byte("x"), 0o644))

	out := callOK(t, NewProvider(), "fs_list", map[string]any{
		"path": dir, "recursive": true, "maxDepth": float64(2),
	})
	names := map[string]bool{}
	for _, e := range out["entries"].([]map[string]any) {
		names[e["name"].(string)] = true
	}
	assert.True(t, names["sub"])
	assert.True(t, names[filepath.Join("sub", "f.txt")])
	assert.True(t, names[filepath.Join("sub", "deep")])
}

func TestReadCapsLargeFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", ReadCap+100)), 0o644))

	out := callOK(t, NewProvider(), "fs_read", map[string]any{"path": path})
	assert.Equal(t, ReadCap, len(out["content"].(string)))
	assert.True(t, out["truncated"].(bool))
}

func TestReadMissingFile(t *testing.T) {
	_, err := NewProvider().Call(context.Background(), "fs_read", map[string]any{
		"path": filepath.Join(t.TempDir(), "nope.txt"),
	})
	assert.Error(t, err)
}

func TestReadRangeInclusive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lines.txt")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\nthree\nfour\n"), 0o644))

	out := callOK(t, NewProvider(), "fs_read_range", map[string]any{
		"path": path, "startLine": float64(2), "endLine": float64(3),
	})
	assert.Equal(t, "two\nthree", out["content"])
	assert.Equal(t, 4, out["totalLines"])
}

func TestReadRangeOpenEnded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lines.txt")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\nthree\n"), 0o644))

	out := callOK(t, NewProvider(), "fs_read_range", map[string]any{
		"path": path, "startLine": float64(2),
	})
	assert.Equal(t, "two\nthree", out["content"])
}

func TestWriteModes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	p := NewProvider()

	callOK(t, p, "fs_write", map[string]any{"path": path, "content": "first"})
	callOK(t, p, "fs_write", map[string]any{"path": path, "content": "+more", "mode": "append"})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first+more", string(data))

	out := callOK(t, p, "fs_write", map[string]any{
		"path": path, "content": "never", "mode": "create_if_missing",
	})
	assert.Equal(t, false, out["written"])

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first+more", string(data))
}

func TestWriteCreateParents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deep", "nested", "f.txt")

	callOK(t, NewProvider(), "fs_write", map[string]any{
		"path": path, "content": "x", "createDirs": true,
	})
	assert.FileExists(t, path)
}

func TestDeleteRequiresRecursiveForNonEmptyDir(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "f.txt"), []byte("x"), 0o644))

	p := NewProvider()
	_, err := p.Call(context.Background(), "fs_delete", map[string]any{"path": sub})
	assert.Error(t, err)

	callOK(t, p, "fs_delete", map[string]any{"path": sub, "recursive": true})
	assert.NoDirExists(t, sub)
}

func TestMove(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))

	callOK(t, NewProvider(), "fs_move", map[string]any{"source": src, "destination": dst})
	assert.NoFileExists(t, src)
	assert.FileExists(t, dst)
}

func TestSearchGlob(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a", "b"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "top.go"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "b", "deep.go"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "skip.txt"), []byte(""), 0o644))

	out := callOK(t, NewProvider(), "fs_search", map[string]any{"path": dir, "glob": "**/*.go"})
	matches := out["matches"].([]string)
	assert.Equal(t, 2, out["count"])
	assert.Len(t, matches, 2)
	assert.False(t, out["truncated"].(bool))
}

func TestSearchInvalidGlob(t *testing.T) {
	_, err := NewProvider().Call(context.Background(), "fs_search", map[string]any{
		"path": t.TempDir(), "glob": "[",
	})
	assert.Error(t, err)
}

func TestGrepFindsLineAndColumn(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"),
		[]byte("alpha\n  beta target\ngamma\n"), 0o644))

	out := callOK(t, NewProvider(), "fs_grep", map[string]any{"path": dir, "pattern": "target"})
	matches := out["matches"].([]map[string]any)
	require.Len(t, matches, 1)
	assert.Equal(t, 2, matches[0]["line"])
	assert.Equal(t, 8, matches[0]["column"])
	assert.Equal(t, "  beta target", matches[0]["text"])
}

func TestGrepGlobFilter(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("needle\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("needle\n"), 0o644))

	out := callOK(t, NewProvider(), "fs_grep", map[string]any{
		"path": dir, "pattern": "needle", "glob": "*.go",
	})
	assert.Equal(t, 1, out["count"])
}

func TestGrepResultLimit(t *testing.T) {
	dir := t.TempDir()
	content := strings.Repeat("hit\n", MaxResults+50)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "many.txt"), []byte(content), 0o644))

	out := callOK(t, NewProvider(), "fs_grep", map[string]any{"path": dir, "pattern": "hit"})
	assert.Equal(t, MaxResults, out["count"])
	assert.True(t, out["truncated"].(bool))
}

func TestPatchReplaceAndInsert(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\nthree"), 0o644))

	out := callOK(t, NewProvider(), "fs_patch", map[string]any{
		"path": path,
		"operations": []any{
			map[string]any{"type": "replace", "find": "two", "replace": "2"},
			map[string]any{"type": "insert", "line": float64(0), "text": "zero"},
		},
	})
	assert.Equal(t, 2, out["operationsApplied"])

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "zero\none\n2\nthree", string(data))
}

func TestPatchDryRunLeavesFileUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("before"), 0o644))

	out := callOK(t, NewProvider(), "fs_patch", map[string]any{
		"path":   path,
		"dryRun": true,
		"operations": []any{
			map[string]any{"type": "replace", "find": "before", "replace": "after"},
		},
	})
	assert.Equal(t, "after", out["preview"])

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "before", string(data))
}

func TestPatchReplaceMissingText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	_, err := NewProvider().Call(context.Background(), "fs_patch", map[string]any{
		"path": path,
		"operations": []any{
			map[string]any{"type": "replace", "find": "absent", "replace": "x"},
		},
	})
	assert.Error(t, err)
}

func TestUnknownTool(t *testing.T) {
	_, err := NewProvider().Call(context.Background(), "fs_chmod", map[string]any{})
	assert.Error(t, err)
}
