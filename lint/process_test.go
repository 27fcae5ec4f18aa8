package lint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tt "github.com/gnolang/tpat/internal/types"
)

func writeReadAllFiles(t *testing.T, dir string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		filename := filepath.Join(dir, fmt.Sprintf("test%d.go", i))
		content := fmt.Sprintf(`package main

import (
	"io/ioutil"
	"os"
)

func test%d() {
	data, _ := ioutil.ReadAll(os.Stdin)
	_ = data
}
`, i)
		require.NoError(t, os.WriteFile(filename, []byte(content), 0o644))
	}
}

func TestNewWithConfiguration(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	config := filepath.Join(dir, ".tpat.yaml")
	require.NoError(t, os.WriteFile(config, []byte(`rules:
  - id: ioutil-readall
    enabled: false
  - id: no-println
    pattern: println($args$)
`), 0o644))

	engine, err := New(nil, config)
	require.NoError(t, err)
	_, ok := engine.Registry().Lookup("no-println")
	assert.True(t, ok)

	file := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(file, []byte(`package main

import "io/ioutil"

func main() {
	println("debug")
	_, _ = ioutil.ReadAll(nil)
}
`), 0o644))

	issues, err := ProcessPath(context.Background(), nil, engine, file, ProcessFile)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "no-println", issues[0].Rule)
}

func TestNewErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	_, err := New(nil, filepath.Join(dir, "missing.yaml"))
	assert.NoError(t, err, "a missing configuration falls back to the built-in rules")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("rules:\n  - id: orphan\n"), 0o644))
	_, err = New(nil, bad)
	assert.Error(t, err)
}

// TestProcessPathContextCancellation tests that context cancellation is handled properly
func TestProcessPathContextCancellation(t *testing.T) {
	t.Parallel()
	tempDir := t.TempDir()
	writeReadAllFiles(t, tempDir, 10)

	engine, err := New(nil, "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	issues, err := ProcessPath(ctx, nil, engine, tempDir, ProcessFile)

	assert.ErrorIs(t, err, context.Canceled)
	assert.NotNil(t, issues, "partial results are returned")
}

func TestProcessPathWithEngine(t *testing.T) {
	t.Parallel()
	tempDir := t.TempDir()
	writeReadAllFiles(t, tempDir, 5)

	engine, err := New(nil, "")
	require.NoError(t, err)

	issues, err := ProcessPath(context.Background(), nil, engine, tempDir, ProcessFile)
	require.NoError(t, err)
	require.Len(t, issues, 5)

	files := make(map[string]bool)
	for _, issue := range issues {
		assert.Equal(t, "ioutil-readall", issue.Rule)
		files[issue.Filename] = true
	}
	assert.Len(t, files, 5)
}

// TestConcurrentProcessingWithErrors tests error handling in concurrent processing
func TestConcurrentProcessingWithErrors(t *testing.T) {
	t.Parallel()
	tempDir := t.TempDir()
	writeReadAllFiles(t, tempDir, 3)

	invalidFile := filepath.Join(tempDir, "invalid.go")
	require.NoError(t, os.WriteFile(invalidFile, []byte("this is not valid go code"), 0o644))

	engine, err := New(nil, "")
	require.NoError(t, err)

	issues, err := ProcessPath(context.Background(), nil, engine, tempDir, ProcessFile)

	assert.Error(t, err, "Should return error from failed file")
	assert.Len(t, issues, 3, "Should process valid files even with errors")
}

// TestErrorPropagationSingleFile tests that errors are properly propagated for single files
func TestErrorPropagationSingleFile(t *testing.T) {
	t.Parallel()
	invalidFile := filepath.Join(t.TempDir(), "invalid.go")
	require.NoError(t, os.WriteFile(invalidFile, []byte("this is not valid go code"), 0o644))

	engine, err := New(nil, "")
	require.NoError(t, err)

	issues, err := ProcessPath(context.Background(), nil, engine, invalidFile, ProcessFile)

	assert.Error(t, err, "Should return parsing error")
	assert.Equal(t, []tt.Issue{}, issues)
}
