package lint

import (
	"context"
	"errors"
	"go/token"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gnolang/tpat/internal/types"
)

type mockLintEngine struct {
	mock.Mock
}

func (m *mockLintEngine) Run(filePath string) ([]types.Issue, error) {
	args := m.Called(filePath)
	return args.Get(0).([]types.Issue), args.Error(1)
}

func (m *mockLintEngine) RunSource(source []byte) ([]types.Issue, error) {
	args := m.Called(source)
	return args.Get(0).([]types.Issue), args.Error(1)
}

func (m *mockLintEngine) IgnoreRule(rule string) {
	m.Called(rule)
}

func (m *mockLintEngine) IgnorePath(path string) {
	m.Called(path)
}

func issueAt(rule, filename string, line int) types.Issue {
	return types.Issue{
		Rule:     rule,
		Filename: filename,
		Start:    token.Position{Filename: filename, Line: line, Column: 1},
		End:      token.Position{Filename: filename, Line: line, Column: 11},
		Message:  "Test issue",
	}
}

func TestProcessFile(t *testing.T) {
	t.Parallel()
	expectedIssues := []types.Issue{issueAt("test-rule", "test.go", 1)}
	mockEngine := new(mockLintEngine)
	mockEngine.On("Run", "test.go").Return(expectedIssues, nil)

	issues, err := ProcessFile(mockEngine, "test.go")

	assert.NoError(t, err)
	assert.Equal(t, expectedIssues, issues)
	mockEngine.AssertExpectations(t)
}

func TestProcessSource(t *testing.T) {
	t.Parallel()
	expectedIssues := []types.Issue{issueAt("test-rule", "", 1)}
	mockEngine := new(mockLintEngine)
	mockEngine.On("RunSource", []byte("package main")).Return(expectedIssues, nil)

	issues, err := ProcessSource(mockEngine, []byte("package main"))

	assert.NoError(t, err)
	assert.Equal(t, expectedIssues, issues)
	mockEngine.AssertExpectations(t)
}

func TestProcessPath(t *testing.T) {
	t.Parallel()
	tempDir := t.TempDir()
	paths := createTempFiles(t, tempDir, "test1.go", "sub/test2.gno", "notes.txt")

	first := issueAt("rule1", paths[0], 4)
	second := issueAt("rule2", paths[1], 1)
	earlier := issueAt("rule3", paths[0], 2)

	mockEngine := new(mockLintEngine)
	mockEngine.On("Run", paths[0]).Return([]types.Issue{first, earlier}, nil)
	mockEngine.On("Run", paths[1]).Return([]types.Issue{second}, nil)

	issues, err := ProcessPath(context.Background(), zap.NewNop(), mockEngine, tempDir, ProcessFile)

	require.NoError(t, err)
	assert.Equal(t, []types.Issue{second, earlier, first}, issues, "sorted by file and line")
	mockEngine.AssertExpectations(t)
	mockEngine.AssertNotCalled(t, "Run", paths[2])
}

func TestProcessPathCollectsFileErrors(t *testing.T) {
	t.Parallel()
	tempDir := t.TempDir()
	paths := createTempFiles(t, tempDir, "bad.go", "good.go")
	parseErr := errors.New("error parsing file")

	mockEngine := new(mockLintEngine)
	mockEngine.On("Run", paths[0]).Return([]types.Issue(nil), parseErr)
	mockEngine.On("Run", paths[1]).Return([]types.Issue{issueAt("rule", paths[1], 1)}, nil)

	issues, err := ProcessPath(context.Background(), nil, mockEngine, tempDir, ProcessFile)

	require.Error(t, err)
	assert.ErrorIs(t, err, parseErr)
	assert.Contains(t, err.Error(), paths[0])
	assert.Len(t, issues, 1, "the good file is still reported")
}

func TestProcessPathSingleFile(t *testing.T) {
	t.Parallel()
	tempDir := t.TempDir()
	paths := createTempFiles(t, tempDir, "one.go", "readme.md")

	mockEngine := new(mockLintEngine)
	mockEngine.On("Run", paths[0]).Return([]types.Issue{issueAt("rule", paths[0], 1)}, nil)

	issues, err := ProcessPath(context.Background(), nil, mockEngine, paths[0], ProcessFile)
	require.NoError(t, err)
	assert.Len(t, issues, 1)

	issues, err = ProcessPath(context.Background(), nil, mockEngine, paths[1], ProcessFile)
	require.NoError(t, err)
	assert.Empty(t, issues)
	mockEngine.AssertNumberOfCalls(t, "Run", 1)

	_, err = ProcessPath(context.Background(), nil, mockEngine, filepath.Join(tempDir, "missing"), ProcessFile)
	assert.Error(t, err)
}

func TestProcessFiles(t *testing.T) {
	t.Parallel()
	tempDir := t.TempDir()
	paths := createTempFiles(t, tempDir, "test1.go", "test2.go")

	expectedIssues := []types.Issue{
		issueAt("rule1", paths[0], 1),
		issueAt("rule2", paths[1], 1),
	}

	mockEngine := new(mockLintEngine)
	mockEngine.On("Run", paths[0]).Return([]types.Issue{expectedIssues[0]}, nil)
	mockEngine.On("Run", paths[1]).Return([]types.Issue{expectedIssues[1]}, nil)

	issues, err := ProcessFiles(context.Background(), zap.NewNop(), mockEngine, paths, ProcessFile)

	assert.NoError(t, err)
	assert.Equal(t, expectedIssues, issues)
	mockEngine.AssertExpectations(t)
}

func TestProcessSources(t *testing.T) {
	t.Parallel()
	expectedIssues := []types.Issue{
		issueAt("rule1", "", 1),
		issueAt("rule2", "", 2),
	}

	mockEngine := new(mockLintEngine)
	mockEngine.On("RunSource", []byte("package main1")).Return([]types.Issue{expectedIssues[0]}, nil)
	mockEngine.On("RunSource", []byte("package main2")).Return([]types.Issue{expectedIssues[1]}, nil)

	issues, err := ProcessSources(context.Background(), zap.NewNop(), mockEngine, [][]byte{[]byte("package main1"), []byte("package main2")}, ProcessSource)

	assert.NoError(t, err)
	assert.Equal(t, expectedIssues, issues)
	mockEngine.AssertExpectations(t)
}

func TestSourceFiles(t *testing.T) {
	t.Parallel()
	tempDir := t.TempDir()
	paths := createTempFiles(t, tempDir, "a.go", "sub/b.gno", "c.txt")

	files, err := SourceFiles(tempDir)
	require.NoError(t, err)
	assert.ElementsMatch(t, paths[:2], files)

	files, err = SourceFiles(paths[0])
	require.NoError(t, err)
	assert.Equal(t, []string{paths[0]}, files)

	files, err = SourceFiles(paths[2])
	require.NoError(t, err)
	assert.Empty(t, files)

	_, err = SourceFiles(filepath.Join(tempDir, "missing"))
	assert.Error(t, err)
}

func TestHasDesiredExtension(t *testing.T) {
	t.Parallel()
	assert.True(t, hasDesiredExtension("test.go"))
	assert.True(t, hasDesiredExtension("test.gno"))
	assert.False(t, hasDesiredExtension("test.txt"))
	assert.False(t, hasDesiredExtension("test"))
}

func createTempFiles(t *testing.T, dir string, fileNames ...string) []string {
	t.Helper()
	paths := make([]string, 0, len(fileNames))
	for _, fileName := range fileNames {
		filePath := filepath.Join(dir, fileName)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0o755))
		require.NoError(t, os.WriteFile(filePath, nil, 0o644))
		paths = append(paths, filePath)
	}
	return paths
}
