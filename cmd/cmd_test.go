package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gnolang/tpat/internal/rules"
)

// These tests share the package-level flag variables and never run in
// parallel.

const readAllSrc = `package main

import (
	"context"
	"io/ioutil"
	"os"
)

func main() {
	data, _ := ioutil.ReadAll(os.Stdin)
	ctx := context.TODO()
	_, _ = data, ctx
}
`

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func resetFlags(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfgFile = filepath.Join(dir, rules.DefaultConfigFile)
	timeout = defaultTimeout
	verbose = false
	enableRules, disableRules, ignorePaths = "", "", ""
	findJSONOutput, outPath, usePackages, cacheDir = false, "", false, ""
	dryRun, forceInit = false, false
	logger = zap.NewNop()
	return dir
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b "))
	assert.Nil(t, splitList(""))
}

func TestRunFindText(t *testing.T) {
	dir := resetFlags(t)
	path := writeSource(t, dir, "main.go", readAllSrc)

	engine, err := newEngine()
	require.NoError(t, err)

	var out bytes.Buffer
	err = runFind(context.Background(), &out, engine, []string{path})
	assert.ErrorIs(t, err, ErrIssuesFound)

	output := out.String()
	assert.Contains(t, output, "warning: ioutil-readall")
	assert.Contains(t, output, path+":10:13")
	assert.Contains(t, output, "Suggestion:")
	assert.Contains(t, output, `Note: adds import "io"`)
	assert.Contains(t, output, "info: context-todo")
}

func TestRunFindJSON(t *testing.T) {
	dir := resetFlags(t)
	path := writeSource(t, dir, "main.go", readAllSrc)
	findJSONOutput = true

	engine, err := newEngine()
	require.NoError(t, err)

	var out bytes.Buffer
	err = runFind(context.Background(), &out, engine, []string{path})
	assert.ErrorIs(t, err, ErrIssuesFound)

	var byFile map[string][]map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &byFile))
	require.Len(t, byFile[path], 2)
	assert.Equal(t, "ioutil-readall", byFile[path][0]["Rule"])
	assert.Equal(t, "warning", byFile[path][0]["Severity"])
	assert.Equal(t, "io.ReadAll(os.Stdin)", byFile[path][0]["Suggestion"])
	assert.NotContains(t, byFile[path][0], "Edit")

	outPath = filepath.Join(dir, "issues.json")
	out.Reset()
	err = runFind(context.Background(), &out, engine, []string{path})
	assert.ErrorIs(t, err, ErrIssuesFound)
	assert.Empty(t, out.String())
	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ioutil-readall")
}

func TestRunFindClean(t *testing.T) {
	dir := resetFlags(t)
	writeSource(t, dir, "clean.go", "package main\n\nfunc main() {}\n")

	engine, err := newEngine()
	require.NoError(t, err)

	var out bytes.Buffer
	assert.NoError(t, runFind(context.Background(), &out, engine, []string{dir}))
	assert.Empty(t, out.String())
}

func TestNewEngineFlags(t *testing.T) {
	dir := resetFlags(t)
	path := writeSource(t, dir, "main.go", readAllSrc)
	disableRules = "context-todo"
	ignorePaths = filepath.Join(dir, "vendor")
	writeSource(t, dir, "vendor/lib.go", readAllSrc)

	engine, err := newEngine()
	require.NoError(t, err)
	issues, err := engine.Run(path)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "ioutil-readall", issues[0].Rule)

	issues, err = engine.Run(filepath.Join(dir, "vendor", "lib.go"))
	require.NoError(t, err)
	assert.Empty(t, issues)

	enableRules = "no-such-rule"
	_, err = newEngine()
	assert.Error(t, err)
}

func TestEnableRuleDisabledInConfig(t *testing.T) {
	dir := resetFlags(t)
	path := writeSource(t, dir, "main.go", readAllSrc)
	require.NoError(t, os.WriteFile(cfgFile, []byte("rules:\n  - id: ioutil-readall\n    enabled: false\n"), 0o644))

	engine, err := newEngine()
	require.NoError(t, err)
	issues, err := engine.Run(path)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "context-todo", issues[0].Rule)

	enableRules = "ioutil-readall"
	engine, err = newEngine()
	require.NoError(t, err)
	issues, err = engine.Run(path)
	require.NoError(t, err)
	assert.Len(t, issues, 2)
}

func TestRunAutoFix(t *testing.T) {
	dir := resetFlags(t)
	path := writeSource(t, dir, "main.go", readAllSrc)

	engine, err := newEngine()
	require.NoError(t, err)

	var out, summary bytes.Buffer
	require.NoError(t, runAutoFix(context.Background(), &out, &summary, engine, []string{dir}, true))
	assert.Contains(t, out.String(), "-\tdata, _ := ioutil.ReadAll(os.Stdin)")
	assert.Contains(t, out.String(), "+\tdata, _ := io.ReadAll(os.Stdin)")
	assert.Equal(t, "would apply 1 edit(s) in 1 file(s), skipped 0\n", summary.String())

	unchanged, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, readAllSrc, string(unchanged))

	out.Reset()
	summary.Reset()
	require.NoError(t, runAutoFix(context.Background(), &out, &summary, engine, []string{path}, false))
	assert.Empty(t, out.String())
	assert.Equal(t, "applied 1 edit(s) in 1 file(s), skipped 0\n", summary.String())

	fixed, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(fixed), "io.ReadAll(os.Stdin)")
	assert.Contains(t, string(fixed), `"io"`)
	assert.NotContains(t, string(fixed), "io/ioutil")
	assert.Contains(t, string(fixed), "context.TODO()", "hints are not rewritten")
}

func TestRunAutoFixErrors(t *testing.T) {
	dir := resetFlags(t)
	writeSource(t, dir, "broken.go", "package main\n\nfunc {")

	engine, err := newEngine()
	require.NoError(t, err)

	var out, summary bytes.Buffer
	err = runAutoFix(context.Background(), &out, &summary, engine, []string{dir, filepath.Join(dir, "missing")}, false)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "broken.go")
	assert.Contains(t, err.Error(), "missing")
}

func TestInitConfigurationFile(t *testing.T) {
	resetFlags(t)

	require.NoError(t, initConfigurationFile(cfgFile, false))
	cfg, err := rules.Load(cfgFile)
	require.NoError(t, err)
	assert.Equal(t, "tpat", cfg.Name)
	assert.Len(t, cfg.Rules, len(rules.Builtin()))

	assert.Error(t, initConfigurationFile(cfgFile, false), "an existing file is kept")
	assert.NoError(t, initConfigurationFile(cfgFile, true))
}

func TestListRules(t *testing.T) {
	resetFlags(t)
	engine, err := newEngine()
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, listRules(&out, engine.Registry().AllRules(), []string{"increment"}))

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, len(rules.Builtin())+1)
	assert.Contains(t, string(lines[0]), "PATTERN")
	assert.Contains(t, string(lines[1]), "ioutil-readall")
	assert.Contains(t, string(lines[1]), "methodcall")
	assert.Contains(t, out.String(), "increment (disabled)")
}

func TestRunWatch(t *testing.T) {
	dir := resetFlags(t)
	engine, err := newEngine()
	require.NoError(t, err)

	var out bytes.Buffer
	assert.Error(t, runWatch(context.Background(), &out, engine, []string{filepath.Join(dir, "missing")}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, runWatch(ctx, &out, engine, []string{dir}))
}

func TestExecute(t *testing.T) {
	dir := resetFlags(t)
	path := writeSource(t, dir, "main.go", readAllSrc)
	config := filepath.Join(dir, "custom.yaml")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	}()

	rootCmd.SetArgs([]string{"init", "--config", config})
	require.NoError(t, rootCmd.Execute())
	assert.FileExists(t, config)

	out.Reset()
	rootCmd.SetArgs([]string{"find", "--config", config, "--disable", "context-todo", path})
	err := rootCmd.Execute()
	assert.ErrorIs(t, err, ErrIssuesFound)
	assert.Contains(t, out.String(), "ioutil-readall")
	assert.NotContains(t, out.String(), "context-todo")
}
