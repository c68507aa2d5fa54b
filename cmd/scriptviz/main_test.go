//go:build unix

package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LukasSkrivanek/ScriptVisualizer/internal/log"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("SCRIPTVIZ_DATA_DIR", t.TempDir())

	var stdout, stderr bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(t.Context())
	return stdout.String(), stderr.String(), err
}

func TestRunInline(t *testing.T) {
	stdout, stderr, err := execute(t, "run", "-p", "sh", "-e", "echo out; echo err >&2")
	require.NoError(t, err)
	require.Equal(t, "out\n", stdout)
	require.Equal(t, "err\n", stderr)
}

func TestRunExitCode(t *testing.T) {
	_, _, err := execute(t, "run", "-p", "sh", "-e", "exit 3")

	var exitErr *exitCodeError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 3, exitErr.code)
}

func TestRunPathPicksProfileByExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hello.sh")
	require.NoError(t, os.WriteFile(path, []byte("echo from file\n"), 0o600))

	stdout, _, err := execute(t, "run", path)
	require.NoError(t, err)
	require.Equal(t, "from file\n", stdout)
}

func TestRunMissingPath(t *testing.T) {
	_, _, err := execute(t, "run", "-p", "sh", "/no/such/file")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not_found")
}

func TestRunUnknownProfile(t *testing.T) {
	_, _, err := execute(t, "run", "-p", "pyhton", "-e", "print(1)")
	require.ErrorContains(t, err, "python")
}

func TestRunNeedsSource(t *testing.T) {
	_, _, err := execute(t, "run")
	require.ErrorContains(t, err, "nothing to run")
}

func TestHighlightSpans(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.py")
	require.NoError(t, os.WriteFile(path, []byte("def f(): # hi\n"), 0o600))

	stdout, _, err := execute(t, "highlight", "--spans", path)
	require.NoError(t, err)
	require.Contains(t, stdout, "keyword")
	require.Contains(t, stdout, `"# hi"`)
}

func TestHighlightColored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.swift")
	require.NoError(t, os.WriteFile(path, []byte("let a = 1\n"), 0o600))

	stdout, _, err := execute(t, "highlight", path)
	require.NoError(t, err)
	require.Equal(t, "let a = 1\n", stdout)
}

func TestProfiles(t *testing.T) {
	stdout, _, err := execute(t, "profiles")
	require.NoError(t, err)
	require.Contains(t, stdout, "* swift")
	require.Contains(t, stdout, "python")
}

func TestProjectProfileOverride(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".scriptviz", "profiles"), 0o755))
	data := "name: shout\ncommand: [/bin/sh]\nextension: .shout\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".scriptviz", "profiles", "shout.yaml"), []byte(data), 0o644))

	stdout, _, err := execute(t, "run", "-p", "shout", "-e", "echo loud")
	require.NoError(t, err)
	require.Equal(t, "loud\n", stdout)
}

func TestLuaProfileLogsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ruby.lua")
	script := "log(\"building ruby profile\")\nreturn {name = \"ruby\", command = {\"ruby\"}, extension = \".rb\"}\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o600))

	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(log.New(&buf, true))
	t.Cleanup(func() { slog.SetDefault(prev) })

	p, err := luaLoader(t.Context())(path)
	require.NoError(t, err)
	require.Equal(t, "ruby", p.Name)
	require.Equal(t, 1, strings.Count(buf.String(), "building ruby profile"))
}
