package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/plugscan/internal/config"
	"github.com/mattjoyce/plugscan/internal/doctor"
	"github.com/mattjoyce/plugscan/internal/inspect"
)

func captureOutputWithExitCode(t *testing.T, run func() int) (int, string, string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stdout failed: %v", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stderr failed: %v", err)
	}

	os.Stdout = stdoutW
	os.Stderr = stderrW

	// Drain concurrently so large outputs cannot fill the pipe buffer.
	outCh := make(chan []byte, 1)
	errCh := make(chan []byte, 1)
	go func() { b, _ := io.ReadAll(stdoutR); outCh <- b }()
	go func() { b, _ := io.ReadAll(stderrR); errCh <- b }()

	code := run()

	_ = stdoutW.Close()
	_ = stderrW.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	stdoutBytes := <-outCh
	stderrBytes := <-errCh

	_ = stdoutR.Close()
	_ = stderrR.Close()

	return code, string(stdoutBytes), string(stderrBytes)
}

func runCaptured(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	return captureOutputWithExitCode(t, func() int { return runCLI(args) })
}

// isolateConfig keeps the user's real config out of the test.
func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.EnvConfigPath, "")
}

func writeDescriptor(t *testing.T, root, dir, body string) {
	t.Helper()
	full := filepath.Join(root, dir)
	require.NoError(t, os.MkdirAll(full, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(full, "plugin.ron"), []byte(body), 0o644))
}

func pluginRoots(t *testing.T) (string, string) {
	t.Helper()
	base := t.TempDir()
	user := filepath.Join(base, "user")
	system := filepath.Join(base, "system")
	writeDescriptor(t, user, "web", `(name: "web", bin: (path: "web"), query: (regex: "^g ", priority: High))`)
	writeDescriptor(t, system, "web", `(name: "web", bin: (path: "/usr/bin/web"))`)
	writeDescriptor(t, system, "calc", `(name: "calc", bin: (path: "calc"))`)
	writeDescriptor(t, system, "broken", `(name: "broken", bin: (path: `)
	return user, system
}

func TestRunCLI_NoArgs(t *testing.T) {
	code, stdout, _ := runCaptured(t)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "Usage:")
}

func TestRunCLI_UnknownCommand(t *testing.T) {
	code, _, stderr := runCaptured(t, "frobnicate")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Unknown command: frobnicate")
}

func TestRunCLI_NounHelp(t *testing.T) {
	for _, noun := range []string{"plugin", "system", "config"} {
		t.Run(noun, func(t *testing.T) {
			code, stdout, _ := runCaptured(t, noun, "help")
			assert.Equal(t, 0, code)
			assert.Contains(t, stdout, "Usage: plugscan "+noun)

			code, _, stderr := runCaptured(t, noun)
			assert.Equal(t, 1, code)
			assert.Contains(t, stderr, "Actions:")
		})
	}
}

func TestRunVersionJSON(t *testing.T) {
	orig := version
	version = "1.2.3"
	t.Cleanup(func() { version = orig })

	code, stdout, _ := runCaptured(t, "version", "--json")
	require.Equal(t, 0, code)

	var info versionInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Equal(t, "1.2.3", info.Version)
}

func TestPluginList_JSON(t *testing.T) {
	isolateConfig(t)
	user, system := pluginRoots(t)

	for _, mode := range []string{"--sync", "--concurrency=3"} {
		t.Run(mode, func(t *testing.T) {
			code, stdout, _ := runCaptured(t, "plugin", "list", "--json", mode, "--root", user, "--root", system)
			require.Equal(t, 0, code)

			var entries []inspect.Entry
			require.NoError(t, json.Unmarshal([]byte(stdout), &entries))
			require.Len(t, entries, 3)
			assert.Equal(t, filepath.Join(user, "web"), entries[0].Source)
			assert.Equal(t, "High", entries[0].Priority)
			assert.True(t, entries[0].HasPattern)
			for _, e := range entries[1:] {
				assert.True(t, strings.HasPrefix(e.Source, system))
			}
		})
	}
}

func TestPluginList_Table(t *testing.T) {
	isolateConfig(t)
	user, system := pluginRoots(t)

	code, stdout, _ := runCaptured(t, "plugin", "list", "--root", user, "--root", system)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "calc")
	assert.Contains(t, stdout, "same name as "+filepath.Join(user, "web"))
	assert.Contains(t, strings.ToLower(stdout), "3 plugin(s)")
}

func TestPluginList_RootsFromConfig(t *testing.T) {
	isolateConfig(t)
	user, _ := pluginRoots(t)

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("plugin_roots:\n  - "+user+"\n"), 0o644))

	code, stdout, _ := runCaptured(t, "plugin", "list", "--json", "--config", cfgPath)
	require.Equal(t, 0, code)

	var entries []inspect.Entry
	require.NoError(t, json.Unmarshal([]byte(stdout), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "web", entries[0].Name)
}

func TestPluginList_BadFlags(t *testing.T) {
	isolateConfig(t)

	code, _, stderr := runCaptured(t, "plugin", "list", "--concurrency=-1", "--root", t.TempDir())
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "--concurrency")

	code, _, stderr = runCaptured(t, "plugin", "list", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Load error")
}

func TestPluginShow(t *testing.T) {
	isolateConfig(t)
	user, system := pluginRoots(t)

	code, stdout, _ := runCaptured(t, "plugin", "show", "web", "--root", user, "--root", system)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "Bin         : /usr/bin/web")
	assert.Contains(t, stdout, "Note        : same name as")

	code, _, stderr := runCaptured(t, "plugin", "show", "missing", "--root", user)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, `No plugin named "missing"`)
}

func TestPluginCheck(t *testing.T) {
	isolateConfig(t)
	user, system := pluginRoots(t)

	code, stdout, _ := runCaptured(t, "plugin", "check", "--json", "--root", user, "--root", system)
	assert.Equal(t, 1, code)

	var result doctor.Result
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.False(t, result.Valid)
	assert.Equal(t, 3, result.Loaded)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Path, "broken")

	code, stdout, _ = runCaptured(t, "plugin", "check", "--root", user)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "1 plugin(s) loadable")
}

func TestConfigShow(t *testing.T) {
	isolateConfig(t)

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
service:
  log_format: text
api:
  token: hunter2
plugin_roots:
  - /opt/one
  - /opt/one
  - /opt/two
`), 0o644))

	code, stdout, _ := runCaptured(t, "config", "show", "--config", cfgPath)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "log_format: text")
	assert.Contains(t, stdout, "effective_roots:\n    - /opt/one\n    - /opt/two\n")
	assert.Contains(t, stdout, "source: "+cfgPath)
	assert.NotContains(t, stdout, "hunter2")
}
