package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

const unbalancedResponse = `{"data":{"analyzeCode":[{"lineNumber":1,"errorDescription":"Unbalanced parenthesis","suggestedFix":"Add closing ')'"}]}}`

func backendServer(t *testing.T, path, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs the root command with an isolated configuration.
func execute(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	if stdin != nil {
		root.SetIn(stdin)
	}

	if loadsConfig(args) {
		args = append(args, "--config=", "--env-file", filepath.Join(t.TempDir(), ".env"))
	}
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

func loadsConfig(args []string) bool {
	switch {
	case len(args) > 0 && args[0] == "analyze":
		return true
	case len(args) > 1 && args[0] == "config" && args[1] == "view":
		return true
	}
	return false
}

func TestAnalyzeQuery(t *testing.T) {
	url := backendServer(t, "/graphql", unbalancedResponse)
	src := writeSource(t, "main.py", "print('hello'\n")

	out, err := execute(t, nil, "analyze", src, "--url", url)
	require.NoError(t, err)
	assert.Contains(t, out, "Unbalanced parenthesis")
	assert.Contains(t, out, "Suggested Fix: Add closing ')'")
	assert.Contains(t, out, "Found 1 issue")
}

func TestAnalyzeREST(t *testing.T) {
	url := backendServer(t, "/analyze", `{"analysis":"looks fine"}`)
	src := writeSource(t, "main.py", "print('hello')\n")

	out, err := execute(t, nil, "analyze", src, "--url", url, "--protocol", "rest")
	require.NoError(t, err)
	assert.Contains(t, out, "✅ Analysis complete!\n---\n{\n    \"analysis\": \"looks fine\"\n}")
}

func TestAnalyzeWithoutDocument(t *testing.T) {
	out, err := execute(t, nil, "analyze")
	require.NoError(t, err)
	assert.Contains(t, out, "No active document found")
}

func TestAnalyzeEmptyDocument(t *testing.T) {
	src := writeSource(t, "empty.py", "  \n\n")

	// no backend is listening; an empty document must not reach it
	out, err := execute(t, nil, "analyze", src, "--url", "http://127.0.0.1:1")
	require.NoError(t, err)
	assert.Contains(t, out, "the file is empty")
}

func TestAnalyzeUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	src := writeSource(t, "main.py", "print('hello')\n")
	out, err := execute(t, nil, "analyze", src, "--url", "http://"+addr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 analyses failed")
	assert.Contains(t, out, "Could not connect to the AI backend. Is it running?")
}

func TestAnalyzeJSONSeveralFiles(t *testing.T) {
	url := backendServer(t, "/graphql", unbalancedResponse)
	first := writeSource(t, "a.py", "x = (1\n")
	second := writeSource(t, "b.go", "package main\n")

	out, err := execute(t, nil, "analyze", first, second, "--url", url, "-o", "json")
	require.NoError(t, err)

	var reports []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 2)
	assert.Equal(t, first, reports[0]["path"])
	assert.Equal(t, second, reports[1]["path"])
	assert.Len(t, reports[0]["findings"], 1)
	// the Go file gets the language advisory but is still analyzed
	assert.NotEmpty(t, reports[1]["notices"])
	assert.Len(t, reports[1]["findings"], 1)
}

func TestAnalyzeStdin(t *testing.T) {
	url := backendServer(t, "/graphql", `{"data":{"analyzeCode":[]}}`)

	out, err := execute(t, strings.NewReader("print('hello')\n"), "analyze", "-", "--url", url)
	require.NoError(t, err)
	assert.Contains(t, out, "No issues found")
}

func TestAnalyzeInvalidFlag(t *testing.T) {
	src := writeSource(t, "main.py", "print('hello')\n")
	_, err := execute(t, nil, "analyze", src, "--line-policy", "wrap")
	assert.Error(t, err)
}

func TestConfigView(t *testing.T) {
	out, err := execute(t, nil, "config", "view", "--protocol", "rest", "--timeout", "5s")
	require.NoError(t, err)
	assert.Contains(t, out, "protocol: rest")
	assert.Contains(t, out, "timeout: 5s")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, nil, "version")
	require.NoError(t, err)
	assert.Equal(t, "pairprog version test\n", out)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("PAIRPROG_PROTOCOL", "soap")
	t.Setenv("PAIRPROG_TIMEOUT", "soon")
	t.Setenv("PAIRPROG_LINE_POLICY", "clamp")

	out, err := execute(t, nil, "config", "view", "--protocol", "rest", "--timeout", "5s")
	require.NoError(t, err)
	assert.Contains(t, out, "protocol: rest")
	assert.Contains(t, out, "timeout: 5s")
	// no flag given, the environment still applies
	assert.Contains(t, out, "line_policy: clamp")
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("PAIRPROG_PROTOCOL", "rest")

	out, err := execute(t, nil, "config", "view")
	require.NoError(t, err)
	assert.Contains(t, out, "protocol: rest")

	out, err = execute(t, nil, "config", "view", "--protocol", "query")
	require.NoError(t, err)
	assert.Contains(t, out, "protocol: query")
}

func TestInvalidEnvironmentWithoutFlag(t *testing.T) {
	t.Setenv("PAIRPROG_PROTOCOL", "soap")

	_, err := execute(t, nil, "config", "view")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend.protocol")
}

func TestAnalyzeRejectsRepeatedStdin(t *testing.T) {
	url := backendServer(t, "/graphql", `{"data":{"analyzeCode":[]}}`)

	_, err := execute(t, strings.NewReader("print('hello')\n"), "analyze", "-", "-", "--url", url)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stdin (-) can only be analyzed once")
}
