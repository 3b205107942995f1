package parser_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagrs-go/dagrs/pkg/dagrs"
	"github.com/dagrs-go/dagrs/pkg/dagrs/parser"
	"github.com/dagrs-go/dagrs/pkg/dagrs/registry"
)

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParse_LinearCommandChain(t *testing.T) {
	path := writeYAML(t, `
dagrs:
  a:
    name: "Task A"
    cmd: "echo a"
  b:
    name: "Task B"
    after: [a]
    cmd: "echo b"
`)

	graph, env, err := parser.Parse(path, nil)
	require.NoError(t, err)
	require.NotNil(t, graph)
	require.NotNil(t, env)

	require.NoError(t, graph.Validate())
	ok, runErr := graph.Start()
	require.NoError(t, runErr)
	assert.True(t, ok)
}

func TestParse_SpecificActionOverridesInline(t *testing.T) {
	path := writeYAML(t, `
dagrs:
  a:
    name: "Task A"
    cmd: "this would fail if actually run"
`)

	called := false
	specific := registry.New[string, dagrs.Action]()
	specific.Register("a", dagrs.ActionFunc(func(_ context.Context, _ dagrs.Input, _ *dagrs.Env) (dagrs.Output, error) {
		called = true
		return dagrs.NewOutput("ok"), nil
	}))

	graph, _, err := parser.Parse(path, specific)
	require.NoError(t, err)

	ok, runErr := graph.Start()
	require.NoError(t, runErr)
	assert.True(t, ok)
	assert.True(t, called)
}

func TestParse_RunShellVariant(t *testing.T) {
	path := writeYAML(t, `
dagrs:
  a:
    name: "Task A"
    run:
      type: sh
      script: "echo hello"
`)

	graph, _, err := parser.Parse(path, nil)
	require.NoError(t, err)
	require.NotNil(t, graph)
}

func TestParse_MissingNameIsParseError(t *testing.T) {
	path := writeYAML(t, `
dagrs:
  a:
    cmd: "echo a"
`)

	_, _, err := parser.Parse(path, nil)
	require.Error(t, err)
	var parseErr *dagrs.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Reason, "name")
}

func TestParse_UnknownPredecessorIsParseError(t *testing.T) {
	path := writeYAML(t, `
dagrs:
  a:
    name: "Task A"
    after: [nonexistent]
    cmd: "echo a"
`)

	_, _, err := parser.Parse(path, nil)
	require.Error(t, err)
	var parseErr *dagrs.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Reason, "unknown predecessor")
}

func TestParse_MissingRootKeyIsParseError(t *testing.T) {
	path := writeYAML(t, `
notdagrs:
  a:
    name: "Task A"
`)

	_, _, err := parser.Parse(path, nil)
	require.Error(t, err)
	var parseErr *dagrs.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Reason, "dagrs")
}

func TestParse_NoActionSourceIsParseError(t *testing.T) {
	path := writeYAML(t, `
dagrs:
  a:
    name: "Task A"
`)

	_, _, err := parser.Parse(path, nil)
	require.Error(t, err)
	var parseErr *dagrs.ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestParse_MissingFile(t *testing.T) {
	_, _, err := parser.Parse("/nonexistent/path/graph.yaml", nil)
	assert.Error(t, err)
}
