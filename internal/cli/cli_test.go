package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const projectSource = `module Greeting
  # Says hello.
  def hello(name, greeting = "hi", *rest, key:, &blk); end
end

module Outer
  class Base
    LIMIT = 10
  end

  class Child < Base
    include Greeting
    attr_accessor :size

    def initialize
      @count = 0
      @cache = {}
    end

    private

    def secret; end
  end

  ALIAS = Child
end
`

func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "lib", "outer.rb"), projectSource)
	return root
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func run(t *testing.T, root string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand("test")
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--root", root}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func runJSON(t *testing.T, root string, out any, args ...string) {
	t.Helper()
	stdout, _, err := run(t, root, append(args, "--json")...)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(stdout), out), stdout)
}

type entriesPayload struct {
	Entries []EntryRecord `json:"entries"`
}

func TestIndexUpdateStatusFlow(t *testing.T) {
	root := writeProject(t)

	var summary map[string]any
	runJSON(t, root, &summary, "index")
	assert.Equal(t, "index", summary["mode"])
	assert.Equal(t, float64(1), summary["parsed"])

	runJSON(t, root, &summary, "update")
	assert.Equal(t, "hit", summary["cache"])
	assert.Equal(t, float64(0), summary["parsed"])
	assert.Equal(t, float64(1), summary["reused"])

	mustWriteFile(t, filepath.Join(root, "lib", "extra.rb"), "class Extra; end\n")
	runJSON(t, root, &summary, "status")
	assert.Equal(t, "status", summary["mode"])
	assert.Equal(t, []any{filepath.Join(root, "lib", "extra.rb")}, summary["changed_files"])

	stdout, _, err := run(t, root, "update")
	require.NoError(t, err)
	assert.Contains(t, stdout, "update: cache=hit")
	assert.Contains(t, stdout, "parsed=1")
}

func TestLookupAndResolve(t *testing.T) {
	root := writeProject(t)

	var lookup entriesPayload
	runJSON(t, root, &lookup, "lookup", "Outer::Child")
	require.Len(t, lookup.Entries, 1)
	assert.Equal(t, "Class", lookup.Entries[0].Kind)
	assert.Equal(t, "lib/outer.rb", lookup.Entries[0].File)
	assert.Equal(t, "Outer::Base", lookup.Entries[0].Parent)

	var resolved entriesPayload
	runJSON(t, root, &resolved, "resolve", "LIMIT", "--nesting", "Outer,Child")
	require.Len(t, resolved.Entries, 1)
	assert.Equal(t, "Outer::Base::LIMIT", resolved.Entries[0].Name)

	runJSON(t, root, &resolved, "resolve", "ALIAS", "--nesting", "Outer")
	require.Len(t, resolved.Entries, 1)
	assert.Equal(t, "Alias", resolved.Entries[0].Kind)
	assert.Equal(t, "Outer::Child", resolved.Entries[0].Target)

	var fuzzy entriesPayload
	runJSON(t, root, &fuzzy, "lookup", "Grteeing", "--fuzzy")
	require.NotEmpty(t, fuzzy.Entries)
	assert.Equal(t, "Greeting", fuzzy.Entries[0].Name)

	stdout, _, err := run(t, root, "resolve", "Missing")
	require.NoError(t, err)
	assert.Contains(t, stdout, "no entries found")
}

func TestMethodResolution(t *testing.T) {
	root := writeProject(t)

	var methods entriesPayload
	runJSON(t, root, &methods, "method", "hello", "Outer::Child")
	require.Len(t, methods.Entries, 1)
	assert.Equal(t, "Greeting", methods.Entries[0].Owner)
	assert.Equal(t, []string{"(name, greeting, *rest, key:, &blk)"}, methods.Entries[0].Signatures)
	assert.Equal(t, []string{"Says hello."}, methods.Entries[0].Comments)

	runJSON(t, root, &methods, "method", "secret", "Outer::Child")
	assert.Empty(t, methods.Entries)

	runJSON(t, root, &methods, "method", "secret", "Outer::Child", "--implicit")
	require.Len(t, methods.Entries, 1)
	assert.Equal(t, "private", methods.Entries[0].Visibility)

	runJSON(t, root, &methods, "method", "size=", "Outer::Child")
	require.Len(t, methods.Entries, 1)
	assert.Equal(t, "Accessor", methods.Entries[0].Kind)
}

func TestInstanceVariablesAndCompletion(t *testing.T) {
	root := writeProject(t)

	var ivars entriesPayload
	runJSON(t, root, &ivars, "ivar", "count", "Outer::Child")
	require.Len(t, ivars.Entries, 1)
	assert.Equal(t, "@count", ivars.Entries[0].Name)

	runJSON(t, root, &ivars, "ivar", "@c", "Outer::Child", "--complete")
	names := make([]string, 0, len(ivars.Entries))
	for _, record := range ivars.Entries {
		names = append(names, record.Name)
	}
	assert.ElementsMatch(t, []string{"@count", "@cache"}, names)

	var completions entriesPayload
	runJSON(t, root, &completions, "complete", "Ba", "--nesting", "Outer")
	require.NotEmpty(t, completions.Entries)
	assert.Equal(t, "Outer::Base", completions.Entries[0].Name)
}

func TestAncestors(t *testing.T) {
	root := writeProject(t)

	var payload struct {
		Ancestors []string `json:"ancestors"`
	}
	runJSON(t, root, &payload, "ancestors", "Outer::Child")
	assert.Equal(t, []string{"Outer::Child", "Greeting", "Outer::Base", "Object", "BasicObject"}, payload.Ancestors)

	_, _, err := run(t, root, "ancestors", "Nope")
	assert.Error(t, err)
}

func TestClearCache(t *testing.T) {
	root := writeProject(t)
	_, _, err := run(t, root, "index")
	require.NoError(t, err)

	stdout, _, err := run(t, root, "clear-cache")
	require.NoError(t, err)
	assert.Contains(t, stdout, "cleared ")

	var summary map[string]any
	runJSON(t, root, &summary, "status")
	assert.Equal(t, "miss", summary["cache"])
}

func TestInvalidLogLevel(t *testing.T) {
	_, _, err := run(t, t.TempDir(), "--log-level", "loud", "status")
	assert.ErrorContains(t, err, "unsupported log level")
}

func TestVersion(t *testing.T) {
	stdout, _, err := run(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Equal(t, "rubyindex test\n", stdout)
}

func TestParseLogLevel(t *testing.T) {
	for raw, ok := range map[string]bool{"debug": true, "INFO": true, "warning": true, "error": true, "": true, "trace": false} {
		_, err := ParseLogLevel(raw)
		assert.Equal(t, ok, err == nil, raw)
	}
}
