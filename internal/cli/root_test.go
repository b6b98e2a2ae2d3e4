package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireNode(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("node"); err != nil {
		t.Skip("node is not installed")
	}
}

// execute runs the root command with args inside a fresh project directory
// and returns the exit code and captured streams.
func execute(t *testing.T, files map[string]string, args ...string) (int, string, string) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	t.Chdir(dir)
	t.Setenv("UNRUN_DEBUG", "")

	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(bytes.NewReader(nil))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	code := run(cmd, &stderr)
	return code, stdout.String(), stderr.String()
}

// TestNoInput verifies the missing-file message and exit code.
func TestNoInput(t *testing.T) {
	code, _, stderr := execute(t, nil)
	assert.Equal(t, 1, code)
	assert.Equal(t, "[unrun] No input files provided\n", stderr)
}

// TestMissingFile verifies configuration errors exit with 1.
func TestMissingFile(t *testing.T) {
	code, _, stderr := execute(t, nil, "missing.ts")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "[unrun] path: file not found")
}

// TestInvalidPresetJSON verifies errors are rendered as JSON with --json.
func TestInvalidPresetJSON(t *testing.T) {
	code, _, stderr := execute(t, map[string]string{"a.ts": "export {}\n"}, "--json", "--preset", "nope", "a.ts")
	assert.Equal(t, 1, code)

	var out struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stderr), &out))
	assert.Contains(t, out.Error.Message, "preset")
}

// TestRunProgram verifies argument pass-through and exit codes.
func TestRunProgram(t *testing.T) {
	requireNode(t)

	files := map[string]string{
		"main.ts": "const args: string[] = process.argv.slice(2)\n" +
			"console.log(JSON.stringify(args))\n" +
			"process.exit(args.includes('--fail') ? 3 : 0)\n",
	}

	code, stdout, _ := execute(t, files, "main.ts", "--json", "x")
	assert.Equal(t, 0, code)
	assert.Equal(t, "[\"--json\",\"x\"]\n", stdout)

	code, _, stderr := execute(t, files, "--debug", "main.ts", "--fail")
	assert.Equal(t, 3, code)
	assert.NotContains(t, stderr, "exit status")
}

// TestEvaluateJSON verifies --json prints the module and dependencies.
func TestEvaluateJSON(t *testing.T) {
	requireNode(t)

	code, stdout, _ := execute(t, map[string]string{
		"config.ts": "export default { name: 'demo', port: 8080 }\n",
	}, "--json", "config.ts")
	require.Equal(t, 0, code)

	var out struct {
		Module       map[string]any `json:"module"`
		Dependencies []string       `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, "demo", out.Module["name"])
	assert.Equal(t, float64(8080), out.Module["port"])
	assert.Len(t, out.Dependencies, 1)
}
