package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const demoDocument = `
name: demo
namespace: demo-ns
domain: "%s.example.com"
workspace: {}
frontDoor:
  serviceAccountKey: key
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(&Options{})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRenderCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workspace.yml")
	require.NoError(t, os.WriteFile(path, []byte(demoDocument), 0o644))

	out, err := run(t, "render", "-f", path, "--env-file", filepath.Join(dir, "none.env"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "apiVersion: v1\nkind: Namespace\n"), out)
	assert.Contains(t, out, "name: demo-workspace-deployment")
	assert.Contains(t, out, "---\n")
}

func TestRenderCommandReportsInvalidDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workspace.yml")
	require.NoError(t, os.WriteFile(path, []byte("name: demo\n"), 0o644))

	_, err := run(t, "render", "-f", path, "--env-file", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid workspace")
	assert.Contains(t, err.Error(), "namespace: is required")
}

func TestDeployFlags(t *testing.T) {
	cmd := newDeployCommand(&Options{})
	require.NoError(t, cmd.ParseFlags([]string{"-r"}))

	rotate, err := cmd.Flags().GetBool("rotate-secrets")
	require.NoError(t, err)
	assert.True(t, rotate)
}

func TestDefaultWorkspaceFile(t *testing.T) {
	cmd := newRootCommand(&Options{})
	flag := cmd.PersistentFlags().Lookup("file")
	require.NotNil(t, flag)
	assert.Equal(t, "workspace.yml", flag.DefValue)
	assert.Equal(t, "f", flag.Shorthand)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("v"))
}
