package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWorkspaceLifecycle(t *testing.T) {
	base := t.TempDir()

	ws, err := Create(base, "abc")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(base, "run-abc"), ws.Path)

	path, err := ws.WriteScript("echo hi\n", ".sh")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(ws.Path, "script.sh"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "echo hi\n", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NotZero(t, info.Mode().Perm()&0o100, "script must be executable by its owner")

	require.NoError(t, ws.Remove())
	_, err = os.Stat(ws.Path)
	require.True(t, os.IsNotExist(err))
}

func TestCreateRejectsDuplicate(t *testing.T) {
	base := t.TempDir()
	_, err := Create(base, "same")
	require.NoError(t, err)
	_, err = Create(base, "same")
	require.Error(t, err)
}

func TestCreateGeneratesID(t *testing.T) {
	base := t.TempDir()
	a, err := Create(base, "")
	require.NoError(t, err)
	b, err := Create(base, "")
	require.NoError(t, err)
	require.NotEqual(t, a.Path, b.Path)
}
