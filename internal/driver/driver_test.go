package driver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunReturnsCompositionExitCode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.orc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("$=: 'exit 42'\n"), 0o644))

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()

	code := Run(path, nil, nil, w, w)
	w.Close()

	require.Equal(t, 42, code)
}

func TestRunMissingFileReturnsFileError(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()

	code := Run(filepath.Join(t.TempDir(), "nope.orc.yaml"), nil, nil, w, w)
	w.Close()

	require.Equal(t, 124, code)
}
