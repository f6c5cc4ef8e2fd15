package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockAndVerify(t *testing.T) {
	path := writeConfig(t, validYAML)

	require.NoError(t, Lock(path))
	assert.NoError(t, Verify(path))

	// Manifest should sit next to the config file with tight permissions.
	info, err := os.Stat(filepath.Join(filepath.Dir(path), checksumFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestVerifyDetectsTampering(t *testing.T) {
	path := writeConfig(t, validYAML)
	require.NoError(t, Lock(path))

	require.NoError(t, os.WriteFile(path, []byte(validYAML+"\n# edited\n"), 0o644))

	err := Verify(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hash mismatch")
}

func TestVerifyWithoutManifest(t *testing.T) {
	path := writeConfig(t, validYAML)

	assert.Error(t, Verify(path))

	// The lenient variant lets unlocked deployments through.
	assert.NoError(t, VerifyIfLocked(path))
}

func TestLoadFailsOnTamperedLockedConfig(t *testing.T) {
	path := writeConfig(t, validYAML)
	require.NoError(t, Lock(path))
	require.NoError(t, os.WriteFile(path, []byte(validYAML+"\n# edited\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hash mismatch")
}
