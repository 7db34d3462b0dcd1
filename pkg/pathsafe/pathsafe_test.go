package pathsafe

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePathRejectsTraversal(t *testing.T) {
	v := NewValidator()
	cases := []string{
		"",
		"../../etc/passwd",
		"config/../../etc/shadow",
		"bad\x00path.yaml",
	}
	for _, c := range cases {
		err := v.ValidatePath(c)
		assert.Error(t, err, "expected rejection for %q", c)
	}
}

func TestValidatePathAcceptsCleanRelative(t *testing.T) {
	v := NewValidator()
	assert.NoError(t, v.ValidatePath("config/orchestrator.yaml"))
}

func TestValidatePathRejectsDangerousSystemDir(t *testing.T) {
	v := NewValidator()
	assert.Error(t, v.ValidatePath("/etc/passwd"))
}

func TestAllowedDirectoryRestrictsExtension(t *testing.T) {
	dir := t.TempDir()
	v := NewValidator()
	v.AddAllowedDirectory(AllowedDirectory{Path: dir, Extensions: []string{".yaml"}, Recursive: false})

	assert.NoError(t, v.ValidatePath(filepath.Join(dir, "orchestrator.yaml")))
	assert.Error(t, v.ValidatePath(filepath.Join(dir, "orchestrator.json")))
	assert.Error(t, v.ValidatePath(filepath.Join(dir, "sub", "orchestrator.yaml")))
}

func TestAllowedDirectoryRecursive(t *testing.T) {
	dir := t.TempDir()
	v := NewValidator()
	v.AddAllowedDirectory(AllowedDirectory{Path: dir, Recursive: true})

	assert.NoError(t, v.ValidatePath(filepath.Join(dir, "sub", "model.bin")))
}

func TestSecureJoinRejectsEscape(t *testing.T) {
	dir := t.TempDir()
	_, err := SecureJoin(dir, "..", "etc", "passwd")
	assert.Error(t, err)

	result, err := SecureJoin(dir, "checkpoints", "model.gob")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "checkpoints", "model.gob"), result)
}
