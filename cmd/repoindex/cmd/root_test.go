package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCommand executes the root command with args and returns its output.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestCreateCmd_NewIndex(t *testing.T) {
	dir := t.TempDir()

	out, err := runCommand(t, "create", "--dir", dir, "--repository-id", "central")
	require.NoError(t, err)
	assert.Contains(t, out, "central")
	assert.Contains(t, out, dir)
}

func TestCreateCmd_RequiresRepositoryID(t *testing.T) {
	_, err := runCommand(t, "create", "--dir", t.TempDir())
	require.Error(t, err)
}

func TestCreateCmd_IdentityMismatch(t *testing.T) {
	dir := t.TempDir()

	_, err := runCommand(t, "create", "--dir", dir, "--repository-id", "central")
	require.NoError(t, err)

	out, err := runCommand(t, "create", "--dir", dir, "--repository-id", "snapshots")
	require.Error(t, err)
	assert.Contains(t, out, "central")

	// Reclaim takes the index over instead of failing.
	_, err = runCommand(t, "create", "--dir", dir, "--repository-id", "snapshots", "--reclaim")
	require.NoError(t, err)
}

func TestInfoCmd_ReportsIndexState(t *testing.T) {
	dir := t.TempDir()

	_, err := runCommand(t, "create", "--dir", dir, "--repository-id", "central")
	require.NoError(t, err)

	out, err := runCommand(t, "info", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "central")
	assert.Contains(t, out, "Documents:   1")
	assert.Contains(t, out, "never")
}

func TestPurgeCmd_Force(t *testing.T) {
	dir := t.TempDir()

	_, err := runCommand(t, "create", "--dir", dir, "--repository-id", "central")
	require.NoError(t, err)

	out, err := runCommand(t, "purge", "--dir", dir, "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Purged")
}

func TestRebuildGroupsCmd_EmptyIndex(t *testing.T) {
	dir := t.TempDir()

	_, err := runCommand(t, "create", "--dir", dir, "--repository-id", "central")
	require.NoError(t, err)

	out, err := runCommand(t, "rebuild-groups", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "0 total, 0 root")
}
