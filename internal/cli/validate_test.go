package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_OK(t *testing.T) {
	out, _, err := execute(t, "validate", filepath.Join("testdata", "procedures"))
	require.NoError(t, err)
	assert.Contains(t, out, "joint_tour")
	assert.Contains(t, out, "pick_place")
	assert.Contains(t, out, "valid: 2 procedure(s)")
}

func TestValidate_ReportsEveryIssue(t *testing.T) {
	// One bad procedure must not hide the other.
	_, _, err := execute(t, "validate", filepath.Join("testdata", "broken"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "2 issue(s)")
}

func TestValidate_JSONIssues(t *testing.T) {
	out, _, err := execute(t, "validate", filepath.Join("testdata", "broken"), "--format", "json")
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)

	data, merr := json.Marshal(resp.Error.Details)
	require.NoError(t, merr)
	var report ValidationReport
	require.NoError(t, json.Unmarshal(data, &report))
	assert.False(t, report.Valid)
	assert.Len(t, report.Issues, 2)
}

func TestValidate_MissingDir(t *testing.T) {
	_, _, err := execute(t, "validate", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
