package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProcedures_Valid(t *testing.T) {
	result, errs := LoadProcedures(filepath.Join("testdata", "procedures"), LoadModeFailFast)
	require.Empty(t, errs)
	require.NotNil(t, result)
	assert.Equal(t, 2, result.FileCount)
	require.Len(t, result.Procedures, 2)

	proc := result.Find("joint_tour")
	require.NotNil(t, proc)
	assert.Equal(t, "UR3e", proc.Station.Robot)
	assert.Len(t, proc.Steps, 6)

	assert.Nil(t, result.Find("nope"))
}

func TestLoadProcedures_CollectAll(t *testing.T) {
	_, errs := LoadProcedures(filepath.Join("testdata", "broken"), LoadModeCollectAll)
	assert.Len(t, errs, 2, "both broken procedures should be reported")
}

func TestLoadProcedures_FailFast(t *testing.T) {
	_, errs := LoadProcedures(filepath.Join("testdata", "broken"), LoadModeFailFast)
	assert.Len(t, errs, 1)
}

func TestLoadProcedures_DirErrors(t *testing.T) {
	_, errs := LoadProcedures(filepath.Join(t.TempDir(), "nope"), LoadModeFailFast)
	require.Len(t, errs, 1)
	var lerr *LoadError
	require.ErrorAs(t, errs[0], &lerr)
	assert.Equal(t, ErrCodeNotFound, lerr.Code)

	_, errs = LoadProcedures(t.TempDir(), LoadModeFailFast)
	require.Len(t, errs, 1)
	require.ErrorAs(t, errs[0], &lerr)
	assert.Equal(t, ErrCodeNoFiles, lerr.Code)
}

func TestFindCUEFiles(t *testing.T) {
	files, err := FindCUEFiles(filepath.Join("testdata", "procedures"))
	require.NoError(t, err)
	assert.Len(t, files, 2)
	for _, f := range files {
		assert.Equal(t, ".cue", filepath.Ext(f))
	}
}
