package model

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectModes(t *testing.T) {
	fs := specFs(t)
	spec, err := LoadSpec(fs, "pipeline.yaml")
	require.NoError(t, err)

	for _, mode := range []string{ModeRegular, ModeForce} {
		plan, err := spec.Select(fs, ".", mode)
		require.NoError(t, err)
		assert.Len(t, plan.Graph, 4)
		assert.Equal(t, mode == ModeForce, plan.Force())
	}

	_, err = spec.Select(fs, ".", "unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mode must be one of")
}

func TestSelectIncremental(t *testing.T) {
	fs := specFs(t)
	spec, err := LoadSpec(fs, "pipeline.yaml")
	require.NoError(t, err)

	// nothing built yet: all tasks selected
	plan, err := spec.Select(fs, ".", ModeIncremental)
	require.NoError(t, err)
	assert.Len(t, plan.Graph, 4)
	assert.False(t, plan.Empty())

	// a fresh product drops its task and the edge pointing at it
	old := time.Now().Add(-time.Hour)
	require.NoError(t, afero.WriteFile(fs, "get.py", []byte("#"), 0600))
	require.NoError(t, fs.Chtimes("get.py", old, old))
	require.NoError(t, afero.WriteFile(fs, "output/get.csv", []byte("data"), 0600))

	plan, err = spec.Select(fs, ".", ModeIncremental)
	require.NoError(t, err)
	assert.NotContains(t, plan.Graph, "get")
	assert.Equal(t, []string{}, plan.Graph["clean-1"])
}

func TestSelectIncrementalStaleProduct(t *testing.T) {
	fs := specFs(t)
	spec, err := LoadSpec(fs, "pipeline.yaml")
	require.NoError(t, err)

	// product older than its source: task is selected again
	old := time.Now().Add(-time.Hour)
	require.NoError(t, afero.WriteFile(fs, "output/get.csv", []byte("data"), 0600))
	require.NoError(t, fs.Chtimes("output/get.csv", old, old))
	require.NoError(t, afero.WriteFile(fs, "get.py", []byte("#"), 0600))

	plan, err := spec.Select(fs, ".", ModeIncremental)
	require.NoError(t, err)
	assert.Contains(t, plan.Graph, "get")
}
