package sysinfo

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect(t *testing.T) {
	info, err := Collect(t.Context(), "")
	require.NoError(t, err)

	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, "/", info.DiskPath)
	assert.Positive(t, info.CPUs)
	assert.Positive(t, info.MemoryTotal)
	assert.LessOrEqual(t, info.MemoryUsed, info.MemoryTotal)
	assert.LessOrEqual(t, info.DiskUsed, info.DiskTotal)
}

func TestCollect_MissingDisk(t *testing.T) {
	info, err := Collect(t.Context(), "/does/not/exist")
	require.NoError(t, err)
	assert.Zero(t, info.DiskTotal)
	assert.Positive(t, info.CPUs)
}
