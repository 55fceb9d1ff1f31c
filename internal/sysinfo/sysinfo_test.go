package sysinfo

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreeMemory(t *testing.T) {
	t.Parallel()
	free, err := FreeMemory()
	require.NoError(t, err)
	assert.NotZero(t, free)
	assert.NotZero(t, MemoryProbe())
}

func TestFreeDisk(t *testing.T) {
	t.Parallel()
	_, err := FreeDisk(t.TempDir())
	require.NoError(t, err)
	_, err = FreeDisk("/nonexistent/skybus")
	require.Error(t, err)
	assert.Contains(t, errors.ErrorStack(err), "statfs path=/nonexistent/skybus")
}
