package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateDeallocate(t *testing.T) {
	tr := New("cpu", []int{0, 1, 2, 3}, true)
	require.Equal(t, 4, tr.NumAvailable())

	ids, err := tr.Allocate(2)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, ids)
	assert.Equal(t, 2, tr.NumAvailable())
	assert.Equal(t, 2, tr.NumAllocated())

	tr.Deallocate(ids)
	assert.Equal(t, 4, tr.NumAvailable())
	assert.Equal(t, 0, tr.NumAllocated())
}

func TestAllocateInsufficient(t *testing.T) {
	tr := New("cpu", []int{0, 1}, true)
	_, err := tr.Allocate(3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requested 3 available 2")
	assert.Equal(t, 2, tr.NumAvailable())
}

func TestDecreasingPoolPrefersHighIDs(t *testing.T) {
	tr := New("host_port", []int{8000, 8001, 8002}, false)
	ids, err := tr.Allocate(1)
	require.NoError(t, err)
	assert.Equal(t, []int{8002}, ids)
}

func TestExcludeAndClear(t *testing.T) {
	tr := New("host_port", []int{1, 2, 3}, true)
	tr.Exclude(2)
	assert.Equal(t, 2, tr.NumAvailable())
	assert.Equal(t, 1, tr.NumExcluded())

	// excluding an allocated id is ignored
	ids, err := tr.Allocate(1)
	require.NoError(t, err)
	require.Equal(t, []int{1}, ids)
	tr.Exclude(1)
	assert.Equal(t, 1, tr.NumExcluded())

	tr.ClearExcluded()
	assert.Equal(t, 0, tr.NumExcluded())
	assert.Equal(t, 2, tr.NumAvailable()) // 2 and 3
}

func TestDeallocateUnknownIDIsTolerated(t *testing.T) {
	tr := New("cpu", []int{0, 1}, true)
	tr.Deallocate([]int{99})
	assert.Equal(t, 2, tr.NumAvailable())
}
