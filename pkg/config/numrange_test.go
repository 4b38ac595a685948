package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumRangeExpandsRangesAndSingles(t *testing.T) {
	ids, err := ParseNumRange("0-3,5,7-9")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 5, 7, 8, 9}, ids)
}

func TestParseNumRangeDedupes(t *testing.T) {
	ids, err := ParseNumRange("1-3,2-4")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, ids)
}

func TestParseNumRangeRejectsEmpty(t *testing.T) {
	_, err := ParseNumRange("")
	assert.Error(t, err)
}

func TestParseNumRangeRejectsBackwardsRange(t *testing.T) {
	_, err := ParseNumRange("9-5")
	assert.Error(t, err)
}

func TestParseNumRangeRejectsGarbage(t *testing.T) {
	_, err := ParseNumRange("a-b")
	assert.Error(t, err)
}
