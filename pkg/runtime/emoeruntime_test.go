package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	emoepkg "github.com/adjacentlink/emexd/pkg/emoe"
)

func TestCanStartBudget(t *testing.T) {
	rt := &EmoeRuntime{startAttempts: 3}
	// each call follows a failed attempt; three retries are allowed
	assert.True(t, rt.CanStart())
	assert.True(t, rt.CanStart())
	assert.True(t, rt.CanStart())
	assert.False(t, rt.CanStart())
	assert.False(t, rt.CanStart())
}

func TestContainerNameFormats(t *testing.T) {
	cases := []struct {
		format   ContainerNameFormat
		emoeName string
		want     string
	}{
		{ContainerNamePrefix, "foo", "ts1.foo"},
		{ContainerNameSuffix, "foo", "foo.ts1"},
		{ContainerNameBare, "foo", "foo"},
	}
	for _, c := range cases {
		e, err := emoepkg.New(c.emoeName, nil, nil, nil)
		require.NoError(t, err)
		rt := New("ts1", "/tmp/ts1", "client1", e, nil, c.format)
		assert.Equal(t, c.want, rt.ContainerName())
	}
}
