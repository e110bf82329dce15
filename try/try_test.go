package try

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestGet(t *testing.T) {
	t.Parallel()

	val, err := Of(3, nil).Get()
	require.NoError(t, err)
	assert.Equal(t, 3, val)

	// A failure never leaks the value it was built with.
	val, err = Of(3, errBoom).Get()
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 0, val)
}

func TestFailure(t *testing.T) {
	t.Parallel()

	res := Of("", errBoom)

	assert.True(t, res.IsFailure())
	assert.False(t, res.IsSuccess())
}
