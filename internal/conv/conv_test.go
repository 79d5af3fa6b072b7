package conv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToUint32(t *testing.T) {
	v, err := ToUint32(42)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), v)

	v, err = ToUint32(uint64(math.MaxUint32))
	require.NoError(t, err)
	assert.Equal(t, uint32(math.MaxUint32), v)

	_, err = ToUint32(-1)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = ToUint32(uint64(math.MaxUint32) + 1)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestToInt64(t *testing.T) {
	v, err := ToInt64(uint64(math.MaxInt64))
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), v)

	v, err = ToInt64(int32(-7))
	require.NoError(t, err)
	assert.Equal(t, int64(-7), v)

	_, err = ToInt64(uint64(math.MaxInt64) + 1)
	assert.ErrorIs(t, err, ErrOutOfRange)
}
