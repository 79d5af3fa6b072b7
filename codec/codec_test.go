package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Name  string            `json:"name" cbor:"name"`
	Dims  []int             `json:"dims" cbor:"dims"`
	Attrs map[string]string `json:"attrs" cbor:"attrs"`
}

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "cbor"} {
		c, ok := ByName(name)
		require.True(t, ok)
		assert.Equal(t, name, c.Name())

		byID, ok := ByID(c.ID())
		require.True(t, ok)
		assert.Equal(t, name, byID.Name())
	}
	_, ok := ByName("gob")
	assert.False(t, ok)
	_, ok = ByID(0)
	assert.False(t, ok)
}

func TestCBOR_Deterministic(t *testing.T) {
	v := entry{Name: "Cell Data", Dims: []int{10, 20, 30}, Attrs: map[string]string{"z": "1", "a": "2", "m": "3"}}
	first := MustMarshal(CBOR{}, v)
	for range 10 {
		assert.Equal(t, first, MustMarshal(CBOR{}, v))
	}

	var back entry
	require.NoError(t, CBOR{}.Unmarshal(first, &back))
	assert.Equal(t, v, back)
}

func TestDefault(t *testing.T) {
	assert.Equal(t, "cbor", Default.Name())
	b := MustMarshal(nil, map[string]int{"a": 1})
	assert.NotEmpty(t, b)
}
