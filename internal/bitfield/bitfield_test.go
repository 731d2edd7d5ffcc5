package bitfield

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetTestClear(t *testing.T) {
	bf := New(10)
	require.False(t, bf.Test(3))
	bf.Set(3)
	require.True(t, bf.Test(3))
	bf.Clear(3)
	require.False(t, bf.Test(3))
}

func TestAllAndCount(t *testing.T) {
	bf := New(4)
	require.False(t, bf.All())
	for i := uint32(0); i < 4; i++ {
		bf.Set(i)
	}
	require.True(t, bf.All())
	require.EqualValues(t, 4, bf.Count())
}

func TestNewBytesLengthValidation(t *testing.T) {
	_, err := NewBytes([]byte{0x00}, 9)
	require.Error(t, err)

	bf, err := NewBytes([]byte{0xFF, 0x80}, 9)
	require.NoError(t, err)
	require.True(t, bf.Test(0))
	require.True(t, bf.Test(8))
}
