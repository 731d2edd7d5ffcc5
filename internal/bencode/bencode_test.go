package bencode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeInteger(t *testing.T) {
	v, err := Decode([]byte("i42e"))
	require.NoError(t, err)
	require.Equal(t, Integer, v.Kind())
	require.EqualValues(t, 42, v.Int())

	_, err = Decode([]byte("i-0e"))
	require.Error(t, err)

	v, err = Decode([]byte("i0e"))
	require.NoError(t, err)
	require.EqualValues(t, 0, v.Int())

	v, err = Decode([]byte("i-1000e"))
	require.NoError(t, err)
	require.EqualValues(t, -1000, v.Int())
}

func TestDecodeLeadingZero(t *testing.T) {
	_, err := Decode([]byte("i03e"))
	require.Error(t, err)
}

func TestDecodeString(t *testing.T) {
	v, err := Decode([]byte("4:spam"))
	require.NoError(t, err)
	require.Equal(t, String, v.Kind())
	require.Equal(t, "spam", v.Str())
}

func TestDecodeList(t *testing.T) {
	v, err := Decode([]byte("l4:spam4:eggse"))
	require.NoError(t, err)
	require.Equal(t, List, v.Kind())
	require.Len(t, v.List(), 2)
	require.Equal(t, "spam", v.List()[0].Str())
	require.Equal(t, "eggs", v.List()[1].Str())
}

func TestDecodeDict(t *testing.T) {
	v, err := Decode([]byte("d3:cow3:moo4:spam4:eggse"))
	require.NoError(t, err)
	require.Equal(t, Dict, v.Kind())
	cow, ok := v.Get("cow")
	require.True(t, ok)
	require.Equal(t, "moo", cow.Str())
}

func TestDecodeDictNonStringKey(t *testing.T) {
	_, err := Decode([]byte("di1e3:fooe"))
	require.Error(t, err)
}

func TestDecodeUnexpectedEOF(t *testing.T) {
	_, err := Decode([]byte("4:sp"))
	require.Error(t, err)
}

func TestDecodeUnknownTag(t *testing.T) {
	_, err := Decode([]byte("x"))
	require.Error(t, err)
}

func TestEncodeInteger(t *testing.T) {
	require.Equal(t, []byte("i-1000e"), EncodeBytes(NewInt(-1000)))
	require.Equal(t, []byte("i0e"), EncodeBytes(NewInt(0)))
}

func TestEncodeString(t *testing.T) {
	require.Equal(t, []byte("4:spam"), EncodeBytes(NewStringFromString("spam")))
}

func TestEncodeListAndDict(t *testing.T) {
	l := NewList([]Value{NewStringFromString("spam"), NewStringFromString("eggs")})
	require.Equal(t, []byte("l4:spam4:eggse"), EncodeBytes(l))

	d := (&DictBuilder{}).Set("cow", NewStringFromString("moo")).Set("spam", NewStringFromString("eggs")).Build()
	require.Equal(t, []byte("d3:cow3:moo4:spam4:eggse"), EncodeBytes(d))
}

func TestEncodeCanonicalKeyOrder(t *testing.T) {
	d := (&DictBuilder{}).Set("b", NewInt(1)).Set("a", NewInt(2)).Build()
	require.Equal(t, []byte("d1:ai2e1:bi1ee"), EncodeBytes(d))
}

func TestRoundTrip(t *testing.T) {
	cases := [][]byte{
		[]byte("i42e"),
		[]byte("4:spam"),
		[]byte("l4:spam4:eggse"),
		[]byte("d3:cow3:moo4:spam4:eggse"),
		[]byte("d1:ai2e1:bi1ee"),
	}
	for _, c := range cases {
		v, err := Decode(c)
		require.NoError(t, err)
		require.Equal(t, c, EncodeBytes(v))

		v2, err := Decode(EncodeBytes(v))
		require.NoError(t, err)
		require.True(t, Equal(v, v2))
	}
}
