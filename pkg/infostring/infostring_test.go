package infostring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytes(t *testing.T) {
	for _, tt := range []struct {
		src  string
		want string
	}{
		{"\\abc", "abc"},
		{"\\abc\\", "abc"},
		{"\\abc\n", "abc"},
		{"\\", ""},
		{"\\\\", ""},
		{"\\\n", ""},
	} {
		b, err := New([]byte(tt.src)).Bytes()
		require.NoError(t, err, "src %q", tt.src)
		assert.Equal(t, tt.want, string(b), "src %q", tt.src)
	}
}

func TestBytesEnd(t *testing.T) {
	_, err := New(nil).Bytes()
	assert.ErrorIs(t, err, ErrEnd)

	_, err = New([]byte("\n")).Bytes()
	assert.ErrorIs(t, err, ErrEnd)

	_, err = New([]byte("\nmore")).Bytes()
	assert.ErrorIs(t, err, ErrEnd)
}

func TestBytesInvalidMap(t *testing.T) {
	_, err := New([]byte("abc")).Bytes()
	assert.ErrorIs(t, err, ErrInvalidMap)
}

func TestBytesSequence(t *testing.T) {
	p := New([]byte("\\map\\crossfire\ntail"))

	b, err := p.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "map", string(b))

	b, err = p.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "crossfire", string(b))

	_, err = p.Bytes()
	assert.ErrorIs(t, err, ErrEnd)
	assert.Equal(t, "\ntail", string(p.Rest()))
}

func TestString(t *testing.T) {
	s, err := New([]byte("\\abc\n")).String()
	require.NoError(t, err)
	assert.Equal(t, "abc", s)

	s, err = New([]byte("\\abc\x00\n")).String()
	require.NoError(t, err)
	assert.Equal(t, "abc\x00", s)

	_, err = New([]byte("\\abc\x80\\n")).String()
	assert.ErrorIs(t, err, ErrInvalidString)
}

func TestBool(t *testing.T) {
	v, err := New([]byte("\\0\n")).Bool()
	require.NoError(t, err)
	assert.False(t, v)

	v, err = New([]byte("\\1\n")).Bool()
	require.NoError(t, err)
	assert.True(t, v)

	for _, src := range []string{"\\2\n", "\\00\n", "\\true\n", "\\false\n", "\\\n"} {
		_, err := New([]byte(src)).Bool()
		assert.ErrorIs(t, err, ErrInvalidBool, "src %q", src)
	}
}

func TestUint8(t *testing.T) {
	for _, tt := range []struct {
		src  string
		want uint8
	}{
		{"\\0\n", 0},
		{"\\255\n", 255},
		{"\\-1\n", 255},
		{"\\-128\n", 128},
	} {
		v, err := New([]byte(tt.src)).Uint8()
		require.NoError(t, err, "src %q", tt.src)
		assert.Equal(t, tt.want, v, "src %q", tt.src)
	}

	for _, src := range []string{"\\256\n", "\\-129\n", "\\0xff\n", "\\abc\n", "\\\n"} {
		_, err := New([]byte(src)).Uint8()
		assert.ErrorIs(t, err, ErrInvalidInteger, "src %q", src)
	}
}

func TestInt8(t *testing.T) {
	for _, tt := range []struct {
		src  string
		want int8
	}{
		{"\\-1\n", -1},
		{"\\-128\n", -128},
		{"\\255\n", -1},
		{"\\128\n", -128},
	} {
		v, err := New([]byte(tt.src)).Int8()
		require.NoError(t, err, "src %q", tt.src)
		assert.Equal(t, tt.want, v, "src %q", tt.src)
	}

	for _, src := range []string{"\\-129\n", "\\256\n", "\\0xff\n"} {
		_, err := New([]byte(src)).Int8()
		assert.ErrorIs(t, err, ErrInvalidInteger, "src %q", src)
	}
}

func TestUint32(t *testing.T) {
	v, err := New([]byte("\\4294967295\n")).Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(4294967295), v)

	v, err = New([]byte("\\-1\n")).Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(4294967295), v)

	_, err = New([]byte("\\4294967296\n")).Uint32()
	assert.ErrorIs(t, err, ErrInvalidInteger)
}

func TestWiderInts(t *testing.T) {
	v16, err := New([]byte("\\-1\n")).Uint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(65535), v16)

	i16, err := New([]byte("\\65535\n")).Int16()
	require.NoError(t, err)
	assert.Equal(t, int16(-1), i16)

	v64, err := New([]byte("\\-1\n")).Uint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(18446744073709551615), v64)

	i64, err := New([]byte("\\9223372036854775807\n")).Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(9223372036854775807), i64)
}
