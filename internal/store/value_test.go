package store

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind(t *testing.T) {
	cases := []struct {
		value Value
		want  string
	}{
		{String("x"), "string"},
		{NewList(), "list"},
		{NewHash(), "hash"},
		{NewSet(), "set"},
		{NewSortedSet(), "zset"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.value.Kind().String())
	}
}

func TestParseInt(t *testing.T) {
	for _, in := range []string{"0", "42", "-7", "9223372036854775807", "-9223372036854775808"} {
		_, err := ParseInt([]byte(in))
		assert.NoError(t, err, in)
	}
	for _, in := range []string{"", " 1", "1 ", "+1", "01", "-01", "1.5", "abc", "9223372036854775808"} {
		_, err := ParseInt([]byte(in))
		assert.ErrorIs(t, err, ErrNotInteger, in)
	}
}

func TestParseFloat(t *testing.T) {
	f, err := ParseFloat([]byte("1.5"))
	require.NoError(t, err)
	assert.Equal(t, 1.5, f)

	f, err = ParseFloat([]byte("-inf"))
	require.NoError(t, err)
	assert.True(t, math.IsInf(f, -1))

	_, err = ParseFloat([]byte("nan"))
	assert.ErrorIs(t, err, ErrNotFloat)
	_, err = ParseFloat([]byte("abc"))
	assert.ErrorIs(t, err, ErrNotFloat)
}

func TestAddInt(t *testing.T) {
	n, err := AddInt(1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = AddInt(math.MaxInt64, 1)
	assert.ErrorIs(t, err, ErrOverflow)
	_, err = AddInt(math.MinInt64, -1)
	assert.ErrorIs(t, err, ErrOverflow)
}
