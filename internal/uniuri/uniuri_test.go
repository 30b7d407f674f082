package uniuri

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	a, err := New()
	require.NoError(t, err)
	assert.Len(t, a, StdLen)

	b, err := New()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	for _, c := range []byte(a) {
		assert.True(t, bytes.IndexByte(StdChars, c) >= 0, "unexpected char %q", c)
	}
}

func TestNewLenChars(t *testing.T) {
	s, err := NewLen(0)
	require.NoError(t, err)
	assert.Empty(t, s)

	s, err = NewLen(SecretLen)
	require.NoError(t, err)
	assert.Len(t, s, SecretLen)

	s, err = NewLenChars(200, []byte("ab"))
	require.NoError(t, err)
	assert.Len(t, s, 200)
	assert.Contains(t, s, "a")
	assert.Contains(t, s, "b")

	_, err = NewLenChars(4, []byte("a"))
	require.ErrorIs(t, err, ErrCharset)
}
