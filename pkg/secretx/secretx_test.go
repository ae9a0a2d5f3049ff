package secretx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealer_RoundTrip(t *testing.T) {
	s, err := NewSealer(strings.Repeat("ab", 32))
	require.NoError(t, err)

	sealed, err := s.Seal("AIzaSy-secret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, "sb1$"))
	assert.NotContains(t, sealed, "AIzaSy")

	again, err := s.Seal("AIzaSy-secret")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per seal")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "AIzaSy-secret", plain)
}

func TestSealer_PassphraseAndErrors(t *testing.T) {
	_, err := NewSealer("  ")
	require.Error(t, err)

	a, err := NewSealer("correct horse")
	require.NoError(t, err)
	b, err := NewSealer("battery staple")
	require.NoError(t, err)

	sealed, err := a.Seal("k1")
	require.NoError(t, err)
	_, err = b.Open(sealed)
	assert.ErrorIs(t, err, ErrOpen)

	_, err = a.Open("sb1$!!notbase64")
	assert.ErrorIs(t, err, ErrOpen)

	legacy, err := a.Open("plain-legacy-key")
	require.NoError(t, err)
	assert.Equal(t, "plain-legacy-key", legacy)
}
