package security

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestFieldCipher_RoundTrip(t *testing.T) {
	c, err := NewFieldCipher(testKey)
	require.NoError(t, err)

	sealed, err := c.Seal("0123456789")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, sealedPrefix))
	assert.NotContains(t, sealed, "0123456789")

	again, err := c.Seal("0123456789")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per value")

	plain, err := c.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", plain)
}

func TestFieldCipher_EdgeCases(t *testing.T) {
	c, err := NewFieldCipher(testKey)
	require.NoError(t, err)

	sealed, err := c.Seal("")
	require.NoError(t, err)
	assert.Empty(t, sealed)

	legacy, err := c.Open("0001112223")
	require.NoError(t, err)
	assert.Equal(t, "0001112223", legacy, "unprefixed values pass through")

	_, err = c.Open(sealedPrefix + "!!not-base64")
	assert.True(t, errors.Is(err, ErrMalformedCiphertext), "got %v", err)

	_, err = c.Open(sealedPrefix + "AAAA")
	assert.True(t, errors.Is(err, ErrMalformedCiphertext), "got %v", err)

	other, err := NewFieldCipher("fedcba9876543210fedcba9876543210")
	require.NoError(t, err)
	mine, err := c.Seal("0123456789")
	require.NoError(t, err)
	_, err = other.Open(mine)
	assert.Error(t, err, "wrong key must not open")
}

func TestNewFieldCipher_KeyLength(t *testing.T) {
	_, err := NewFieldCipher("short")
	assert.Error(t, err)
	for _, n := range []int{16, 24, 32} {
		_, err := NewFieldCipher(strings.Repeat("k", n))
		assert.NoError(t, err, "key length %d", n)
	}
}
