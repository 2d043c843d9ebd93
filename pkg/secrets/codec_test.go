package secrets

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	c := NewCodec("test-key")
	for _, s := range []string{
		"",
		"hunter2",
		"a much longer secret with spaces and symbols !@#$%^&*()",
		"unicode: pägé 日本語",
		strings.Repeat("x", 4096),
	} {
		blob, err := c.Encrypt(s)
		require.NoError(t, err)
		got, err := c.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestBlobFormat(t *testing.T) {
	c := NewCodec("test-key")
	blob, err := c.Encrypt("secret")
	require.NoError(t, err)

	parts := strings.Split(blob, ":")
	require.Len(t, parts, 3)
	nonce, err := hex.DecodeString(parts[0])
	require.NoError(t, err)
	assert.Len(t, nonce, 12)
	tag, err := hex.DecodeString(parts[1])
	require.NoError(t, err)
	assert.Len(t, tag, 16)
}

func TestNoncesDiffer(t *testing.T) {
	c := NewCodec("test-key")
	a, err := c.Encrypt("same plaintext")
	require.NoError(t, err)
	b, err := c.Encrypt("same plaintext")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestTamperDetection(t *testing.T) {
	c := NewCodec("test-key")
	blob, err := c.Encrypt("do not touch")
	require.NoError(t, err)

	// Flipping any hex digit in any of the three parts must fail the
	// integrity check, never return corrupted plaintext.
	for i := 0; i < len(blob); i++ {
		if blob[i] == ':' {
			continue
		}
		flip := byte('0')
		if blob[i] == '0' {
			flip = '1'
		}
		tampered := blob[:i] + string(flip) + blob[i+1:]
		_, err := c.Decrypt(tampered)
		assert.ErrorIs(t, err, ErrIntegrity, "offset %d", i)
	}
}

func TestWrongKey(t *testing.T) {
	blob, err := NewCodec("key-one").Encrypt("secret")
	require.NoError(t, err)
	_, err = NewCodec("key-two").Decrypt(blob)
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestMalformedBlob(t *testing.T) {
	c := NewCodec("test-key")
	for _, blob := range []string{
		"",
		"nope",
		"aa:bb",
		"aa:bb:cc:dd",
		"zz:bb:cc",
		"aabb:gg:cc",
	} {
		_, err := c.Decrypt(blob)
		assert.True(t, errors.Is(err, ErrIntegrity), "blob %q gave %v", blob, err)
	}
}
