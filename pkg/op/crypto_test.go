package op

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDataFormat(t *testing.T) DataFormat {
	t.Helper()
	var key [32]byte
	require.NoError(t, CryptoRNG{}.FillBytes(key[:]))
	return NewDataFormat(key, CryptoRNG{})
}

func TestDataFormat_ProtectUnprotectRoundTrip(t *testing.T) {
	df := newTestDataFormat(t)
	plaintext := []byte("authorization-code-payload")

	token, err := df.Protect(plaintext)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	got, err := df.Unprotect(token)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestDataFormat_UnprotectRejectsTamperedToken(t *testing.T) {
	df := newTestDataFormat(t)
	token, err := df.Protect([]byte("payload"))
	require.NoError(t, err)

	tampered := []byte(token)
	tampered[len(tampered)-1] ^= 0xFF

	_, err = df.Unprotect(string(tampered))
	assert.Error(t, err)
}

func TestDataFormat_UnprotectRejectsWrongKey(t *testing.T) {
	df := newTestDataFormat(t)
	token, err := df.Protect([]byte("payload"))
	require.NoError(t, err)

	other := newTestDataFormat(t)
	_, err = other.Unprotect(token)
	assert.Error(t, err)
}

func TestDataFormat_UnprotectRejectsMalformedToken(t *testing.T) {
	df := newTestDataFormat(t)

	_, err := df.Unprotect("not-valid-base64!!")
	assert.Error(t, err)

	_, err = df.Unprotect("")
	assert.Error(t, err)
}

func TestRandom256_ProducesDistinctValues(t *testing.T) {
	a, err := random256(CryptoRNG{})
	require.NoError(t, err)
	b, err := random256(CryptoRNG{})
	require.NoError(t, err)

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
