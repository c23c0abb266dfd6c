package op

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"

	jose "github.com/go-jose/go-jose/v3"

	"github.com/stretchr/testify/require"
)

// newTestOptions returns Options wired with an in-memory Cache, a fixed
// DataFormat key, and a throwaway RSA signing credential, enough to drive
// the token codec and introspection paths end to end without a network
// call or any real secret material.
func newTestOptions(t *testing.T, opts ...Option) *Options {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	var dataFormatKey [32]byte
	require.NoError(t, CryptoRNG{}.FillBytes(dataFormatKey[:]))

	base := []Option{
		WithSigningCredentials(NewRSASigningCredentials("test-key", jose.RS256, key)),
		WithDataFormat(NewDataFormat(dataFormatKey, CryptoRNG{})),
		WithCache(NewMemoryCache(SystemClock{})),
	}
	o, err := New("https://issuer.example", append(base, opts...)...)
	require.NoError(t, err)
	return o
}

func newTestHandlerWithOptions(t *testing.T, opts ...Option) *Handler {
	t.Helper()
	return NewHandler(newTestOptions(t, opts...), nil, nil)
}
