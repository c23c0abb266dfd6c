package op

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"

	jose "github.com/go-jose/go-jose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSigningCredentials(t *testing.T) SigningCredentials {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return NewRSASigningCredentials("k1", jose.RS256, key)
}

func TestNew_RejectsEmptyIssuer(t *testing.T) {
	_, err := New("", WithSigningCredentials(validSigningCredentials(t)), WithCache(NewMemoryCache(SystemClock{})), WithDataFormat(NewDataFormat([32]byte{}, CryptoRNG{})))
	assert.Error(t, err)
}

func TestNew_RejectsInsecureIssuerByDefault(t *testing.T) {
	_, err := New("http://issuer.example", WithSigningCredentials(validSigningCredentials(t)), WithCache(NewMemoryCache(SystemClock{})), WithDataFormat(NewDataFormat([32]byte{}, CryptoRNG{})))
	assert.Error(t, err)
}

func TestNew_AllowsInsecureIssuerWhenOptedIn(t *testing.T) {
	_, err := New("http://localhost:8080",
		WithAllowInsecureHTTP(),
		WithSigningCredentials(validSigningCredentials(t)),
		WithCache(NewMemoryCache(SystemClock{})),
		WithDataFormat(NewDataFormat([32]byte{}, CryptoRNG{})))
	assert.NoError(t, err)
}

func TestNew_RejectsMissingSigningCredentials(t *testing.T) {
	_, err := New("https://issuer.example", WithCache(NewMemoryCache(SystemClock{})), WithDataFormat(NewDataFormat([32]byte{}, CryptoRNG{})))
	assert.Error(t, err)
}

func TestNew_RejectsMissingCache(t *testing.T) {
	_, err := New("https://issuer.example", WithSigningCredentials(validSigningCredentials(t)), WithDataFormat(NewDataFormat([32]byte{}, CryptoRNG{})))
	assert.Error(t, err)
}

func TestNew_RejectsMissingDataFormat(t *testing.T) {
	_, err := New("https://issuer.example", WithSigningCredentials(validSigningCredentials(t)), WithCache(NewMemoryCache(SystemClock{})))
	assert.Error(t, err)
}

func TestNew_AppliesDefaultLifetimesAndEndpoints(t *testing.T) {
	o, err := New("https://issuer.example",
		WithSigningCredentials(validSigningCredentials(t)),
		WithCache(NewMemoryCache(SystemClock{})),
		WithDataFormat(NewDataFormat([32]byte{}, CryptoRNG{})))
	require.NoError(t, err)

	assert.Equal(t, DefaultAccessTokenLifetime, o.AccessTokenLifetime)
	assert.Equal(t, DefaultRefreshTokenLifetime, o.RefreshTokenLifetime)
	assert.Equal(t, DefaultEndpoints, o.Endpoints)
	assert.False(t, o.UseSlidingExpiration)
}

func TestWithSlidingExpiration_EnablesSlidingExpiration(t *testing.T) {
	o, err := New("https://issuer.example",
		WithSigningCredentials(validSigningCredentials(t)),
		WithCache(NewMemoryCache(SystemClock{})),
		WithDataFormat(NewDataFormat([32]byte{}, CryptoRNG{})),
		WithSlidingExpiration())
	require.NoError(t, err)

	assert.True(t, o.UseSlidingExpiration)
}

func TestWithEndpointOverrides_DisableByEmptyPath(t *testing.T) {
	o, err := New("https://issuer.example",
		WithSigningCredentials(validSigningCredentials(t)),
		WithCache(NewMemoryCache(SystemClock{})),
		WithDataFormat(NewDataFormat([32]byte{}, CryptoRNG{})),
		WithUserinfoEndpoint(""))
	require.NoError(t, err)

	assert.False(t, o.Endpoints.Userinfo.Enabled())
	assert.True(t, o.Endpoints.Token.Enabled())
}
