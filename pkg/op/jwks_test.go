package op

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"net/http/httptest"
	"testing"

	jose "github.com/go-jose/go-jose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connectid/oidcop/pkg/oidc"
)

// hmacCredentials is a SigningCredentials whose algorithm is not in
// supportedJWKAlgorithms, used to verify handleJWKS skips it.
type hmacCredentials struct {
	kid string
}

func (h hmacCredentials) KeyID() string                    { return h.kid }
func (h hmacCredentials) Algorithm() jose.SignatureAlgorithm { return jose.HS256 }
func (h hmacCredentials) Key() interface{}                  { return []byte("irrelevant") }
func (h hmacCredentials) Certificate() *x509.Certificate    { return nil }

func TestHandleJWKS_EmitsSupportedKeysAndSkipsUnsupportedAlgorithms(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	rsaCred := NewRSASigningCredentials("rsa-key-1", jose.RS256, key)
	hmacCred := hmacCredentials{kid: "hmac-key-1"}

	h := newTestHandlerWithOptions(t, WithSigningCredentials(rsaCred, hmacCred))

	req := httptest.NewRequest("GET", "/.well-known/jwks", nil)
	rec := httptest.NewRecorder()
	h.handleJWKS(rec, req)

	assert.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"rsa-key-1"`)
	assert.NotContains(t, body, `"hmac-key-1"`)
	assert.Contains(t, body, `"kty":"RSA"`)
}

func TestHandleJWKS_DedupesRepeatedKeyIDs(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	credA := NewRSASigningCredentials("shared-kid", jose.RS256, key)
	credB := NewRSASigningCredentials("shared-kid", jose.RS256, key)

	h := newTestHandlerWithOptions(t, WithSigningCredentials(credA, credB))

	req := httptest.NewRequest("GET", "/.well-known/jwks", nil)
	rec := httptest.NewRecorder()
	h.handleJWKS(rec, req)

	set := &oidc.JSONWebKeySet{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), set))
	assert.Len(t, set.Keys, 1)
}

func TestJwkFor_EncodesModulusAndExponent(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	cred := NewRSASigningCredentials("k1", jose.RS256, key)

	jwk := jwkFor(cred, "k1")
	assert.Equal(t, "RSA", jwk.KeyType)
	assert.Equal(t, "sig", jwk.Use)
	assert.NotEmpty(t, jwk.N)
	assert.NotEmpty(t, jwk.E)
	assert.Empty(t, jwk.X5T)
}

func TestBigEndianUint(t *testing.T) {
	assert.Equal(t, []byte{0}, bigEndianUint(0))
	assert.Equal(t, []byte{0x01, 0x00, 0x01}, bigEndianUint(65537))
}
