package op

import (
	"crypto/rsa"
	"encoding/base64"
	"net/http"

	"github.com/connectid/oidcop/internal/otel"
	"github.com/connectid/oidcop/pkg/oidc"
)

// handleJWKS implements the Cryptography (JWKS) Endpoint of spec.md §4.9:
// walks the Signing Key Set, skipping any credential whose algorithm is
// not one of RS256/RS384/RS512, and enforces that every emitted kid is
// unique.
func (h *Handler) handleJWKS(w http.ResponseWriter, r *http.Request) {
	_, span := otel.Tracer("op").Start(r.Context(), "Handler.handleJWKS")
	defer span.End()

	set := &oidc.JSONWebKeySet{}
	seen := map[string]bool{}
	for _, cred := range h.Options.SigningCredentials {
		if !supportedJWKAlgorithms[cred.Algorithm()] {
			continue
		}
		kid := keyIDChain(cred)
		if kid == "" || seen[kid] {
			continue
		}
		seen[kid] = true
		set.Keys = append(set.Keys, jwkFor(cred, kid))
	}

	w.Header().Set("Content-Type", "application/json")
	_ = WriteJSON(w, http.StatusOK, set)
}

func jwkFor(cred SigningCredentials, kid string) *oidc.JSONWebKey {
	jwk := &oidc.JSONWebKey{
		KeyType:   "RSA",
		Use:       "sig",
		Algorithm: string(cred.Algorithm()),
		KeyID:     kid,
	}
	if rsaKey, ok := cred.Key().(*rsa.PrivateKey); ok {
		jwk.N = base64.RawURLEncoding.EncodeToString(rsaKey.PublicKey.N.Bytes())
		jwk.E = base64.RawURLEncoding.EncodeToString(bigEndianUint(rsaKey.PublicKey.E))
	}
	if cert := cred.Certificate(); cert != nil {
		jwk.X5T = thumbprint(cert)
		jwk.X5C = []string{base64.StdEncoding.EncodeToString(cert.Raw)}
	}
	return jwk
}

// bigEndianUint trims leading zero bytes, matching the minimal big-endian
// encoding JWK's "e" member requires for the RSA public exponent.
func bigEndianUint(v int) []byte {
	if v == 0 {
		return []byte{0}
	}
	var b []byte
	for v > 0 {
		b = append([]byte{byte(v & 0xff)}, b...)
		v >>= 8
	}
	return b
}
