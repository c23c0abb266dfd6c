package op

import (
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // thumbprint per JWK x5t spec, not a security boundary
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"

	jose "github.com/go-jose/go-jose/v3"
)

// SigningCredentials is one entry of the Signing Key Set (spec.md §3),
// capable of signing a JWT and of describing itself for the JWKS
// endpoint. Corresponds to the teacher's signer.go SigningKey/Key
// interfaces, generalized to carry an optional certificate.
type SigningCredentials interface {
	KeyID() string
	Algorithm() jose.SignatureAlgorithm
	Key() interface{}
	Certificate() *x509.Certificate
}

// rsaSigningCredentials is the default SigningCredentials: a bare RSA
// key pair, optionally backed by an X.509 certificate.
type rsaSigningCredentials struct {
	kid  string
	alg  jose.SignatureAlgorithm
	key  *rsa.PrivateKey
	cert *x509.Certificate
}

// NewRSASigningCredentials wraps an RSA private key for use as a signing
// credential. kid may be empty, in which case one is derived from the
// modulus (spec.md §4.9).
func NewRSASigningCredentials(kid string, alg jose.SignatureAlgorithm, key *rsa.PrivateKey) SigningCredentials {
	return &rsaSigningCredentials{kid: kid, alg: alg, key: key}
}

// NewX509SigningCredentials wraps an RSA private key together with its
// issuing certificate, enabling x5t/x5c in the JWKS document.
func NewX509SigningCredentials(kid string, alg jose.SignatureAlgorithm, key *rsa.PrivateKey, cert *x509.Certificate) SigningCredentials {
	return &rsaSigningCredentials{kid: kid, alg: alg, key: key, cert: cert}
}

func (c *rsaSigningCredentials) Algorithm() jose.SignatureAlgorithm { return c.alg }
func (c *rsaSigningCredentials) Key() interface{}                  { return c.key }
func (c *rsaSigningCredentials) Certificate() *x509.Certificate    { return c.cert }

func (c *rsaSigningCredentials) KeyID() string {
	if c.kid != "" {
		return c.kid
	}
	if c.cert != nil {
		return thumbprint(c.cert)
	}
	return defaultKeyID(&c.key.PublicKey)
}

// asymmetric reports whether credentials can sign a JWT (spec.md §9 Open
// Question: "implementers should reject such configurations at
// startup... if the first key is not asymmetric").
func asymmetric(c SigningCredentials) bool {
	_, ok := c.Key().(*rsa.PrivateKey)
	return ok
}

// supportedJWKAlgorithms restricts the JWKS walk to the algorithms
// spec.md §4.9 names: "skipping keys whose algorithm is not in {RS256,
// RS384, RS512}".
var supportedJWKAlgorithms = map[jose.SignatureAlgorithm]bool{
	jose.RS256: true,
	jose.RS384: true,
	jose.RS512: true,
}

// thumbprint computes the base64url(SHA-1(DER)) fingerprint used for a
// certificate-backed key's kid fallback and x5t value (spec.md §4.9).
func thumbprint(cert *x509.Certificate) string {
	sum := sha1.Sum(cert.Raw) //nolint:gosec // X.509 thumbprint algorithm mandates SHA-1
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// defaultKeyID derives a kid from "the first 40 uppercase chars of
// base64url(modulus)" for plain RSA keys without an explicit kid or
// certificate (spec.md §4.9, §4.11).
func defaultKeyID(pub *rsa.PublicKey) string {
	n := base64.RawURLEncoding.EncodeToString(pub.N.Bytes())
	n = strings.ToUpper(n)
	if len(n) > 40 {
		n = n[:40]
	}
	return n
}

// keyIDChain resolves "credentials.kid ∥ securityKey.keyId ∥ certificate
// thumbprint ∥ first 40 chars of base64url(modulus) uppercase" (spec.md
// §4.9, §4.11) for a single credential.
func keyIDChain(c SigningCredentials) string {
	if id := c.KeyID(); id != "" {
		return id
	}
	if cert := c.Certificate(); cert != nil {
		return thumbprint(cert)
	}
	if rsaKey, ok := c.Key().(*rsa.PrivateKey); ok {
		return defaultKeyID(&rsaKey.PublicKey)
	}
	return ""
}

// toJoseSigner builds a go-jose signer for JWT serialization (spec.md
// §4.11), mirroring the teacher's SignerFromKey.
func toJoseSigner(c SigningCredentials) (jose.Signer, error) {
	signer, err := jose.NewSigner(jose.SigningKey{
		Algorithm: c.Algorithm(),
		Key: &jose.JSONWebKey{
			Key:   c.Key(),
			KeyID: keyIDChain(c),
		},
	}, (&jose.SignerOptions{}).WithType("JWT"))
	if err != nil {
		return nil, fmt.Errorf("op: creating signer: %w", err)
	}
	return signer, nil
}
