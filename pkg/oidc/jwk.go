package oidc

// JSONWebKey is the public-key document emitted by the JWKS endpoint
// (spec.md §3, §4.9). Field presence varies by key source: X.509-backed
// keys carry x5t/x5c, plain RSA keys carry e/n.
type JSONWebKey struct {
	KeyType   string   `json:"kty"`
	Use       string   `json:"use,omitempty"`
	Algorithm string   `json:"alg,omitempty"`
	KeyID     string   `json:"kid,omitempty"`
	X5T       string   `json:"x5t,omitempty"`
	X5C       []string `json:"x5c,omitempty"`
	E         string   `json:"e,omitempty"`
	N         string   `json:"n,omitempty"`
	KeyOps    []string `json:"key_ops,omitempty"`
}

// JSONWebKeySet is the document body served at the JWKS endpoint.
type JSONWebKeySet struct {
	Keys []*JSONWebKey `json:"keys"`
}
