package op

import (
	"crypto/rand"
	"encoding/base64"
	"io"
)

// RandomNumberGenerator is the injected randomness capability (spec.md
// §9: "never read global randomness directly"). Used for 256-bit cache
// keys, the authorization code plaintext, and the unique_id of a
// continuation cache entry.
type RandomNumberGenerator interface {
	FillBytes(buf []byte) error
}

// CryptoRNG is the default RandomNumberGenerator, backed by
// crypto/rand.Reader.
type CryptoRNG struct{}

// FillBytes fills buf with cryptographically secure random bytes.
func (CryptoRNG) FillBytes(buf []byte) error {
	_, err := io.ReadFull(rand.Reader, buf)
	return err
}

// random256 returns 32 cryptographically random bytes, base64url-encoded
// without padding, as used for cache keys and authorization codes
// (spec.md §3: "256-bit base64url").
func random256(rng RandomNumberGenerator) (string, error) {
	buf := make([]byte, 32)
	if err := rng.FillBytes(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
