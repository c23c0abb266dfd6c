package op

import (
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

// DataFormat is the symmetric "data-format protect/unprotect" capability
// of spec.md §9 ("Security-token handler variability... the JWT path is
// one implementation, data-format symmetric encryption another"). It
// turns a serialized ticket into an opaque, tamper-evident string and
// back, for the Token Serializer's opaque path (spec.md §4.11).
type DataFormat interface {
	Protect(plaintext []byte) (string, error)
	Unprotect(token string) ([]byte, error)
}

// secretboxFormat implements DataFormat with NaCl secretbox
// (XSalsa20-Poly1305), keyed by the 256-bit Client Options data
// protection key.
type secretboxFormat struct {
	key [32]byte
	rng RandomNumberGenerator
}

// NewDataFormat returns the default DataFormat, an authenticated
// encryption scheme over key.
func NewDataFormat(key [32]byte, rng RandomNumberGenerator) DataFormat {
	return &secretboxFormat{key: key, rng: rng}
}

func (f *secretboxFormat) Protect(plaintext []byte) (string, error) {
	var nonce [24]byte
	if err := f.rng.FillBytes(nonce[:]); err != nil {
		return "", fmt.Errorf("op: generating nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], plaintext, &nonce, &f.key)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (f *secretboxFormat) Unprotect(token string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("op: decoding token: %w", err)
	}
	if len(raw) < 24 {
		return nil, fmt.Errorf("op: token too short")
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	plaintext, ok := secretbox.Open(nil, raw[24:], &nonce, &f.key)
	if !ok {
		return nil, fmt.Errorf("op: token authentication failed")
	}
	return plaintext, nil
}
