package op

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/connectid/oidcop/internal/otel"
	"github.com/connectid/oidcop/pkg/oidc"
)

// continuationFrameVersion is the only version this adapter writes; a
// future incompatible frame layout would bump it (spec.md §3:
// "version=1, parameters").
const continuationFrameVersion int32 = 1

// continuationTTL is the fixed lifetime of a continuation entry (spec.md
// §3, §4.3 step 13: "TTL 1h").
const continuationTTL = time.Hour

// continuationCache is the Continuation Cache Adapter of spec.md §2.3: it
// stores/retrieves serialized authorization requests by unique_id, using
// a versioned binary frame over the injected Cache.
type continuationCache struct {
	cache Cache
	clock Clock
	rng   RandomNumberGenerator
}

func newContinuationCache(cache Cache, clock Clock, rng RandomNumberGenerator) *continuationCache {
	return &continuationCache{cache: cache, clock: clock, rng: rng}
}

// Save mints a fresh unique_id (spec.md §4.3 step 13: "32 bytes,
// base64url") when msg has none, persists msg's parameters under it with
// a 1-hour TTL, and returns the id used.
func (c *continuationCache) Save(ctx context.Context, msg *oidc.ProtocolMessage) (string, error) {
	ctx, span := otel.Tracer("op").Start(ctx, "continuationCache.Save")
	defer span.End()

	id := msg.UniqueID()
	if id == "" {
		var err error
		id, err = random256(c.rng)
		if err != nil {
			return "", fmt.Errorf("op: minting unique_id: %w", err)
		}
	}
	frame, err := encodeContinuationFrame(msg)
	if err != nil {
		return "", err
	}
	expiresAt := c.clock.UtcNow().Add(continuationTTL)
	if err := c.cache.Set(ctx, id, frame, expiresAt); err != nil {
		return "", fmt.Errorf("op: storing continuation entry: %w", err)
	}
	return id, nil
}

// Load retrieves the continuation entry for id, if any. ok is false on a
// cache miss (spec.md §4.2: "on miss, reject with invalid_request
// 'timeout expired'").
func (c *continuationCache) Load(ctx context.Context, id string) (*oidc.ProtocolMessage, bool, error) {
	ctx, span := otel.Tracer("op").Start(ctx, "continuationCache.Load")
	defer span.End()

	raw, ok, err := c.cache.Get(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("op: loading continuation entry: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	msg, err := decodeContinuationFrame(raw)
	if err != nil {
		return nil, false, err
	}
	return msg, true, nil
}

// Remove deletes the continuation entry, done at the end of a successful
// sign-in (spec.md §4.3: "Remove the continuation cache entry keyed by
// unique_id").
func (c *continuationCache) Remove(ctx context.Context, id string) error {
	ctx, span := otel.Tracer("op").Start(ctx, "continuationCache.Remove")
	defer span.End()
	return c.cache.Remove(ctx, id)
}

// encodeContinuationFrame writes the versioned binary frame of spec.md
// §2.3: "version:int32, count:int32, then count×(string,string)".
func encodeContinuationFrame(msg *oidc.ProtocolMessage) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, continuationFrameVersion); err != nil {
		return nil, err
	}
	keys := msg.Keys()
	if err := binary.Write(&buf, binary.BigEndian, int32(len(keys))); err != nil {
		return nil, err
	}
	for _, k := range keys {
		if err := writeFrameString(&buf, k); err != nil {
			return nil, err
		}
		if err := writeFrameString(&buf, msg.Get(k)); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeContinuationFrame(raw []byte) (*oidc.ProtocolMessage, error) {
	buf := bytes.NewReader(raw)
	var version int32
	if err := binary.Read(buf, binary.BigEndian, &version); err != nil {
		return nil, fmt.Errorf("op: reading continuation frame version: %w", err)
	}
	if version != continuationFrameVersion {
		return nil, fmt.Errorf("op: unsupported continuation frame version %d", version)
	}
	var count int32
	if err := binary.Read(buf, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("op: reading continuation frame count: %w", err)
	}
	msg := oidc.NewProtocolMessage(oidc.RequestTypeAuthentication)
	for i := int32(0); i < count; i++ {
		key, err := readFrameString(buf)
		if err != nil {
			return nil, err
		}
		value, err := readFrameString(buf)
		if err != nil {
			return nil, err
		}
		msg.Set(key, value)
	}
	return msg, nil
}

func writeFrameString(buf *bytes.Buffer, s string) error {
	if err := binary.Write(buf, binary.BigEndian, int32(len(s))); err != nil {
		return err
	}
	_, err := buf.WriteString(s)
	return err
}

func readFrameString(buf *bytes.Reader) (string, error) {
	var n int32
	if err := binary.Read(buf, binary.BigEndian, &n); err != nil {
		return "", fmt.Errorf("op: reading continuation frame string length: %w", err)
	}
	if n < 0 || int(n) > buf.Len() {
		return "", fmt.Errorf("op: corrupt continuation frame")
	}
	out := make([]byte, n)
	if _, err := buf.Read(out); err != nil {
		return "", fmt.Errorf("op: reading continuation frame string: %w", err)
	}
	return string(out), nil
}
