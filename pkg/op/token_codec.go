package op

import (
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/connectid/oidcop/internal/otel"
	jose "github.com/go-jose/go-jose/v3"
	josejwt "github.com/go-jose/go-jose/v3/jwt"
)

// ticketDTO is the JSON wire shape a Ticket is reduced to before being
// protected by DataFormat for the opaque path (spec.md §3: "ticket_blob:
// bytes").
type ticketDTO struct {
	Claims     []Claim           `json:"claims"`
	Items      map[string]string `json:"items"`
	IssuedUTC  time.Time         `json:"issued_utc"`
	ExpiresUTC time.Time         `json:"expires_utc"`
	AuthScheme string            `json:"auth_scheme"`
}

func encodeTicket(t *Ticket) ([]byte, error) {
	dto := ticketDTO{
		Claims:     t.Principal.Claims,
		Items:      t.Properties.Items,
		IssuedUTC:  t.Properties.IssuedUTC,
		ExpiresUTC: t.Properties.ExpiresUTC,
		AuthScheme: t.AuthScheme,
	}
	return json.Marshal(dto)
}

func decodeTicket(raw []byte) (*Ticket, error) {
	var dto ticketDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return nil, fmt.Errorf("op: decoding ticket: %w", err)
	}
	items := dto.Items
	if items == nil {
		items = make(map[string]string)
	}
	return &Ticket{
		Principal:  &Principal{Claims: dto.Claims},
		Properties: &Properties{Items: items, IssuedUTC: dto.IssuedUTC, ExpiresUTC: dto.ExpiresUTC},
		AuthScheme: dto.AuthScheme,
	}, nil
}

// IssueAuthorizationCode protects ticket and files it under a fresh
// 256-bit key in the Authorization Code Cache Entry store (spec.md §3,
// §4.3): the key, not the ciphertext, is the bearer value returned to
// the client.
func (h *Handler) IssueAuthorizationCode(ctx context.Context, ticket *Ticket) (string, error) {
	ctx, span := otel.Tracer("op").Start(ctx, "Handler.IssueAuthorizationCode")
	defer span.End()

	blob, err := encodeTicket(ticket)
	if err != nil {
		return "", err
	}
	protected, err := h.Options.DataFormat.Protect(blob)
	if err != nil {
		return "", fmt.Errorf("op: protecting authorization code: %w", err)
	}
	key, err := random256(h.Options.RandomNumberGenerator)
	if err != nil {
		return "", fmt.Errorf("op: minting authorization code key: %w", err)
	}
	if err := h.Options.Cache.Set(ctx, key, []byte(protected), ticket.Properties.ExpiresUTC); err != nil {
		return "", fmt.Errorf("op: storing authorization code: %w", err)
	}
	return key, nil
}

// RedeemAuthorizationCode removes the cache entry for code before
// attempting to decode it, satisfying the one-shot invariant (spec.md
// §5: "removed on first dereference, even if the dereference then fails
// validation").
func (h *Handler) RedeemAuthorizationCode(ctx context.Context, code string) (*Ticket, error) {
	ctx, span := otel.Tracer("op").Start(ctx, "Handler.RedeemAuthorizationCode")
	defer span.End()

	raw, ok, err := h.Options.Cache.Get(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("op: loading authorization code: %w", err)
	}
	_ = h.Options.Cache.Remove(ctx, code)
	if !ok {
		return nil, fmt.Errorf("op: unknown or already-redeemed authorization code")
	}
	blob, err := h.Options.DataFormat.Unprotect(string(raw))
	if err != nil {
		return nil, fmt.Errorf("op: unprotecting authorization code: %w", err)
	}
	return decodeTicket(blob)
}

// SerializeToken renders ticket as either an opaque, DataFormat-protected
// reference or a signed JWT, depending on format (spec.md §4.11).
func (h *Handler) SerializeToken(ctx context.Context, format TokenFormat, ticket *Ticket) (string, error) {
	ctx, span := otel.Tracer("op").Start(ctx, "Handler.SerializeToken")
	defer span.End()

	if format == FormatOpaque {
		blob, err := encodeTicket(ticket)
		if err != nil {
			return "", err
		}
		protected, err := h.Options.DataFormat.Protect(blob)
		if err != nil {
			return "", fmt.Errorf("op: protecting token: %w", err)
		}
		return protected, nil
	}
	return h.signJWT(ticket, nil, nil)
}

// DeserializeToken inverts SerializeToken, rejecting a ticket whose
// Properties.Usage does not match want (spec.md §3 invariant b: "usage
// is never null and is checked on every dereference").
func (h *Handler) DeserializeToken(ctx context.Context, format TokenFormat, want Usage, token string) (*Ticket, error) {
	ctx, span := otel.Tracer("op").Start(ctx, "Handler.DeserializeToken")
	defer span.End()

	var ticket *Ticket
	if format == FormatOpaque {
		blob, err := h.Options.DataFormat.Unprotect(token)
		if err != nil {
			return nil, fmt.Errorf("op: unprotecting token: %w", err)
		}
		ticket, err = decodeTicket(blob)
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		ticket, err = h.verifyJWT(token)
		if err != nil {
			return nil, err
		}
	}
	if ticket.Properties.Usage() != want {
		return nil, fmt.Errorf("op: token usage %q does not match expected %q", ticket.Properties.Usage(), want)
	}
	return ticket, nil
}

// signJWT builds and signs a JWT for ticket, stamping cHash/atHash when
// non-empty (spec.md §4.11: "c_hash when the response carries a code,
// at_hash when it carries an access token").
func (h *Handler) signJWT(ticket *Ticket, atHash, cHash *string) (string, error) {
	if len(h.Options.SigningCredentials) == 0 {
		return "", fmt.Errorf("op: no signing credentials configured")
	}
	signer, err := toJoseSigner(h.Options.SigningCredentials[0])
	if err != nil {
		return "", err
	}
	claims := map[string]interface{}{
		"sub":          ticket.Principal.ClaimValue(ClaimSubject),
		"iss":          h.Options.Issuer,
		"aud":          ticket.Properties.Audiences(),
		"iat":          josejwt.NewNumericDate(ticket.Properties.IssuedUTC),
		"exp":          josejwt.NewNumericDate(ticket.Properties.ExpiresUTC),
		"scope":        joinSpace(ticket.Properties.Scopes()),
		"client_id":    ticket.Properties.Items[ItemClientID],
		"usage":        string(ticket.Properties.Usage()),
		"confidential": ticket.Properties.Confidential(),
	}
	if nonce := ticket.Properties.Items[ItemNonce]; nonce != "" {
		claims["nonce"] = nonce
	}
	if atHash != nil {
		claims["at_hash"] = *atHash
	}
	if cHash != nil {
		claims["c_hash"] = *cHash
	}
	for _, c := range ticket.Principal.Claims {
		if !c.destinedFor(string(ticket.Properties.Usage())) {
			continue
		}
		claims[c.Type] = c.Value
	}
	raw, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("op: marshaling claims: %w", err)
	}
	sig, err := signer.Sign(raw)
	if err != nil {
		return "", fmt.Errorf("op: signing token: %w", err)
	}
	return sig.CompactSerialize()
}

// verifyJWT checks sig against every configured signing credential (not
// just the active one, so rotation doesn't invalidate outstanding
// tokens) and rebuilds a Ticket from its claims.
func (h *Handler) verifyJWT(raw string) (*Ticket, error) {
	tok, err := jose.ParseSigned(raw)
	if err != nil {
		return nil, fmt.Errorf("op: parsing token: %w", err)
	}
	var payload []byte
	var verifyErr error
	for _, cred := range h.Options.SigningCredentials {
		payload, verifyErr = tok.Verify(publicKey(cred))
		if verifyErr == nil {
			break
		}
	}
	if verifyErr != nil {
		return nil, fmt.Errorf("op: verifying token signature: %w", verifyErr)
	}
	var claims map[string]interface{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("op: decoding token claims: %w", err)
	}
	return ticketFromClaims(claims)
}

func ticketFromClaims(claims map[string]interface{}) (*Ticket, error) {
	props := NewProperties()
	principal := &Principal{}
	reserved := map[string]bool{
		"sub": true, "iss": true, "aud": true, "iat": true, "exp": true,
		"scope": true, "client_id": true, "usage": true, "confidential": true,
		"nonce": true, "at_hash": true, "c_hash": true,
	}
	for k, v := range claims {
		if s, ok := v.(string); ok && !reserved[k] {
			principal.AddClaim(k, s)
		}
	}
	if sub, ok := claims["sub"].(string); ok {
		principal.AddClaim(ClaimSubject, sub)
	}
	if cid, ok := claims["client_id"].(string); ok {
		props.Items[ItemClientID] = cid
	}
	switch aud := claims["aud"].(type) {
	case string:
		props.SetAudiences([]string{aud})
	case []interface{}:
		var auds []string
		for _, a := range aud {
			if s, ok := a.(string); ok {
				auds = append(auds, s)
			}
		}
		props.SetAudiences(auds)
	}
	if scope, ok := claims["scope"].(string); ok {
		props.Items[ItemScope] = scope
	}
	if usage, ok := claims["usage"].(string); ok {
		props.SetUsage(Usage(usage))
	}
	if confidential, ok := claims["confidential"].(bool); ok {
		props.SetConfidential(confidential)
	}
	if nonce, ok := claims["nonce"].(string); ok {
		props.Items[ItemNonce] = nonce
	}
	if iat, ok := claims["iat"].(float64); ok {
		props.IssuedUTC = time.Unix(int64(iat), 0).UTC()
	}
	if exp, ok := claims["exp"].(float64); ok {
		props.ExpiresUTC = time.Unix(int64(exp), 0).UTC()
	}
	return &Ticket{Principal: principal, Properties: props}, nil
}

// publicKey extracts the verification half of cred's key, since
// go-jose's Verify only accepts public keys even though SigningCredentials
// carries the private key needed to sign.
func publicKey(cred SigningCredentials) interface{} {
	if key, ok := cred.Key().(*rsa.PrivateKey); ok {
		return &key.PublicKey
	}
	return cred.Key()
}

// leftHalfSHA256 computes c_hash/at_hash per OIDC Core §3.1.3.6: SHA-256
// the ASCII value, take the left half of the octets, base64url-encode
// without padding.
func leftHalfSHA256(value string) string {
	sum := sha256.Sum256([]byte(value))
	half := sum[:len(sum)/2]
	return base64.RawURLEncoding.EncodeToString(half)
}
