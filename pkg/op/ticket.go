package op

import "time"

// Usage disambiguates which token kind a ticket represents (spec.md §3,
// Glossary "Ticket Usage").
type Usage string

const (
	UsageCode         Usage = "code"
	UsageAccessToken  Usage = "access_token"
	UsageIDToken      Usage = "id_token"
	UsageRefreshToken Usage = "refresh_token"
)

// Claim is a single name/value pair of a Principal, with an optional
// destination restricting which token kinds may carry it (spec.md §4.11:
// "retained iff its destination attribute contains the current token
// kind").
type Claim struct {
	Type        string
	Value       string
	Destination []string
}

// destinedFor reports whether this claim should survive serialization
// into the given token kind.
func (c Claim) destinedFor(kind string) bool {
	for _, d := range c.Destination {
		if d == kind {
			return true
		}
	}
	return false
}

// Principal carries the main identity of the authenticated end user
// (spec.md §3: "principal (claim set with a main identity)").
type Principal struct {
	Claims []Claim
}

// ClaimValue returns the first value for the named claim, or "".
func (p *Principal) ClaimValue(name string) string {
	for _, c := range p.Claims {
		if c.Type == name {
			return c.Value
		}
	}
	return ""
}

// ClaimValues returns every value for the named claim, preserving order.
func (p *Principal) ClaimValues(name string) []string {
	var out []string
	for _, c := range p.Claims {
		if c.Type == name {
			out = append(out, c.Value)
		}
	}
	return out
}

// AddClaim appends a claim to the principal.
func (p *Principal) AddClaim(claimType, value string, destination ...string) {
	p.Claims = append(p.Claims, Claim{Type: claimType, Value: value, Destination: destination})
}

// Well-known claim types.
const (
	ClaimNameIdentifier = "name_identifier"
	ClaimSubject        = "sub"
	ClaimFamilyName     = "family_name"
	ClaimGivenName      = "given_name"
	ClaimBirthdate      = "birthdate"
	ClaimEmail          = "email"
	ClaimPhoneNumber    = "phone_number"
)

// Well-known items keys carried in Properties.Items (spec.md §3).
const (
	ItemClientID      = "client_id"
	ItemRedirectURI   = "redirect_uri"
	ItemResource      = "resource"
	ItemScope         = "scope"
	ItemNonce         = "nonce"
	ItemUsage         = "usage"
	ItemConfidential  = "confidential"
	ItemAudiences     = "audiences"
)

// Properties is the protocol-context bag attached to a ticket (spec.md
// §3).
type Properties struct {
	IssuedUTC  time.Time
	ExpiresUTC time.Time
	Items      map[string]string
}

// NewProperties returns an empty Properties with an initialized Items
// map.
func NewProperties() *Properties {
	return &Properties{Items: make(map[string]string)}
}

// Usage returns the ticket usage tag stored in Items, or "" if absent.
func (p *Properties) Usage() Usage { return Usage(p.Items[ItemUsage]) }

// SetUsage stores the usage tag.
func (p *Properties) SetUsage(u Usage) { p.Items[ItemUsage] = string(u) }

// Confidential reports whether the ticket is marked confidential (spec.md
// §3 invariant c: originated from an authenticated client).
func (p *Properties) Confidential() bool { return p.Items[ItemConfidential] == "true" }

// SetConfidential marks the ticket confidential.
func (p *Properties) SetConfidential(v bool) {
	if v {
		p.Items[ItemConfidential] = "true"
		return
	}
	delete(p.Items, ItemConfidential)
}

// Audiences returns the space-delimited audiences item, split.
func (p *Properties) Audiences() []string { return splitSpaceTrim(p.Items[ItemAudiences]) }

// SetAudiences stores audiences space-delimited.
func (p *Properties) SetAudiences(aud []string) { p.Items[ItemAudiences] = joinSpace(aud) }

// Scopes returns the space-delimited scope item, split.
func (p *Properties) Scopes() []string { return splitSpaceTrim(p.Items[ItemScope]) }

// SetScopes stores scopes space-delimited.
func (p *Properties) SetScopes(scopes []string) { p.Items[ItemScope] = joinSpace(scopes) }

// Ticket is the Authentication Ticket of spec.md §3: a principal plus
// protocol-context properties and an auth scheme label.
type Ticket struct {
	Principal  *Principal
	Properties *Properties
	AuthScheme string
}

// NewTicket returns a ticket with the given principal, expiry window, and
// usage tag. The window is stored as given; NewTicket does not check that
// expires lies after issued (invariant (a)).
func NewTicket(principal *Principal, issued, expires time.Time, usage Usage, authScheme string) *Ticket {
	props := NewProperties()
	props.IssuedUTC = issued
	props.ExpiresUTC = expires
	props.SetUsage(usage)
	return &Ticket{Principal: principal, Properties: props, AuthScheme: authScheme}
}

// IsCode reports whether the ticket's usage is Code.
func (t *Ticket) IsCode() bool { return t.Properties.Usage() == UsageCode }

// IsAccessToken reports whether the ticket's usage is AccessToken.
func (t *Ticket) IsAccessToken() bool { return t.Properties.Usage() == UsageAccessToken }

// IsIDToken reports whether the ticket's usage is IdToken.
func (t *Ticket) IsIDToken() bool { return t.Properties.Usage() == UsageIDToken }

// IsRefreshToken reports whether the ticket's usage is RefreshToken.
func (t *Ticket) IsRefreshToken() bool { return t.Properties.Usage() == UsageRefreshToken }

// Expired reports whether now is at or past ExpiresUTC.
func (t *Ticket) Expired(now time.Time) bool { return !now.Before(t.Properties.ExpiresUTC) }

func splitSpaceTrim(s string) []string {
	fields := []string{}
	start := -1
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' {
			if start >= 0 {
				fields = append(fields, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		fields = append(fields, s[start:])
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func joinSpace(vals []string) string {
	out := ""
	for i, v := range vals {
		if i > 0 {
			out += " "
		}
		out += v
	}
	return out
}
