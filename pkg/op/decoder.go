package op

import (
	"net/http"

	"github.com/connectid/oidcop/pkg/oidc"
)

// maxFormBytes bounds the size of a decoded request body, mirroring the
// teacher's http.ParseForm call sites which rely on Go's own default but
// explicit here since this middleware is meant to be embedded inside
// larger applications that may not set one themselves.
const maxFormBytes = 1 << 20

// DecodeQuery builds a ProtocolMessage from r's URL query string (spec.md
// §4.1/§4.2: GET requests to the authorization and logout endpoints).
func DecodeQuery(r *http.Request, typ oidc.RequestType) (*oidc.ProtocolMessage, error) {
	msg := oidc.NewProtocolMessage(typ)
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			msg.Set(key, values[0])
		}
	}
	return msg, nil
}

// DecodeForm builds a ProtocolMessage from r's POST body (spec.md §4.3:
// "Content-Type must be application/x-www-form-urlencoded"). Query
// parameters are not consulted; the token endpoint takes its request
// exclusively from the body.
func DecodeForm(w http.ResponseWriter, r *http.Request, typ oidc.RequestType) (*oidc.ProtocolMessage, error) {
	if r.Method != http.MethodPost {
		return nil, oidc.ErrInvalidRequest().WithDescription("method must be POST")
	}
	ct := r.Header.Get("Content-Type")
	if ct != "" && !isFormContentType(ct) {
		return nil, oidc.ErrInvalidRequest().WithDescription("content type must be application/x-www-form-urlencoded")
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		return nil, oidc.ErrInvalidRequest().WithDescription("malformed request body").WithParent(err)
	}
	msg := oidc.NewProtocolMessage(typ)
	for key, values := range r.PostForm {
		if len(values) > 0 {
			msg.Set(key, values[0])
		}
	}
	return msg, nil
}

func isFormContentType(ct string) bool {
	for i, c := range ct {
		if c == ';' {
			ct = ct[:i]
			break
		}
	}
	return ct == "application/x-www-form-urlencoded" || ct == ""
}

// MergeContinuation overlays a continuation cache entry's parameters onto
// live (the SignIn callback's own message), never clobbering a parameter
// already present on live (spec.md §4.2: "stored parameters never
// clobber ones already present on the live message").
func MergeContinuation(live, stored *oidc.ProtocolMessage) {
	for _, key := range stored.Keys() {
		live.SetIfAbsent(key, stored.Get(key))
	}
}

// RequireBasicOrFormClientAuth extracts client_id/client_secret from
// either HTTP Basic auth or the request body, per spec.md §4.3 step 2
// ("RFC 6749 §2.3.1: client_secret_basic or client_secret_post, never
// both").
func RequireBasicOrFormClientAuth(r *http.Request, msg *oidc.ProtocolMessage) (clientID, clientSecret string, err error) {
	basicID, basicSecret, hasBasic := r.BasicAuth()
	formID, formSecret := msg.ClientID(), msg.ClientSecret()
	hasForm := formID != "" || formSecret != ""
	switch {
	case hasBasic && hasForm:
		return "", "", oidc.ErrInvalidRequest().WithDescription("client authentication must use exactly one of Basic auth or client_id/client_secret form fields")
	case hasBasic:
		return basicID, basicSecret, nil
	case hasForm:
		return formID, formSecret, nil
	default:
		return "", "", nil
	}
}

