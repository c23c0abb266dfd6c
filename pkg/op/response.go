package op

import (
	"encoding/json"
	"html/template"
	"net/http"
	"net/url"

	"github.com/connectid/oidcop/pkg/oidc"
)

// formPostTemplate renders an auto-submitting form, the response_mode
// the OIDC Form Post Response Mode spec requires for user-agent-based
// flows that can't use a 3xx redirect (spec.md §4.10).
var formPostTemplate = template.Must(template.New("form_post").Parse(`<!DOCTYPE html>
<html>
<head><title>Authentication Response</title></head>
<body onload="javascript:document.forms[0].submit()">
<form method="post" action="{{.Action}}">
{{range $k, $v := .Fields}}<input type="hidden" name="{{$k}}" value="{{$v}}"/>
{{end}}</form>
</body>
</html>`))

type formPostData struct {
	Action string
	Fields map[string]string
}

// RenderAuthorizationResponse writes resp to redirectURI using mode
// (query, fragment, or form_post), per spec.md §4.10.
func RenderAuthorizationResponse(w http.ResponseWriter, r *http.Request, redirectURI, mode string, resp *oidc.ProtocolMessage) error {
	switch mode {
	case oidc.ResponseModeFormPost:
		return renderFormPost(w, redirectURI, resp)
	case oidc.ResponseModeFragment:
		return renderRedirect(w, r, redirectURI, "#", resp)
	default:
		return renderRedirect(w, r, redirectURI, "?", resp)
	}
}

func renderRedirect(w http.ResponseWriter, r *http.Request, redirectURI, sep string, resp *oidc.ProtocolMessage) error {
	values := url.Values{}
	for _, k := range resp.Keys() {
		values.Set(k, resp.Get(k))
	}
	http.Redirect(w, r, redirectURI+sep+values.Encode(), http.StatusFound)
	return nil
}

func renderFormPost(w http.ResponseWriter, action string, resp *oidc.ProtocolMessage) error {
	fields := make(map[string]string, resp.Len())
	for _, k := range resp.Keys() {
		fields[k] = resp.Get(k)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return formPostTemplate.Execute(w, formPostData{Action: action, Fields: fields})
}

// WriteJSON writes v as a JSON body with the no-cache headers spec.md
// §4.10 requires on every token/introspection/userinfo response.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "-1")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
