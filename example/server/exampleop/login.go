package exampleop

import (
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
)

const queryAuthRequestID = "authRequestID"

var loginTmpl = template.Must(template.New("login").Parse(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Sign in</title></head>
<body>
	<form method="POST" action="/login/username">
		<input type="hidden" name="id" value="{{.ID}}">
		<div><label>Username: <input name="username"></label></div>
		<div><label>Password: <input type="password" name="password"></label></div>
		<p style="color:red">{{.Error}}</p>
		<button type="submit">Sign in</button>
	</form>
</body>
</html>`))

// login is the example host's own authentication UI: a single
// username/password form that, on success, redirects back to the
// authorization endpoint carrying unique_id and user_id so the
// middleware's SignIn continuation can resume (spec.md §4.2/§4.3).
type login struct {
	provider *Provider
	callback func(uniqueID string) string
}

func newLogin(provider *Provider, callback func(string) string) http.Handler {
	l := &login{provider: provider, callback: callback}
	r := chi.NewRouter()
	r.Get("/username", l.show)
	r.Post("/username", l.submit)
	return r
}

func (l *login) show(w http.ResponseWriter, r *http.Request) {
	renderLogin(w, r.URL.Query().Get(queryAuthRequestID), "")
}

func (l *login) submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "cannot parse form", http.StatusBadRequest)
		return
	}
	id := r.PostForm.Get("id")
	user, ok := l.provider.store.Authenticate(r.PostForm.Get("username"), r.PostForm.Get("password"))
	if !ok {
		renderLogin(w, id, "invalid username or password")
		return
	}
	http.Redirect(w, r, l.callback(id)+"&user_id="+user.Subject, http.StatusFound)
}

func renderLogin(w http.ResponseWriter, id, errMsg string) {
	data := struct{ ID, Error string }{ID: id, Error: errMsg}
	if err := loginTmpl.Execute(w, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
