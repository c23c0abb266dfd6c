package exampleop

import (
	"crypto/rand"
	"crypto/rsa"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/connectid/oidcop/example/server/storage"
	"github.com/connectid/oidcop/pkg/op"
)

// SetupServer wires the op middleware, a freshly generated RSA signing
// key, an in-memory Storage-backed Provider, and the example login UI
// onto one chi.Router, mirroring the teacher's exampleop.SetupServer
// composition of mux.Router, op.NewOpenIDProvider, and the login UI.
func SetupServer(issuer string) (http.Handler, error) {
	store := storage.NewStore()

	signingKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	rng := op.CryptoRNG{}
	var dataFormatKey [32]byte
	if err := rng.FillBytes(dataFormatKey[:]); err != nil {
		return nil, err
	}

	opts, err := op.New(issuer,
		op.WithAllowInsecureHTTP(),
		op.WithSigningCredentials(op.NewRSASigningCredentials("demo-key-1", "RS256", signingKey)),
		op.WithDataFormat(op.NewDataFormat(dataFormatKey, rng)),
		op.WithCache(op.NewMemoryCache(op.SystemClock{})),
	)
	if err != nil {
		return nil, err
	}

	authEndpointURL := issuer + opts.Endpoints.Authorization.Relative()
	provider := New(store)
	handler := op.NewHandler(opts, provider, slog.Default())

	router := chi.NewRouter()
	router.Mount("/login", newLogin(provider, func(uniqueID string) string {
		return authEndpointURL + "?unique_id=" + uniqueID
	}))
	router.Mount("/", handler.Mount(http.NotFoundHandler()))
	return router, nil
}
