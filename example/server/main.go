package main

import (
	"log"
	"net/http"

	"github.com/connectid/oidcop/example/server/exampleop"
)

func main() {
	const port = "9998"
	issuer := "http://localhost:" + port

	router, err := exampleop.SetupServer(issuer)
	if err != nil {
		log.Fatal(err)
	}

	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}
	log.Printf("listening on %s", issuer)
	if err := server.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
