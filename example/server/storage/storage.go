// Package storage is the in-memory backing store for the example OP
// server: registered clients and users, guarded by a mutex since the HTTP
// handlers run concurrently.
package storage

import (
	"sync"

	"github.com/google/uuid"
)

// Client is a registered OAuth2/OIDC client.
type Client struct {
	ID           string
	Secret       string
	RedirectURIs []string
	Confidential bool
}

// User is a resource owner that can sign in through the example login UI
// or the password grant.
type User struct {
	Subject      string
	Username     string
	Password     string
	GivenName    string
	FamilyName   string
	Email        string
	PhoneNumber  string
	Birthdate    string
}

// Store holds the example server's clients and users.
type Store struct {
	mu      sync.RWMutex
	clients map[string]*Client
	users   map[string]*User // keyed by Username
}

// NewStore returns a Store pre-seeded with a native client, a confidential
// web client, and a single demo user, enough to drive every grant this
// middleware implements end to end.
func NewStore() *Store {
	s := &Store{
		clients: make(map[string]*Client),
		users:   make(map[string]*User),
	}
	s.clients["native"] = &Client{
		ID:           "native",
		RedirectURIs: []string{"http://localhost:9999/callback"},
		Confidential: false,
	}
	s.clients["web"] = &Client{
		ID:           "web",
		Secret:       "web-secret",
		RedirectURIs: []string{"http://localhost:9999/callback"},
		Confidential: true,
	}
	s.users["alice"] = &User{
		Subject:     uuid.NewString(),
		Username:    "alice",
		Password:    "password",
		GivenName:   "Alice",
		FamilyName:  "Example",
		Email:       "alice@example.com",
		PhoneNumber: "+1-555-0100",
		Birthdate:   "1990-01-01",
	}
	return s
}

// Client looks up a registered client by id.
func (s *Store) Client(id string) (*Client, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[id]
	return c, ok
}

// User looks up a registered user by subject identifier.
func (s *Store) User(subject string) (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Subject == subject {
			return u, true
		}
	}
	return nil, false
}

// Authenticate verifies a username/password pair and returns the matching
// user.
func (s *Store) Authenticate(username, password string) (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok || u.Password != password {
		return nil, false
	}
	return u, true
}
