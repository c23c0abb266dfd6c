package op

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEndpoint_AddsLeadingSlash(t *testing.T) {
	assert.Equal(t, "/connect/token", NewEndpoint("connect/token").Relative())
	assert.Equal(t, "/connect/token", NewEndpoint("/connect/token").Relative())
	assert.Equal(t, "", NewEndpoint("").Relative())
}

func TestEndpoint_Enabled(t *testing.T) {
	assert.True(t, NewEndpoint("/x").Enabled())
	assert.False(t, NewEndpoint("").Enabled())
}

func TestEndpoint_Absolute(t *testing.T) {
	e := NewEndpoint("/connect/token")
	assert.Equal(t, "https://issuer.example/connect/token", e.Absolute("https://issuer.example"))
	assert.Equal(t, "https://issuer.example/connect/token", e.Absolute("https://issuer.example/"))
	assert.Equal(t, "", NewEndpoint("").Absolute("https://issuer.example"))
}

func TestEndpoint_Matches(t *testing.T) {
	e := NewEndpoint("/connect/token")
	assert.True(t, e.Matches("/connect/token"))
	assert.False(t, e.Matches("/connect/authorize"))
	assert.False(t, NewEndpoint("").Matches(""))
}
