package tenant

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveSubdomain(t *testing.T) {
	const internal = ".internal.mandanten.app"

	tests := []struct {
		name    string
		host    string
		wantSub string
		wantOK  bool
	}{
		{"tenant host", "acme.mandanten.app", "acme", true},
		{"tenant host with port", "acme.mandanten.app:8080", "acme", true},
		{"uppercase host", "ACME.Mandanten.App", "acme", true},
		{"hyphenated subdomain", "north-wind.mandanten.app", "north-wind", true},
		{"digit subdomain", "42.mandanten.app", "42", true},
		{"single char subdomain", "a.mandanten.app", "a", true},
		{"deep subdomain takes first label", "acme.eu.mandanten.app", "acme", true},

		{"localhost", "localhost", DemoTenantID, true},
		{"localhost with port", "localhost:3000", DemoTenantID, true},
		{"sub localhost", "app.localhost", DemoTenantID, true},
		{"loopback v4", "127.0.0.1", DemoTenantID, true},
		{"loopback v4 with port", "127.0.0.1:8080", DemoTenantID, true},
		{"loopback v6", "::1", DemoTenantID, true},
		{"internal hosting host", "preview.internal.mandanten.app", DemoTenantID, true},

		// A loopback-prefixed public host is never local: it resolves to its
		// first label and fails the registry lookup instead of reaching demo.
		{"loopback-prefixed host is not demo", "127.0.0.1.evil.com", "127", true},

		{"empty host", "", "", false},
		{"bare domain", "mandanten.app", "", false},
		{"leading hyphen", "-acme.mandanten.app", "", false},
		{"trailing hyphen", "acme-.mandanten.app", "", false},
		{"underscore", "ac_me.mandanten.app", "", false},
		{"script tag", "<script>.mandanten.app", "", false},
		{"sql metacharacters", "acme';drop.mandanten.app", "", false},
		{"null byte", "acme\x00.mandanten.app", "", false},
		{"path traversal", "../etc.mandanten.app", "", false},
		{"oversize label", strings.Repeat("a", 51) + ".mandanten.app", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, ok := ResolveSubdomain(tt.host, internal)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantSub, sub)
		})
	}
}

func TestValidSubdomain(t *testing.T) {
	// Boundary: 50 chars is the longest acceptable subdomain.
	assert.True(t, ValidSubdomain("a"+strings.Repeat("b", 48)+"c"))
	assert.False(t, ValidSubdomain(strings.Repeat("a", 51)))
	assert.False(t, ValidSubdomain(""))
	assert.False(t, ValidSubdomain("Acme"))
}
