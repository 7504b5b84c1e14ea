// Package auth validates hub connection keys. Keys are opaque bearer
// tokens with no expiry; a requester either holds a valid key or it does
// not.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// DemoKey is the well-known connection key accepted by demo deployments.
const DemoKey = "demo-key-123"

// User identifies the holder of a connection key.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Keyring holds the set of connection keys a hub accepts.
type Keyring struct {
	keys     map[string]struct{}
	demoMode bool
}

// NewKeyring builds a keyring from a comma-separated key list. When demoMode
// is set the well-known demo key is accepted as well.
func NewKeyring(commaSeparated string, demoMode bool) *Keyring {
	keys := make(map[string]struct{})
	for _, k := range strings.Split(commaSeparated, ",") {
		if v := strings.TrimSpace(k); v != "" {
			keys[v] = struct{}{}
		}
	}
	return &Keyring{keys: keys, demoMode: demoMode}
}

// Validate checks a connection key and returns the user it identifies.
func (k *Keyring) Validate(key string) (*User, bool) {
	if k.demoMode && key == DemoKey {
		return &User{ID: "demo-user", Name: "Demo User"}, true
	}
	if _, ok := k.keys[key]; !ok {
		return nil, false
	}
	sum := sha256.Sum256([]byte(key))
	return &User{
		ID:   "user-" + hex.EncodeToString(sum[:4]),
		Name: "Hub User",
	}, true
}

// FromRequest extracts the bearer connection key from an HTTP request.
// Returns "" when no Authorization header is present.
func FromRequest(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
