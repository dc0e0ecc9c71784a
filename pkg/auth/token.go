// Package auth covers the two trust boundaries of the server: signed
// identity tokens presented by chat clients, and API keys presented by
// collaborating services on the HTTP surface.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"crewchat/pkg/config"
)

// ErrBadToken is returned for tokens that are malformed or whose
// signature verifies under none of the configured signing keys.
var ErrBadToken = errors.New("invalid identity token")

// SignIdentity produces an identity token for userID under key. The
// token is "<userID>.<hex hmac-sha256>".
func SignIdentity(userID, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(userID))
	return userID + "." + hex.EncodeToString(mac.Sum(nil))
}

// VerifyIdentity checks token against every configured signing key and
// returns the user ID it asserts. Multiple keys allow rotation.
func VerifyIdentity(token string) (string, error) {
	i := strings.LastIndex(token, ".")
	if i <= 0 || i == len(token)-1 {
		return "", ErrBadToken
	}
	userID, sig := token[:i], token[i+1:]
	want, err := hex.DecodeString(sig)
	if err != nil {
		return "", ErrBadToken
	}
	for key := range config.GetSigningKeys() {
		mac := hmac.New(sha256.New, []byte(key))
		mac.Write([]byte(userID))
		if hmac.Equal(mac.Sum(nil), want) {
			return userID, nil
		}
	}
	return "", ErrBadToken
}

// BearerToken extracts a bearer credential from an Authorization header
// value. Returns "" when the header is absent or not a bearer scheme.
func BearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
