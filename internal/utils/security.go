package contextutils

import (
	"net/url"
	"strings"
)

// MaskSecret masks a credential for logging, keeping only the first and last 4 characters.
func MaskSecret(secret string) string {
	if secret == "" {
		return "[EMPTY]"
	}

	if len(secret) <= 8 {
		return strings.Repeat("*", len(secret))
	}

	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}

// MaskConnectionURL hides the userinfo of a database or redis URL.
func MaskConnectionURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.UserPassword("***", "***")
	return u.String()
}
