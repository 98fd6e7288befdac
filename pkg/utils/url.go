package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
)

// HashURL returns the hex SHA256 of a URL, used as a fixed-length Redis key.
func HashURL(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

// ToAbsoluteURL resolves ref against base.
func ToAbsoluteURL(base *url.URL, ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(u).String(), nil
}

// IsHTTP reports whether rawURL is an absolute http(s) URL with a host.
func IsHTTP(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
