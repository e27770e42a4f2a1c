package domain

import (
	"errors"
	"strings"
)

// ErrBadCredential is returned when a synced token fails the shape check.
var ErrBadCredential = errors.New("credential must be three dot-separated segments")

// ValidCredential reports whether token has the shape of a bearer token:
// three non-empty dot-separated segments. This is a format sanity check,
// not cryptographic validation; the collector is the authority.
func ValidCredential(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}
