package validation

import (
	"regexp"
	"strings"
)

// Email shape rules (deliberately permissive; deliverability is upstream's problem):
// - exactly one "@"
// - non-empty local part without whitespace
// - domain with at least one dot and no leading/trailing dot
//
// Examples valid: a@b.co, first.last+tag@sub.example.org
// Examples invalid: "", "a@b", "@x.com", "a b@c.com", "a@.com"
var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@.][^\s@]*\.[^\s@]+$`)

// ValidEmail returns true if the string has a plausible email shape.
func ValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 254 {
		return false
	}
	return emailRe.MatchString(s)
}

// Secret name rules (mirrors the managed-secret keyspace):
// - Lowercase only.
// - Start and end with [a-z0-9].
// - Middle chars may include [a-z0-9:_.-].
// - Length 1..64.
var secretNameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9:_\.-]{0,62}[a-z0-9])?$`)

// ValidSecretName returns true if the provided secret name matches the allowed pattern.
func ValidSecretName(name string) bool {
	return secretNameRe.MatchString(name)
}
