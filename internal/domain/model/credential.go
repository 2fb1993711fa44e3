package model

import "strings"

// Credential is a single line of secret text read from local storage, such
// as the runtime license or the developer ID token. It is never persisted.
type Credential string

// ParseCredential strips the trailing line terminator from raw file content
// and validates that what remains is a single non-empty line.
func ParseCredential(raw string) (Credential, bool) {
	value := strings.TrimRight(raw, "\r\n")
	if strings.TrimSpace(value) == "" || strings.ContainsAny(value, "\r\n") {
		return "", false
	}
	return Credential(value), true
}

// String returns a redacted form so credentials never leak into logs.
func (c Credential) String() string {
	if c == "" {
		return ""
	}
	return "[redacted]"
}

// Reveal returns the raw credential text for handing to the runtime.
func (c Credential) Reveal() string {
	return string(c)
}
