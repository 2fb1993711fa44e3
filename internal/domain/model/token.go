package model

import "time"

// Authorization is the raw result of exchanging a developer credential as
// reported by the runtime. AccessToken is empty when the response carried
// no token; ExpiresIn is zero when no lifetime was reported.
type Authorization struct {
	AccessToken string
	ExpiresIn   time.Duration
}

// AccessToken is a short-lived token authorizing deploy and lookup calls.
// A zero ExpiresAt means the runtime did not report an expiry.
type AccessToken struct {
	Value     string
	ExpiresAt time.Time
}

// Expired reports whether the token should no longer be used at now, given
// a safety skew subtracted from the expiry. Tokens with unknown expiry are
// never considered expired.
func (t AccessToken) Expired(now time.Time, skew time.Duration) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(t.ExpiresAt.Add(-skew))
}

// IsZero reports whether the token holds no value.
func (t AccessToken) IsZero() bool {
	return t.Value == ""
}
