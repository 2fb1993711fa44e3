package edge

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAuthorization(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": now.Add(-time.Minute).Unix(),
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	valid, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": now.Add(30 * time.Minute).Unix(),
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	tests := []struct {
		name      string
		body      string
		wantToken string
		wantTTL   time.Duration
	}{
		{name: "numeric expires_in", body: `{"token":{"access_token":"xyz","expires_in":600}}`, wantToken: "xyz", wantTTL: 10 * time.Minute},
		{name: "string expires_in", body: `{"token":{"access_token":"xyz","expires_in":"60"}}`, wantToken: "xyz", wantTTL: time.Minute},
		{name: "jwt exp fallback", body: `{"token":{"access_token":"` + valid + `"}}`, wantToken: valid, wantTTL: 30 * time.Minute},
		{name: "expired jwt", body: `{"token":{"access_token":"` + expired + `"}}`, wantToken: expired},
		{name: "no token object", body: `{}`},
		{name: "empty token", body: `{"token":{"access_token":""}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := parseAuthorization([]byte(tt.body), now)
			assert.Equal(t, tt.wantToken, auth.AccessToken)
			assert.Equal(t, tt.wantTTL, auth.ExpiresIn)
		})
	}
}
