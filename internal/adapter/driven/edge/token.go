package edge

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"

	"github.com/ericfisherdev/edgerandom/internal/domain/model"
)

// parseAuthorization reads token.access_token and token.expires_in from a
// token exchange response. When expires_in is absent the lifetime is taken
// from the access token's exp claim, if it is a JWT. The signature is not
// verified; the runtime that issued the token is the only consumer of it.
func parseAuthorization(body []byte, now time.Time) model.Authorization {
	token := gjson.GetBytes(body, "token")
	auth := model.Authorization{
		AccessToken: token.Get("access_token").String(),
	}
	if auth.AccessToken == "" {
		return auth
	}

	if secs := token.Get("expires_in").Int(); secs > 0 {
		auth.ExpiresIn = time.Duration(secs) * time.Second
		return auth
	}

	auth.ExpiresIn = jwtLifetime(auth.AccessToken, now)
	return auth
}

func jwtLifetime(raw string, now time.Time) time.Duration {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return 0
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0
	}
	if d := exp.Sub(now); d > 0 {
		return d
	}
	return 0
}
