package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/ericfisherdev/edgerandom/internal/domain/model"
	"github.com/ericfisherdev/edgerandom/internal/domain/port/driven"
)

// Authenticator exchanges the locally stored developer credential for a
// short-lived access token. It performs no retries; the orchestrator owns
// that decision.
type Authenticator struct {
	client     driven.EdgeClient
	credential driven.SecretSource
	now        func() time.Time
}

// NewAuthenticator creates an Authenticator reading the developer ID token
// from the given source.
func NewAuthenticator(client driven.EdgeClient, credential driven.SecretSource) *Authenticator {
	return &Authenticator{
		client:     client,
		credential: credential,
		now:        time.Now,
	}
}

// Authenticate reads the credential and exchanges it for an access token.
// The exchange is never attempted when the credential is missing or malformed.
func (a *Authenticator) Authenticate(ctx context.Context) (model.AccessToken, error) {
	cred, err := loadCredential(ctx, a.credential, model.ErrMissingCredential)
	if err != nil {
		return model.AccessToken{}, err
	}

	auth, err := a.client.ExchangeToken(ctx, cred.Reveal())
	if err != nil {
		return model.AccessToken{}, model.Wrap(model.ErrExchangeFailed, err)
	}
	if auth.AccessToken == "" {
		return model.AccessToken{}, model.ErrNoTokenInResponse
	}

	token := model.AccessToken{Value: auth.AccessToken}
	if auth.ExpiresIn > 0 {
		token.ExpiresAt = a.now().Add(auth.ExpiresIn)
	}

	slog.Info("access token issued", "expires_at", token.ExpiresAt)
	return token, nil
}
