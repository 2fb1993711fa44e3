package application

import (
	"context"
	"sync"
	"time"

	"github.com/ericfisherdev/edgerandom/internal/domain/model"
)

// defaultExpirySkew is subtracted from a token's expiry so a cached token is
// replaced before the runtime starts rejecting it.
const defaultExpirySkew = 30 * time.Second

// TokenSource issues fresh access tokens. *Authenticator satisfies it.
type TokenSource interface {
	Authenticate(ctx context.Context) (model.AccessToken, error)
}

// TokenProvider hands out access tokens for calls made after bootstrap,
// applying an explicit cache policy. It holds a mutex-protected reference to
// the current token so concurrent callers never observe a partial update.
type TokenProvider struct {
	mu      sync.Mutex
	source  TokenSource
	policy  model.TokenCachePolicy
	skew    time.Duration
	now     func() time.Time
	current model.AccessToken
}

// NewTokenProvider creates a TokenProvider with the given policy. An unknown
// policy falls back to model.TokenRefetchEveryCall, which never serves a
// token past its validity window.
func NewTokenProvider(source TokenSource, policy model.TokenCachePolicy) *TokenProvider {
	if !policy.Valid() {
		policy = model.TokenRefetchEveryCall
	}
	return &TokenProvider{
		source: source,
		policy: policy,
		skew:   defaultExpirySkew,
		now:    time.Now,
	}
}

// Policy returns the active cache policy.
func (p *TokenProvider) Policy() model.TokenCachePolicy {
	return p.policy
}

// Seed stores the token produced during bootstrap.
func (p *TokenProvider) Seed(token model.AccessToken) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = token
}

// Current returns the most recently issued token without refreshing it.
func (p *TokenProvider) Current() model.AccessToken {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Token returns a token valid at the time of the call. Under
// model.TokenRefetchEveryCall a new token is always requested; under
// model.TokenCacheUntilExpiry the current token is reused until it is within
// the expiry skew.
func (p *TokenProvider) Token(ctx context.Context) (model.AccessToken, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.policy == model.TokenCacheUntilExpiry && !p.current.IsZero() && !p.current.Expired(p.now(), p.skew) {
		return p.current, nil
	}

	token, err := p.source.Authenticate(ctx)
	if err != nil {
		return model.AccessToken{}, err
	}
	p.current = token
	return token, nil
}
