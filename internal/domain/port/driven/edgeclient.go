package driven

import (
	"context"

	"github.com/ericfisherdev/edgerandom/internal/domain/model"
)

// EdgeClient defines the driven port for the local edge runtime. The runtime
// is a black box: startup, token issuance, and container orchestration all
// happen behind these calls.
type EdgeClient interface {
	// StartEnvironment brings the runtime up with the given license. Calling
	// it on an already running runtime is assumed to be safe.
	StartEnvironment(ctx context.Context, license string) error

	// ExchangeToken trades a developer ID token for an access token. A
	// successful response without a token yields an Authorization with an
	// empty AccessToken rather than an error.
	ExchangeToken(ctx context.Context, developerIDToken string) (model.Authorization, error)

	// ProvisionService deploys the image archive at artifactPath as described
	// by descriptor and returns the handle of the running instance.
	ProvisionService(ctx context.Context, accessToken string, descriptor model.ServiceDescriptor, artifactPath string) (model.ServiceHandle, error)

	// LookupService finds an already running instance by container name.
	// Returns model.ErrServiceNotFound when no such instance exists.
	LookupService(ctx context.Context, accessToken string, containerName string) (model.ServiceHandle, error)
}
