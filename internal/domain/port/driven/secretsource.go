package driven

import (
	"context"
	"errors"
)

// ErrSecretNotFound is returned by SecretSource implementations when the
// backing storage holds no value.
var ErrSecretNotFound = errors.New("secret not found")

// SecretSource defines the driven port for reading a single line of locally
// stored secret text such as a license or developer ID token. Implementations
// return the raw content; trimming and validation happen in the application
// layer.
type SecretSource interface {
	// Name identifies the source in logs without revealing its content.
	Name() string
	// Load reads the raw secret. Returns ErrSecretNotFound if absent.
	Load(ctx context.Context) (string, error)
}
