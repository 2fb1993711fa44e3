package driven

import (
	"context"
	"errors"
)

// ErrArtifactMissing is returned by ArtifactLocator implementations that do
// not hold the requested artifact.
var ErrArtifactMissing = errors.New("artifact missing")

// ArtifactLocator resolves a packaged service artifact name to a local file
// path readable by the runtime client.
type ArtifactLocator interface {
	Name() string
	// Locate returns the path of the artifact, or ErrArtifactMissing.
	Locate(ctx context.Context, artifactName string) (string, error)
}
