package localfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ericfisherdev/edgerandom/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ArtifactLocator = (*ArtifactDir)(nil)

// ArtifactDir locates service image archives inside one directory.
type ArtifactDir struct {
	dir string
}

// NewArtifactDir creates an ArtifactDir rooted at dir.
func NewArtifactDir(dir string) *ArtifactDir {
	return &ArtifactDir{dir: dir}
}

// Name identifies the locator in logs.
func (a *ArtifactDir) Name() string {
	return "dir:" + a.dir
}

// Locate returns the absolute path of artifactName within the directory.
// Names that would escape the directory are rejected.
func (a *ArtifactDir) Locate(ctx context.Context, artifactName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if a.dir == "" {
		return "", driven.ErrArtifactMissing
	}
	if artifactName == "" || artifactName != filepath.Base(artifactName) || strings.HasPrefix(artifactName, ".") {
		return "", fmt.Errorf("invalid artifact name %q", artifactName)
	}

	path, err := filepath.Abs(filepath.Join(a.dir, artifactName))
	if err != nil {
		return "", fmt.Errorf("resolve artifact path: %w", err)
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", driven.ErrArtifactMissing, path)
	}
	if err != nil {
		return "", fmt.Errorf("stat artifact %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("artifact %s is a directory", path)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("%w: %s is empty", driven.ErrArtifactMissing, path)
	}

	return path, nil
}
