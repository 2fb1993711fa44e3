// Package localfile reads secrets and service artifacts from the local
// filesystem.
package localfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/ericfisherdev/edgerandom/internal/domain/port/driven"
)

// maxSecretBytes caps how much of a secret file is read. License and
// developer ID token files are a single line.
const maxSecretBytes = 64 << 10

// Compile-time interface satisfaction check.
var _ driven.SecretSource = (*SecretFile)(nil)

// SecretFile is a driven.SecretSource backed by one file.
type SecretFile struct {
	name string
	path string
}

// NewSecretFile creates a SecretFile. name labels the secret in logs.
func NewSecretFile(name, path string) *SecretFile {
	return &SecretFile{name: name, path: path}
}

// Name returns the label and path, never the content.
func (s *SecretFile) Name() string {
	return fmt.Sprintf("%s (%s)", s.name, s.path)
}

// Load returns the raw file content. A missing file or empty path yields
// driven.ErrSecretNotFound.
func (s *SecretFile) Load(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.path == "" {
		return "", fmt.Errorf("%w: %s path not configured", driven.ErrSecretNotFound, s.name)
	}

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", driven.ErrSecretNotFound, s.path)
	}
	if err != nil {
		return "", fmt.Errorf("open %s: %w", s.name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxSecretBytes+1))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", s.name, err)
	}
	if len(data) > maxSecretBytes {
		return "", fmt.Errorf("read %s: file exceeds %d bytes", s.name, maxSecretBytes)
	}
	return string(data), nil
}
