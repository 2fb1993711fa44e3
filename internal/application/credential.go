package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/edgerandom/internal/domain/model"
	"github.com/ericfisherdev/edgerandom/internal/domain/port/driven"
)

// loadCredential reads and validates a single-line secret from source. Any
// read failure or malformed content is reported as sentinel. Context errors
// are returned unwrapped.
func loadCredential(ctx context.Context, source driven.SecretSource, sentinel error) (model.Credential, error) {
	raw, err := source.Load(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "", err
	}
	if err != nil {
		slog.Error("credential load failed", "source", source.Name(), "error", err)
		return "", model.Wrap(sentinel, err)
	}

	cred, ok := model.ParseCredential(raw)
	if !ok {
		slog.Error("credential malformed", "source", source.Name())
		return "", fmt.Errorf("%w: %s is empty or not a single line", sentinel, source.Name())
	}

	return cred, nil
}
