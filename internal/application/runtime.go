package application

import (
	"context"
	"log/slog"

	"github.com/ericfisherdev/edgerandom/internal/domain/model"
	"github.com/ericfisherdev/edgerandom/internal/domain/port/driven"
)

// RuntimeInitializer brings the edge runtime up before any other stage runs.
type RuntimeInitializer struct {
	client  driven.EdgeClient
	license driven.SecretSource
}

// NewRuntimeInitializer creates a RuntimeInitializer reading the license from
// the given source.
func NewRuntimeInitializer(client driven.EdgeClient, license driven.SecretSource) *RuntimeInitializer {
	return &RuntimeInitializer{
		client:  client,
		license: license,
	}
}

// Start loads the license and starts the runtime. A missing or malformed
// license returns model.ErrMissingLicense without contacting the runtime.
func (r *RuntimeInitializer) Start(ctx context.Context) error {
	license, err := loadCredential(ctx, r.license, model.ErrMissingLicense)
	if err != nil {
		return err
	}

	if err := r.client.StartEnvironment(ctx, license.Reveal()); err != nil {
		return model.Wrap(model.ErrEngineFailure, err)
	}

	slog.Info("runtime started", "license_source", r.license.Name())
	return nil
}
