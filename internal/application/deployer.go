package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/edgerandom/internal/domain/model"
	"github.com/ericfisherdev/edgerandom/internal/domain/port/driven"
)

// Deployer obtains a handle to the configured service, either by deploying
// its packaged artifact or by discovering a running instance by name.
type Deployer struct {
	client     driven.EdgeClient
	locators   []driven.ArtifactLocator
	descriptor model.ServiceDescriptor
	policy     model.DeployPolicy
}

// NewDeployer creates a Deployer. Locators are consulted in order when
// deploying. An unknown policy falls back to model.DeployPolicyDeploy.
func NewDeployer(
	client driven.EdgeClient,
	locators []driven.ArtifactLocator,
	descriptor model.ServiceDescriptor,
	policy model.DeployPolicy,
) *Deployer {
	if !policy.Valid() {
		policy = model.DeployPolicyDeploy
	}
	return &Deployer{
		client:     client,
		locators:   locators,
		descriptor: descriptor,
		policy:     policy,
	}
}

// Descriptor returns the descriptor this Deployer provisions.
func (d *Deployer) Descriptor() model.ServiceDescriptor {
	return d.descriptor
}

// Policy returns the configured deploy policy.
func (d *Deployer) Policy() model.DeployPolicy {
	return d.policy
}

// Resolve obtains the service handle using the configured policy.
func (d *Deployer) Resolve(ctx context.Context, token model.AccessToken) (model.ServiceHandle, error) {
	if d.policy == model.DeployPolicyDiscover {
		return d.Discover(ctx, token)
	}
	return d.Deploy(ctx, token)
}

// Deploy provisions the service unconditionally. The runtime is never called
// when the artifact cannot be located.
func (d *Deployer) Deploy(ctx context.Context, token model.AccessToken) (model.ServiceHandle, error) {
	path, err := d.locateArtifact(ctx)
	if err != nil {
		return model.ServiceHandle{}, err
	}

	handle, err := d.client.ProvisionService(ctx, token.Value, d.descriptor, path)
	if err != nil {
		return model.ServiceHandle{}, model.Wrap(model.ErrDeployFailed, err)
	}

	handle = d.withDefaults(handle)
	slog.Info("service deployed",
		"container", handle.ContainerName,
		"image", handle.Image,
		"base_path", handle.BasePath,
		"artifact", path,
	)
	return handle, nil
}

// Discover looks up an already running instance by the descriptor's
// container name.
func (d *Deployer) Discover(ctx context.Context, token model.AccessToken) (model.ServiceHandle, error) {
	handle, err := d.client.LookupService(ctx, token.Value, d.descriptor.ContainerName)
	if err != nil {
		return model.ServiceHandle{}, model.Wrap(model.ErrDeployFailed, err)
	}

	handle = d.withDefaults(handle)
	slog.Info("service discovered", "container", handle.ContainerName, "base_path", handle.BasePath)
	return handle, nil
}

// locateArtifact asks each locator in turn for the descriptor's artifact.
func (d *Deployer) locateArtifact(ctx context.Context) (string, error) {
	name := d.descriptor.ArtifactName
	if name == "" {
		return "", fmt.Errorf("%w: descriptor has no artifact name", model.ErrArtifactNotFound)
	}

	var lastErr error
	for _, locator := range d.locators {
		path, err := locator.Locate(ctx, name)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, driven.ErrArtifactMissing) {
			slog.Warn("artifact locator failed", "locator", locator.Name(), "artifact", name, "error", err)
		}
		lastErr = err
	}

	if lastErr == nil {
		return "", fmt.Errorf("%w: no locators configured for %s", model.ErrArtifactNotFound, name)
	}
	return "", fmt.Errorf("%w: %s: %w", model.ErrArtifactNotFound, name, lastErr)
}

// withDefaults fills fields the runtime omitted from the descriptor.
func (d *Deployer) withDefaults(handle model.ServiceHandle) model.ServiceHandle {
	if handle.ContainerName == "" {
		handle.ContainerName = d.descriptor.ContainerName
	}
	if handle.Image == "" {
		handle.Image = d.descriptor.ImageName
	}
	if handle.BasePath == "" {
		handle.BasePath = d.descriptor.BasePath
	}
	return handle
}
