package model

import (
	"errors"
	"fmt"
)

// Startup errors.
var (
	ErrMissingLicense = errors.New("license not available")
	ErrEngineFailure  = errors.New("engine failed to start")
)

// Authentication errors.
var (
	ErrMissingCredential = errors.New("developer credential not available")
	ErrExchangeFailed    = errors.New("token exchange failed")
	ErrNoTokenInResponse = errors.New("token exchange returned no access token")
)

// Deployment errors.
var (
	ErrArtifactNotFound = errors.New("service artifact not found")
	ErrDeployFailed     = errors.New("service deployment failed")
	ErrServiceNotFound  = errors.New("service instance not found")
)

// Fetch errors.
var (
	ErrInvalidURL = errors.New("invalid endpoint url")
	ErrTransport  = errors.New("transport error")
	ErrDecode     = errors.New("response body is not an integer")
)

// Orchestration errors.
var (
	// ErrNotReady is returned for fetches requested before bootstrap reached Ready.
	ErrNotReady = errors.New("service not ready")
	// ErrBootstrapFailed is returned for fetches after bootstrap has failed.
	ErrBootstrapFailed = errors.New("bootstrap failed")
)

// Wrap joins a stage sentinel with its underlying cause so errors.Is matches
// both. A nil cause returns the sentinel itself.
func Wrap(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}

// StageError records which pipeline stage failed and why.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Permanent reports whether err can never succeed on retry because the
// local input it depends on is missing or malformed.
func Permanent(err error) bool {
	return errors.Is(err, ErrMissingLicense) ||
		errors.Is(err, ErrMissingCredential) ||
		errors.Is(err, ErrArtifactNotFound) ||
		errors.Is(err, ErrNoTokenInResponse)
}
