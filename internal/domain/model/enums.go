package model

// State is the orchestrator's position in the bootstrap-and-fetch lifecycle.
type State string

const (
	StateIdle           State = "idle"
	StateEngineStarting State = "engine_starting"
	StateAuthenticating State = "authenticating"
	StateDeploying      State = "deploying"
	StateReady          State = "ready"
	StateFetching       State = "fetching"
	StateFailed         State = "failed"
)

// Stage identifies one step of the pipeline.
type Stage string

const (
	StageStartup      Stage = "startup"
	StageAuthenticate Stage = "authenticate"
	StageDeploy       Stage = "deploy"
	StageFetch        Stage = "fetch"
)

// Outcome records how a stage attempt ended.
type Outcome string

const (
	OutcomeStarted   Outcome = "started"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// TokenCachePolicy selects whether an access token is reused until it
// expires or re-derived on every call that needs one.
type TokenCachePolicy string

const (
	TokenCacheUntilExpiry TokenCachePolicy = "cache_until_expiry"
	TokenRefetchEveryCall TokenCachePolicy = "refetch_every_call"
)

// Valid reports whether p is a known policy.
func (p TokenCachePolicy) Valid() bool {
	return p == TokenCacheUntilExpiry || p == TokenRefetchEveryCall
}

// DeployPolicy selects how the service handle is obtained during bootstrap.
type DeployPolicy string

const (
	DeployPolicyDeploy   DeployPolicy = "deploy"   // Provision unconditionally.
	DeployPolicyDiscover DeployPolicy = "discover" // Look up an existing instance by container name.
)

// Valid reports whether p is a known policy.
func (p DeployPolicy) Valid() bool {
	return p == DeployPolicyDeploy || p == DeployPolicyDiscover
}
