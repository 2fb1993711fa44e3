// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/ericfisherdev/edgerandom/internal/domain/model"
	"github.com/ericfisherdev/edgerandom/internal/domain/port/driven"
)

// StageObserver receives the duration and result of every stage attempt.
type StageObserver interface {
	ObserveStage(stage model.Stage, err error, duration time.Duration)
}

// RetryPolicy bounds automatic retries of failed bootstrap stages. The zero
// value performs no retries.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		exp.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		exp.MaxInterval = p.MaxInterval
	}
	exp.MaxElapsedTime = 0
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, p.MaxRetries), ctx)
}

// Status is a point-in-time snapshot of the orchestrator.
type Status struct {
	SessionID      string
	State          model.State
	FailedStage    model.Stage
	Cause          error
	Handle         model.ServiceHandle
	LastValue      *model.RandomValue
	LastFetchError error
	ReadyAt        time.Time
	Fetches        int
}

// Orchestrator sequences runtime startup, authentication, and deployment
// exactly once, then serves fetches against the resulting service handle.
// Fetches are rejected until bootstrap reaches model.StateReady and are
// serialized so at most one is in flight.
type Orchestrator struct {
	runtime  *RuntimeInitializer
	auth     *Authenticator
	tokens   *TokenProvider
	deployer *Deployer
	fetcher  *ValueFetcher
	journal  driven.EventJournal
	observer StageObserver
	retry    RetryPolicy
	now      func() time.Time

	sessionID string

	once         sync.Once
	done         chan struct{}
	bootstrapErr error

	fetchMu sync.Mutex

	mu             sync.RWMutex
	state          model.State
	failedStage    model.Stage
	cause          error
	handle         model.ServiceHandle
	lastValue      *model.RandomValue
	lastFetchError error
	readyAt        time.Time
	fetches        int
}

// NewOrchestrator creates an Orchestrator in model.StateIdle. journal and
// observer may be nil.
func NewOrchestrator(
	runtime *RuntimeInitializer,
	auth *Authenticator,
	tokens *TokenProvider,
	deployer *Deployer,
	fetcher *ValueFetcher,
	journal driven.EventJournal,
	observer StageObserver,
	retry RetryPolicy,
) *Orchestrator {
	return &Orchestrator{
		runtime:   runtime,
		auth:      auth,
		tokens:    tokens,
		deployer:  deployer,
		fetcher:   fetcher,
		journal:   journal,
		observer:  observer,
		retry:     retry,
		now:       time.Now,
		sessionID: uuid.NewString(),
		done:      make(chan struct{}),
		state:     model.StateIdle,
	}
}

// SessionID identifies this application session in the journal.
func (o *Orchestrator) SessionID() string {
	return o.sessionID
}

// Done is closed once bootstrap has finished, successfully or not.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

// Start runs Bootstrap and logs its outcome. It is intended to be launched
// in its own goroutine from the composition root.
func (o *Orchestrator) Start(ctx context.Context) {
	if err := o.Bootstrap(ctx); err != nil {
		slog.Error("bootstrap failed", "session_id", o.sessionID, "error", err)
	}
}

// Bootstrap runs the startup, authenticate, and deploy stages in strict
// order. Only the first call does any work; later and concurrent calls
// return the first call's result.
func (o *Orchestrator) Bootstrap(ctx context.Context) error {
	o.once.Do(func() {
		o.bootstrapErr = o.runBootstrap(ctx)
		close(o.done)
	})
	return o.bootstrapErr
}

func (o *Orchestrator) runBootstrap(ctx context.Context) error {
	start := o.now()
	slog.Info("bootstrap starting",
		"session_id", o.sessionID,
		"deploy_policy", string(o.deployer.Policy()),
		"token_policy", string(o.tokens.Policy()),
	)

	if err := o.runStage(ctx, model.StageStartup, model.StateEngineStarting, o.runtime.Start); err != nil {
		return err
	}

	var token model.AccessToken
	err := o.runStage(ctx, model.StageAuthenticate, model.StateAuthenticating, func(ctx context.Context) error {
		issued, err := o.auth.Authenticate(ctx)
		if err != nil {
			return err
		}
		token = issued
		return nil
	})
	if err != nil {
		return err
	}
	o.tokens.Seed(token)

	var handle model.ServiceHandle
	err = o.runStage(ctx, model.StageDeploy, model.StateDeploying, func(ctx context.Context) error {
		resolved, err := o.deployer.Resolve(ctx, token)
		if err != nil {
			return err
		}
		handle = resolved
		return nil
	})
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.handle = handle
	o.state = model.StateReady
	o.readyAt = o.now()
	o.mu.Unlock()

	o.record(ctx, model.BootstrapEvent{
		Stage:    model.StageDeploy,
		State:    model.StateReady,
		Outcome:  model.OutcomeSucceeded,
		Duration: o.now().Sub(start),
	})

	slog.Info("bootstrap complete",
		"session_id", o.sessionID,
		"base_path", handle.BasePath,
		"duration", o.now().Sub(start).Round(time.Millisecond),
	)
	return nil
}

// runStage enters state and runs fn, retrying transient failures per the
// retry policy. On final failure the orchestrator moves to model.StateFailed.
func (o *Orchestrator) runStage(ctx context.Context, stage model.Stage, state model.State, fn func(context.Context) error) error {
	o.setState(state)

	attempt := 0
	var lastErr error
	operation := func() error {
		attempt++
		o.record(ctx, model.BootstrapEvent{Stage: stage, State: state, Outcome: model.OutcomeStarted, Attempt: attempt})

		started := o.now()
		err := fn(ctx)
		elapsed := o.now().Sub(started)
		o.observe(stage, err, elapsed)

		if err != nil {
			lastErr = err
			o.record(ctx, model.BootstrapEvent{
				Stage:    stage,
				State:    state,
				Outcome:  model.OutcomeFailed,
				Attempt:  attempt,
				Error:    err.Error(),
				Duration: elapsed,
			})
			slog.Warn("stage attempt failed", "stage", string(stage), "attempt", attempt, "error", err)
			if model.Permanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}

		o.record(ctx, model.BootstrapEvent{
			Stage:    stage,
			State:    state,
			Outcome:  model.OutcomeSucceeded,
			Attempt:  attempt,
			Duration: elapsed,
		})
		slog.Info("stage complete", "stage", string(stage), "attempt", attempt, "duration", elapsed.Round(time.Millisecond))
		return nil
	}

	if err := backoff.Retry(operation, o.retry.backOff(ctx)); err != nil {
		err = stageCause(ctx, err, lastErr)
		stageErr := &model.StageError{Stage: stage, Err: err}
		o.mu.Lock()
		o.state = model.StateFailed
		o.failedStage = stage
		o.cause = err
		o.mu.Unlock()
		o.record(ctx, model.BootstrapEvent{Stage: stage, State: model.StateFailed, Outcome: model.OutcomeFailed, Attempt: attempt, Error: err.Error()})
		return stageErr
	}
	return nil
}

// stageCause keeps the stage's own error when backoff reports only that ctx
// ended, so the failure still matches the stage sentinel.
func stageCause(ctx context.Context, err, lastErr error) error {
	ctxErr := ctx.Err()
	if ctxErr == nil || lastErr == nil || !errors.Is(err, ctxErr) {
		return err
	}
	if errors.Is(lastErr, ctxErr) {
		return lastErr
	}
	return model.Wrap(lastErr, ctxErr)
}

// Fetch retrieves one value from the deployed service. It returns
// model.ErrNotReady before bootstrap completes and model.ErrBootstrapFailed
// after bootstrap has failed. A failed fetch leaves the session Ready.
func (o *Orchestrator) Fetch(ctx context.Context) (model.RandomValue, error) {
	o.mu.RLock()
	state, cause := o.state, o.cause
	o.mu.RUnlock()

	switch state {
	case model.StateReady, model.StateFetching:
	case model.StateFailed:
		return model.RandomValue{}, model.Wrap(model.ErrBootstrapFailed, cause)
	default:
		return model.RandomValue{}, model.ErrNotReady
	}

	o.fetchMu.Lock()
	defer o.fetchMu.Unlock()

	o.mu.Lock()
	o.state = model.StateFetching
	handle := o.handle
	o.mu.Unlock()

	started := o.now()
	value, err := o.fetchOnce(ctx, handle)
	elapsed := o.now().Sub(started)
	o.observe(model.StageFetch, err, elapsed)

	o.mu.Lock()
	o.state = model.StateReady
	if err != nil {
		o.lastFetchError = err
	} else {
		o.lastValue = &value
		o.lastFetchError = nil
		o.fetches++
	}
	o.mu.Unlock()

	event := model.BootstrapEvent{
		Stage:    model.StageFetch,
		State:    model.StateReady,
		Outcome:  model.OutcomeSucceeded,
		Attempt:  1,
		Duration: elapsed,
	}
	if err != nil {
		event.Outcome = model.OutcomeFailed
		event.Error = err.Error()
		slog.Warn("fetch failed", "session_id", o.sessionID, "error", err)
		o.record(ctx, event)
		return model.RandomValue{}, &model.StageError{Stage: model.StageFetch, Err: err}
	}
	o.record(ctx, event)

	slog.Debug("fetch complete", "session_id", o.sessionID, "duration", elapsed.Round(time.Millisecond))
	return value, nil
}

// FetchAsync runs Fetch in a new goroutine and invokes done exactly once with
// its result.
func (o *Orchestrator) FetchAsync(ctx context.Context, done func(model.RandomValue, error)) {
	go func() {
		done(o.Fetch(ctx))
	}()
}

func (o *Orchestrator) fetchOnce(ctx context.Context, handle model.ServiceHandle) (model.RandomValue, error) {
	var token model.AccessToken
	if o.fetcher.NeedsToken() {
		issued, err := o.tokens.Token(ctx)
		if err != nil {
			return model.RandomValue{}, err
		}
		token = issued
	}
	return o.fetcher.Fetch(ctx, handle, token)
}

// Status returns a snapshot of the orchestrator's session state.
func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()

	status := Status{
		SessionID:      o.sessionID,
		State:          o.state,
		FailedStage:    o.failedStage,
		Cause:          o.cause,
		Handle:         o.handle,
		LastFetchError: o.lastFetchError,
		ReadyAt:        o.readyAt,
		Fetches:        o.fetches,
	}
	if o.lastValue != nil {
		value := *o.lastValue
		status.LastValue = &value
	}
	return status
}

// Descriptor returns the service descriptor being provisioned.
func (o *Orchestrator) Descriptor() model.ServiceDescriptor {
	return o.deployer.Descriptor()
}

// Journal returns recent journal entries, or nil when no journal is wired.
func (o *Orchestrator) Journal(ctx context.Context, limit int) ([]model.BootstrapEvent, error) {
	if o.journal == nil {
		return nil, nil
	}
	return o.journal.ListRecent(ctx, limit)
}

func (o *Orchestrator) setState(state model.State) {
	o.mu.Lock()
	o.state = state
	o.mu.Unlock()
}

func (o *Orchestrator) observe(stage model.Stage, err error, duration time.Duration) {
	if o.observer != nil {
		o.observer.ObserveStage(stage, err, duration)
	}
}

// record writes event to the journal. Journal failures are logged and never
// interrupt the pipeline.
func (o *Orchestrator) record(ctx context.Context, event model.BootstrapEvent) {
	if o.journal == nil {
		return
	}

	event.SessionID = o.sessionID
	event.At = o.now()
	if err := o.journal.Record(context.WithoutCancel(ctx), event); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("journal record failed", "stage", string(event.Stage), "outcome", string(event.Outcome), "error", err)
	}
}
