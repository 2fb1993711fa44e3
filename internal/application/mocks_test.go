package application_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ericfisherdev/edgerandom/internal/domain/model"
	"github.com/ericfisherdev/edgerandom/internal/domain/port/driven"
)

// --- Mock implementations ---

// mockEdgeClient records every call in order so tests can assert on
// sequencing and short-circuiting.
type mockEdgeClient struct {
	mu    sync.Mutex
	calls []string

	startErr     error
	exchange     func(developerIDToken string) (model.Authorization, error)
	provision    func(token string, descriptor model.ServiceDescriptor, artifactPath string) (model.ServiceHandle, error)
	lookup       func(token, containerName string) (model.ServiceHandle, error)
	lastLicense  string
	lastDevToken string
}

func (m *mockEdgeClient) StartEnvironment(_ context.Context, license string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "start")
	m.lastLicense = license
	return m.startErr
}

func (m *mockEdgeClient) ExchangeToken(_ context.Context, developerIDToken string) (model.Authorization, error) {
	m.mu.Lock()
	m.calls = append(m.calls, "exchange")
	m.lastDevToken = developerIDToken
	exchange := m.exchange
	m.mu.Unlock()

	if exchange == nil {
		return model.Authorization{AccessToken: "xyz"}, nil
	}
	return exchange(developerIDToken)
}

func (m *mockEdgeClient) ProvisionService(_ context.Context, token string, descriptor model.ServiceDescriptor, artifactPath string) (model.ServiceHandle, error) {
	m.mu.Lock()
	m.calls = append(m.calls, "provision")
	provision := m.provision
	m.mu.Unlock()

	if provision == nil {
		return model.ServiceHandle{ContainerName: descriptor.ContainerName, BasePath: descriptor.BasePath}, nil
	}
	return provision(token, descriptor, artifactPath)
}

func (m *mockEdgeClient) LookupService(_ context.Context, token, containerName string) (model.ServiceHandle, error) {
	m.mu.Lock()
	m.calls = append(m.calls, "lookup")
	lookup := m.lookup
	m.mu.Unlock()

	if lookup == nil {
		return model.ServiceHandle{}, model.ErrServiceNotFound
	}
	return lookup(token, containerName)
}

func (m *mockEdgeClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockEdgeClient) count(name string) int {
	n := 0
	for _, c := range m.Calls() {
		if c == name {
			n++
		}
	}
	return n
}

type mockSecret struct {
	name  string
	value string
	err   error
}

func (m *mockSecret) Name() string { return m.name }

func (m *mockSecret) Load(_ context.Context) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.value, nil
}

func secret(value string) *mockSecret {
	return &mockSecret{name: "test-secret", value: value}
}

func missingSecret() *mockSecret {
	return &mockSecret{name: "test-secret", err: driven.ErrSecretNotFound}
}

type mockLocator struct {
	paths map[string]string
	err   error
	asked []string
}

func (m *mockLocator) Name() string { return "mock" }

func (m *mockLocator) Locate(_ context.Context, artifactName string) (string, error) {
	m.asked = append(m.asked, artifactName)
	if m.err != nil {
		return "", m.err
	}
	if p, ok := m.paths[artifactName]; ok {
		return p, nil
	}
	return "", driven.ErrArtifactMissing
}

func locatorWith(name, path string) *mockLocator {
	return &mockLocator{paths: map[string]string{name: path}}
}

type mockJournal struct {
	mu     sync.Mutex
	events []model.BootstrapEvent
	err    error
}

func (m *mockJournal) Record(_ context.Context, event model.BootstrapEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

func (m *mockJournal) ListRecent(_ context.Context, limit int) ([]model.BootstrapEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.BootstrapEvent, 0, len(m.events))
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.events[i])
	}
	return out, nil
}

func (m *mockJournal) ListBySession(_ context.Context, sessionID string) ([]model.BootstrapEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.BootstrapEvent
	for _, e := range m.events {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockJournal) Events() []model.BootstrapEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.BootstrapEvent(nil), m.events...)
}

type observation struct {
	stage model.Stage
	err   error
}

type mockObserver struct {
	mu  sync.Mutex
	obs []observation
}

func (m *mockObserver) ObserveStage(stage model.Stage, err error, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.obs = append(m.obs, observation{stage: stage, err: err})
}

func (m *mockObserver) Observations() []observation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]observation(nil), m.obs...)
}

// doerFunc adapts a function to driven.HTTPDoer.
type doerFunc func(req *http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

// staticDoer answers every request with the given status and body and
// records the requests it saw.
type staticDoer struct {
	mu       sync.Mutex
	status   int
	body     string
	err      error
	requests []*http.Request
}

func (d *staticDoer) Do(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, req)
	if d.err != nil {
		return nil, d.err
	}
	return &http.Response{
		StatusCode: d.status,
		Body:       io.NopCloser(strings.NewReader(d.body)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

func (d *staticDoer) Requests() []*http.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*http.Request(nil), d.requests...)
}

// sequenceDoer answers with successive integer bodies.
type sequenceDoer struct {
	mu   sync.Mutex
	next int
}

func (d *sequenceDoer) Do(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	d.next++
	n := d.next
	d.mu.Unlock()
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(fmt.Sprintf("%d", n))),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}
