// Package edge implements the EdgeClient port against the local edge
// runtime's HTTP JSON API.
package edge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ericfisherdev/edgerandom/internal/domain/model"
	"github.com/ericfisherdev/edgerandom/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.EdgeClient = (*Client)(nil)

const (
	startPath      = "/runtime/v1/start"
	tokenPath      = "/auth/v1/token"
	imagesPath     = "/mcm/v1/images"
	containersPath = "/mcm/v1/containers"

	maxResponseBytes = 1 << 20
	maxErrorSnippet  = 256
)

// Client talks to the edge runtime's management API.
type Client struct {
	http    *http.Client
	baseURL *url.URL
	now     func() time.Time
}

// NewClient creates a Client for the runtime listening at baseURL. timeout
// bounds each request; image uploads share the same limit.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	return NewClientWithHTTPClient(&http.Client{Timeout: timeout}, baseURL)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing runtime URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("parsing runtime URL: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parsing runtime URL: missing host")
	}

	return &Client{http: httpClient, baseURL: u, now: time.Now}, nil
}

// StartEnvironment starts the runtime with the given license.
func (c *Client) StartEnvironment(ctx context.Context, license string) error {
	body, err := json.Marshal(map[string]string{"license": license})
	if err != nil {
		return fmt.Errorf("marshal start request: %w", err)
	}

	_, err = c.do(ctx, http.MethodPost, startPath, "", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("start runtime: %w", err)
	}

	slog.Debug("runtime started", "runtime", c.baseURL.Host)
	return nil
}

// ExchangeToken trades a developer ID token for an access token. A response
// that carries no token is returned as an empty Authorization.
func (c *Client) ExchangeToken(ctx context.Context, developerIDToken string) (model.Authorization, error) {
	body, err := json.Marshal(map[string]string{"developerIdToken": developerIDToken})
	if err != nil {
		return model.Authorization{}, fmt.Errorf("marshal token request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, tokenPath, "", "application/json", bytes.NewReader(body))
	if err != nil {
		return model.Authorization{}, fmt.Errorf("exchange token: %w", err)
	}
	if !gjson.ValidBytes(resp) {
		return model.Authorization{}, fmt.Errorf("exchange token: response is not valid JSON")
	}

	return parseAuthorization(resp, c.now()), nil
}

// ProvisionService uploads the image archive and starts a container from it.
func (c *Client) ProvisionService(ctx context.Context, accessToken string, descriptor model.ServiceDescriptor, artifactPath string) (model.ServiceHandle, error) {
	if err := c.uploadImage(ctx, accessToken, artifactPath); err != nil {
		return model.ServiceHandle{}, err
	}

	env := descriptor.Env
	if env == nil {
		env = map[string]string{}
	}
	body, err := json.Marshal(containerRequest{
		Name:     descriptor.ContainerName,
		Image:    descriptor.ImageName,
		BasePath: descriptor.BasePath,
		Env:      env,
	})
	if err != nil {
		return model.ServiceHandle{}, fmt.Errorf("marshal container request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, containersPath, accessToken, "application/json", bytes.NewReader(body))
	if err != nil {
		return model.ServiceHandle{}, fmt.Errorf("create container %s: %w", descriptor.ContainerName, err)
	}

	handle := parseContainer(gjson.ParseBytes(resp))
	slog.Info("container created", "container", handle.ContainerName, "image", handle.Image, "base_path", handle.BasePath)
	return handle, nil
}

// LookupService finds a running container by name. The runtime may prefix
// container names with a client identifier, so a "-<name>" suffix matches when
// no container carries the exact name.
func (c *Client) LookupService(ctx context.Context, accessToken string, containerName string) (model.ServiceHandle, error) {
	resp, err := c.do(ctx, http.MethodGet, containersPath, accessToken, "", nil)
	if err != nil {
		return model.ServiceHandle{}, fmt.Errorf("list containers: %w", err)
	}
	if !gjson.ValidBytes(resp) {
		return model.ServiceHandle{}, fmt.Errorf("list containers: response is not valid JSON")
	}

	var exact, suffixed *gjson.Result
	for _, container := range gjson.GetBytes(resp, "data").Array() {
		name := container.Get("name").String()
		switch {
		case name == containerName:
			exact = &container
		case suffixed == nil && strings.HasSuffix(name, "-"+containerName):
			suffixed = &container
		}
		if exact != nil {
			break
		}
	}

	match := exact
	if match == nil {
		match = suffixed
	}
	if match == nil {
		return model.ServiceHandle{}, fmt.Errorf("%w: %s", model.ErrServiceNotFound, containerName)
	}
	return parseContainer(*match), nil
}

type containerRequest struct {
	Name     string            `json:"name"`
	Image    string            `json:"image"`
	BasePath string            `json:"basePath"`
	Env      map[string]string `json:"env"`
}

// do sends one request and returns the response body of a 2xx response.
func (c *Client) do(ctx context.Context, method, path, accessToken, contentType string, body io.Reader) ([]byte, error) {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: snippet(data)}
	}
	return data, nil
}

// StatusError reports a non-2xx response from the runtime.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if msg := gjson.Get(s, "message"); msg.Exists() {
		s = msg.String()
	}
	if len(s) > maxErrorSnippet {
		s = s[:maxErrorSnippet] + "..."
	}
	return s
}

// parseContainer maps a container document to a handle. The base path falls
// back to the MCM.BASE_API_PATH environment entry when no basePath field is
// present.
func parseContainer(container gjson.Result) model.ServiceHandle {
	basePath := container.Get("basePath").String()
	if basePath == "" {
		basePath = container.Get(`env.MCM\.BASE_API_PATH`).String()
	}
	return model.ServiceHandle{
		ContainerName: container.Get("name").String(),
		Image:         container.Get("image").String(),
		BasePath:      basePath,
	}
}
