package application

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ericfisherdev/edgerandom/internal/domain/model"
	"github.com/ericfisherdev/edgerandom/internal/domain/port/driven"
)

const (
	// EndpointSuffix is appended to the service base path to reach the value.
	EndpointSuffix = "/randomNumber"

	maxResponseBytes = 64 << 10
)

// ValueFetcher performs the single GET that retrieves a random value from a
// deployed service.
type ValueFetcher struct {
	doer           driven.HTTPDoer
	serviceAddress string
	authOnFetch    bool
	now            func() time.Time
}

// NewValueFetcher creates a ValueFetcher. serviceAddress is the runtime's
// local service address, e.g. "http://127.0.0.1:8083". When authOnFetch is
// true the access token is sent as a bearer credential.
func NewValueFetcher(doer driven.HTTPDoer, serviceAddress string, authOnFetch bool) *ValueFetcher {
	return &ValueFetcher{
		doer:           doer,
		serviceAddress: serviceAddress,
		authOnFetch:    authOnFetch,
		now:            time.Now,
	}
}

// NeedsToken reports whether Fetch consumes an access token.
func (f *ValueFetcher) NeedsToken() bool {
	return f.authOnFetch
}

// EndpointURL composes service address, base path, and EndpointSuffix into a
// full URL. It returns model.ErrInvalidURL when the result is not an absolute
// http(s) URL.
func EndpointURL(serviceAddress, basePath string) (*url.URL, error) {
	base, err := url.Parse(strings.TrimSpace(serviceAddress))
	if err != nil {
		return nil, model.Wrap(model.ErrInvalidURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", model.ErrInvalidURL, base.Scheme)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("%w: missing host in %q", model.ErrInvalidURL, serviceAddress)
	}
	if strings.ContainsAny(basePath, "?# ") {
		return nil, fmt.Errorf("%w: base path %q contains reserved characters", model.ErrInvalidURL, basePath)
	}

	path := strings.TrimRight(base.Path, "/")
	if trimmed := strings.Trim(basePath, "/"); trimmed != "" {
		path += "/" + trimmed
	}

	endpoint := *base
	endpoint.Path = path + EndpointSuffix
	endpoint.RawPath = ""
	endpoint.RawQuery = ""
	endpoint.Fragment = ""
	return &endpoint, nil
}

// Fetch issues one GET against the handle's endpoint and decodes the body as
// an integer. It never mutates handle or token.
func (f *ValueFetcher) Fetch(ctx context.Context, handle model.ServiceHandle, token model.AccessToken) (model.RandomValue, error) {
	endpoint, err := EndpointURL(f.serviceAddress, handle.BasePath)
	if err != nil {
		return model.RandomValue{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return model.RandomValue{}, model.Wrap(model.ErrInvalidURL, err)
	}
	if f.authOnFetch && !token.IsZero() {
		req.Header.Set("Authorization", "Bearer "+token.Value)
	}

	resp, err := f.doer.Do(req)
	if err != nil {
		return model.RandomValue{}, model.Wrap(model.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.RandomValue{}, fmt.Errorf("%w: GET %s returned status %d", model.ErrTransport, endpoint.Path, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return model.RandomValue{}, model.Wrap(model.ErrTransport, err)
	}

	value, err := decodeInteger(body)
	if err != nil {
		return model.RandomValue{}, err
	}

	return model.RandomValue{Value: value, FetchedAt: f.now()}, nil
}

// decodeInteger parses body as a single JSON integer.
func decodeInteger(body []byte) (int64, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return 0, fmt.Errorf("%w: empty body", model.ErrDecode)
	}

	var value int64
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return 0, model.Wrap(model.ErrDecode, err)
	}
	return value, nil
}
