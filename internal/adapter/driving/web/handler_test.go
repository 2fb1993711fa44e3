package web

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/edgerandom/internal/application"
	"github.com/ericfisherdev/edgerandom/internal/domain/model"
)

type mockService struct {
	value    model.RandomValue
	fetchErr error
	status   application.Status
	fetches  int
}

func (m *mockService) Fetch(_ context.Context) (model.RandomValue, error) {
	m.fetches++
	return m.value, m.fetchErr
}

func (m *mockService) Status() application.Status { return m.status }

func (m *mockService) Descriptor() model.ServiceDescriptor {
	desc := model.DefaultDescriptor()
	desc.Description = "Returns a **random** integer. <script>alert(1)</script>"
	return desc
}

func newTestMux(svc RandomService, limit func(http.Handler) http.Handler) *http.ServeMux {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mux := http.NewServeMux()
	RegisterRoutes(mux, NewHandler(svc, limit, logger))
	return mux
}

func postRandom(t *testing.T, mux http.Handler, cookie, field string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{csrfFormField: {field}}
	req := httptest.NewRequest(http.MethodPost, "/random", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: cookie})
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestIndex_RendersPageAndIssuesCSRFCookie(t *testing.T) {
	svc := &mockService{status: application.Status{State: model.StateReady}}
	mux := newTestMux(svc, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<title>Random Number Generator</title>")
	assert.Contains(t, body, "GET RANDOM NUMBER")
	assert.Contains(t, body, "<strong>random</strong>")
	assert.NotContains(t, body, "<script>")
	assert.NotContains(t, body, "Got ")
	assert.Zero(t, svc.fetches)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, csrfCookieName, cookies[0].Name)
	assert.Contains(t, body, `value="`+cookies[0].Value+`"`)
}

func TestIndex_ReusesExistingCSRFCookie(t *testing.T) {
	mux := newTestMux(&mockService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "abc123"})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Empty(t, rec.Result().Cookies())
	assert.Contains(t, rec.Body.String(), `value="abc123"`)
}

func TestIndex_StateRendering(t *testing.T) {
	tests := []struct {
		name     string
		status   application.Status
		contains []string
		disabled bool
	}{
		{
			name:     "starting",
			status:   application.Status{State: model.StateAuthenticating},
			contains: []string{"Authenticating", `data-state="authenticating"`},
			disabled: true,
		},
		{
			name:     "ready",
			status:   application.Status{State: model.StateReady},
			contains: []string{"Ready", `data-state="ready"`},
		},
		{
			name: "failed",
			status: application.Status{
				State:       model.StateFailed,
				FailedStage: model.StageAuthenticate,
				Cause:       errors.New("401 unauthorized"),
			},
			contains: []string{"Failed", "Setup failed during authenticate: 401 unauthorized"},
			disabled: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newTestMux(&mockService{status: tt.status}, nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			body := rec.Body.String()
			for _, want := range tt.contains {
				assert.Contains(t, body, want)
			}
			assert.Equal(t, tt.disabled, strings.Contains(body, "disabled"))
		})
	}
}

func TestIndex_ShowsLastValue(t *testing.T) {
	last := model.RandomValue{Value: 17, FetchedAt: time.Now()}
	svc := &mockService{status: application.Status{State: model.StateReady, LastValue: &last}}
	mux := newTestMux(svc, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Got 17")
	assert.Zero(t, svc.fetches, "rendering the page never fetches")
}

func TestRandom_Success(t *testing.T) {
	svc := &mockService{
		status: application.Status{State: model.StateReady},
		value:  model.RandomValue{Value: 42, FetchedAt: time.Now()},
	}
	mux := newTestMux(svc, nil)

	rec := postRandom(t, mux, "tok", "tok")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Got 42")
	assert.NotContains(t, rec.Body.String(), `role="alert"`)
	assert.Equal(t, 1, svc.fetches)
}

func TestRandom_FetchErrorIsShown(t *testing.T) {
	svc := &mockService{
		status:   application.Status{State: model.StateReady},
		fetchErr: model.ErrNotReady,
	}
	mux := newTestMux(svc, nil)

	rec := postRandom(t, mux, "tok", "tok")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Could not get a random number")
	assert.Contains(t, body, model.ErrNotReady.Error())
	assert.NotContains(t, body, "Got ")
}

func TestRandom_CSRF(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
		field  string
	}{
		{"no cookie", "", "tok"},
		{"no field", "tok", ""},
		{"mismatch", "tok", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockService{status: application.Status{State: model.StateReady}}
			mux := newTestMux(svc, nil)

			rec := postRandom(t, mux, tt.cookie, tt.field)

			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Zero(t, svc.fetches)
		})
	}
}

func TestRandom_CSRFHeader(t *testing.T) {
	svc := &mockService{status: application.Status{State: model.StateReady}, value: model.RandomValue{Value: 7}}
	mux := newTestMux(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/random", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "tok"})
	req.Header.Set("X-CSRF-Token", "tok")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Got 7")
}

func TestRandom_LimitWrapsFetchRoute(t *testing.T) {
	svc := &mockService{status: application.Status{State: model.StateReady}}
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
	mux := newTestMux(svc, deny)

	rec := postRandom(t, mux, "tok", "tok")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Zero(t, svc.fetches)

	index := httptest.NewRecorder()
	mux.ServeHTTP(index, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, index.Code, "the page itself is not limited")
}

func TestStaticAssets(t *testing.T) {
	mux := newTestMux(&mockService{}, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ".value")
}
