package httphandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ericfisherdev/edgerandom/internal/application"
	"github.com/ericfisherdev/edgerandom/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeStageError writes err with the status code StatusFor assigns to it.
func writeStageError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	var stageErr *model.StageError
	if errors.As(err, &stageErr) {
		resp.Stage = string(stageErr.Stage)
	}
	if errors.Is(err, model.ErrNotReady) {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, StatusFor(err), resp)
}

// StatusFor maps a pipeline error to an HTTP status code: 503 while the
// service is not ready yet, 502 for failures talking to the deployed service,
// and 500 for everything else.
func StatusFor(err error) int {
	var stageErr *model.StageError
	switch {
	case errors.Is(err, model.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.As(err, &stageErr) && stageErr.Stage == model.StageFetch,
		errors.Is(err, model.ErrTransport),
		errors.Is(err, model.ErrDecode),
		errors.Is(err, model.ErrInvalidURL):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

// RandomResponse is the JSON representation of one fetched value.
type RandomResponse struct {
	Value     int64  `json:"value"`
	FetchedAt string `json:"fetched_at"`
}

// HandleResponse is the JSON representation of the deployed service handle.
type HandleResponse struct {
	ContainerName string `json:"container_name"`
	Image         string `json:"image"`
	BasePath      string `json:"base_path"`
}

// StatusResponse is the JSON representation of the session state.
type StatusResponse struct {
	SessionID      string          `json:"session_id"`
	State          string          `json:"state"`
	FailedStage    string          `json:"failed_stage,omitempty"`
	Error          string          `json:"error,omitempty"`
	ReadyAt        string          `json:"ready_at,omitempty"`
	Handle         *HandleResponse `json:"handle,omitempty"`
	LastValue      *RandomResponse `json:"last_value,omitempty"`
	LastFetchError string          `json:"last_fetch_error,omitempty"`
	Fetches        int             `json:"fetches"`
}

// EventResponse is the JSON representation of a journal entry.
type EventResponse struct {
	ID         int64   `json:"id"`
	SessionID  string  `json:"session_id"`
	Stage      string  `json:"stage"`
	State      string  `json:"state"`
	Outcome    string  `json:"outcome"`
	Attempt    int     `json:"attempt"`
	Error      string  `json:"error,omitempty"`
	DurationMS float64 `json:"duration_ms"`
	At         string  `json:"at"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	State  string `json:"state"`
	Time   string `json:"time"`
}

func toRandomResponse(v model.RandomValue) RandomResponse {
	return RandomResponse{
		Value:     v.Value,
		FetchedAt: v.FetchedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toStatusResponse(s application.Status) StatusResponse {
	resp := StatusResponse{
		SessionID:   s.SessionID,
		State:       string(s.State),
		FailedStage: string(s.FailedStage),
		Fetches:     s.Fetches,
	}
	if s.Cause != nil {
		resp.Error = s.Cause.Error()
	}
	if !s.ReadyAt.IsZero() {
		resp.ReadyAt = s.ReadyAt.UTC().Format(time.RFC3339)
	}
	if !s.Handle.IsZero() {
		resp.Handle = &HandleResponse{
			ContainerName: s.Handle.ContainerName,
			Image:         s.Handle.Image,
			BasePath:      s.Handle.BasePath,
		}
	}
	if s.LastValue != nil {
		v := toRandomResponse(*s.LastValue)
		resp.LastValue = &v
	}
	if s.LastFetchError != nil {
		resp.LastFetchError = s.LastFetchError.Error()
	}
	return resp
}

func toEventResponse(e model.BootstrapEvent) EventResponse {
	return EventResponse{
		ID:         e.ID,
		SessionID:  e.SessionID,
		Stage:      string(e.Stage),
		State:      string(e.State),
		Outcome:    string(e.Outcome),
		Attempt:    e.Attempt,
		Error:      e.Error,
		DurationMS: float64(e.Duration) / float64(time.Millisecond),
		At:         e.At.UTC().Format(time.RFC3339Nano),
	}
}
