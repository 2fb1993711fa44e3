package web

import (
	"strings"
	"time"

	vm "github.com/ericfisherdev/edgerandom/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/edgerandom/internal/application"
	"github.com/ericfisherdev/edgerandom/internal/domain/model"
)

const pageTitle = "Random Number Generator"

// toPageViewModel builds the page from a status snapshot, including the last
// fetched value. The description is rendered from markdown and sanitized.
func toPageViewModel(status application.Status, descriptor model.ServiceDescriptor, csrf string) vm.PageViewModel {
	page := vm.PageViewModel{
		Title:           pageTitle,
		CSRFToken:       csrf,
		StateLabel:      stateLabel(status.State),
		State:           string(status.State),
		Ready:           status.State == model.StateReady || status.State == model.StateFetching,
		Failed:          status.State == model.StateFailed,
		ServiceName:     descriptor.ContainerName,
		BasePath:        descriptor.BasePath,
		DescriptionHTML: RenderMarkdown(descriptor.Description),
	}
	if status.LastValue != nil {
		page = withValue(page, *status.LastValue)
	}
	if page.Failed && status.Cause != nil {
		page.Error = "Setup failed during " + string(status.FailedStage) + ": " + status.Cause.Error()
	}
	if !status.Handle.IsZero() {
		page.BasePath = status.Handle.BasePath
	}
	return page
}

// withValue records a successful fetch on the page.
func withValue(page vm.PageViewModel, value model.RandomValue) vm.PageViewModel {
	page.HasValue = true
	page.Value = value.Value
	page.FetchedAt = value.FetchedAt.Local().Format(time.TimeOnly)
	page.Error = ""
	return page
}

func stateLabel(state model.State) string {
	switch state {
	case model.StateIdle:
		return "Waiting to start"
	case model.StateEngineStarting:
		return "Starting runtime"
	case model.StateAuthenticating:
		return "Authenticating"
	case model.StateDeploying:
		return "Deploying service"
	case model.StateReady, model.StateFetching:
		return "Ready"
	case model.StateFailed:
		return "Failed"
	default:
		return strings.ReplaceAll(string(state), "_", " ")
	}
}
