package driven

import "net/http"

// HTTPDoer is the request/response transport used to reach the deployed
// service. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}
