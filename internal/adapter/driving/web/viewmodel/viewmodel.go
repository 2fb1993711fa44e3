// Package viewmodel defines presentation-ready structs for templ components.
// View models decouple template rendering from domain model types.
package viewmodel

// PageViewModel holds everything the random number page renders.
type PageViewModel struct {
	Title     string
	CSRFToken string

	// State is the raw session state used to style the badge; StateLabel is
	// its human readable form.
	State      string
	StateLabel string
	Ready      bool
	Failed     bool

	// HasValue is false until the session has fetched a value.
	HasValue  bool
	Value     int64
	FetchedAt string

	Error string

	ServiceName     string
	BasePath        string
	DescriptionHTML string
}
