package model

import "time"

// BootstrapEvent is one journaled stage transition. It never carries
// credential or token material; Error holds only the error text.
type BootstrapEvent struct {
	ID        int64
	SessionID string
	Stage     Stage
	State     State
	Outcome   Outcome
	Attempt   int
	Error     string
	Duration  time.Duration
	At        time.Time
}
