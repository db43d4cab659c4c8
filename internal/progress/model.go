package progress

import "time"

const (
	StatusStarting = "starting"
	StatusRunning  = "running"
	StatusWarning  = "warning"
	StatusError    = "error"
	StatusComplete = "complete"
)

// Event is one progress message on a topic. Topics are model names.
type Event struct {
	Topic   string    `json:"topic"`
	Status  string    `json:"status"`
	Message string    `json:"message"`
	Percent *int      `json:"percent,omitempty"`
	At      time.Time `json:"at"`
}

// Terminal reports whether no further events follow on this run.
func (e Event) Terminal() bool {
	return e.Status == StatusComplete || e.Status == StatusError
}
