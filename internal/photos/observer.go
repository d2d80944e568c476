package photos

import "time"

// Outcomes reported to an Observer.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeStale   = "stale"
)

// Observer receives operational measurements from a session.
type Observer interface {
	ObserveFetch(outcome string, duration time.Duration)
	ObserveBatchItem(operation, outcome string)
	ObserveUpload(outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveFetch(string, time.Duration) {}
func (nopObserver) ObserveBatchItem(string, string)    {}
func (nopObserver) ObserveUpload(string)               {}
