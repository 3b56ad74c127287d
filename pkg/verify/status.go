package verify

// Status is the state of one requirement during and after a run.
type Status string

const (
	Pending     Status = "pending"
	Running     Status = "running"
	Aggregating Status = "aggregating"
	Passed      Status = "passed"
	Failed      Status = "failed"
	Errored     Status = "errored"
)

// Terminal reports whether s is a final outcome.
func (s Status) Terminal() bool {
	return s == Passed || s == Failed || s == Errored
}

// Rollup combines child outcomes into an aggregator outcome: Errored if
// any child errored, else Failed if any child failed, else Passed. A child
// without a terminal outcome counts as Errored.
func Rollup(children []Status) Status {
	out := Passed
	for _, s := range children {
		switch s {
		case Passed:
		case Failed:
			if out == Passed {
				out = Failed
			}
		default:
			return Errored
		}
	}
	return out
}

// Outcome is a requirement's terminal status with an optional diagnostic.
type Outcome struct {
	Status  Status `json:"status" toml:"status"`
	Message string `json:"message,omitempty" toml:"message,omitempty"`
}
