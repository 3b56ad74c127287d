package verify

import (
	"errors"
	"time"
)

// NodeReport is one requirement annotated with its outcome.
type NodeReport struct {
	ID          string        `json:"id"`
	Description string        `json:"description,omitempty"`
	Procedure   string        `json:"procedure,omitempty"`
	Outcome                   // embedded status and message
	Duration    time.Duration `json:"duration,omitempty"`
	Children    []*NodeReport `json:"children,omitempty"`
}

// IsLeaf reports whether the node was verified directly.
func (n *NodeReport) IsLeaf() bool { return len(n.Children) == 0 }

// CalcResult records one calculation of the run.
type CalcResult struct {
	Name  string `json:"name"`
	Value any    `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

// Report is the outcome of one verification run. It is built once by the
// executor and not modified by it afterwards.
type Report struct {
	Model        string         `json:"model"`
	Source       string         `json:"source,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	Duration     time.Duration  `json:"duration"`
	Values       map[string]any `json:"values,omitempty"`
	Calculations []CalcResult   `json:"calculations,omitempty"`
	Root         *NodeReport    `json:"root"`
}

// Verified reports whether the root requirement passed.
func (r *Report) Verified() bool {
	return r.Root != nil && r.Root.Status == Passed
}

// Summary counts leaf outcomes.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
}

// Summary counts the leaf outcomes of the run.
func (r *Report) Summary() Summary {
	var s Summary
	_ = r.Walk(func(n *NodeReport, _ int) error {
		if !n.IsLeaf() {
			return nil
		}
		s.Total++
		switch n.Status {
		case Passed:
			s.Passed++
		case Failed:
			s.Failed++
		default:
			s.Errored++
		}
		return nil
	})
	return s
}

// Walk visits every node parent first, in declaration order. depth is 0 for
// the root.
func (r *Report) Walk(fn func(n *NodeReport, depth int) error) error {
	if r.Root == nil {
		return nil
	}
	return walkReport(r.Root, 0, fn)
}

func walkReport(n *NodeReport, depth int, fn func(*NodeReport, int) error) error {
	if err := fn(n, depth); err != nil {
		return err
	}
	for _, c := range n.Children {
		if err := walkReport(c, depth+1, fn); err != nil {
			return err
		}
	}
	return nil
}

// Find returns the node with the given requirement id.
func (r *Report) Find(id string) (*NodeReport, bool) {
	var found *NodeReport
	_ = r.Walk(func(n *NodeReport, _ int) error {
		if n.ID == id {
			found = n
			return errStop
		}
		return nil
	})
	return found, found != nil
}

// Statuses maps every requirement id to its status.
func (r *Report) Statuses() map[string]Status {
	out := make(map[string]Status)
	_ = r.Walk(func(n *NodeReport, _ int) error {
		out[n.ID] = n.Status
		return nil
	})
	return out
}

var errStop = errors.New("stop walk")
