package history

import (
	"fmt"
	"sort"

	"github.com/cgast/veriq/pkg/verify"
)

// ChangeType classifies a difference between two runs.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeRemoved  ChangeType = "removed"
	ChangeModified ChangeType = "modified"
)

// Change records how one requirement's status differs between two runs.
type Change struct {
	Requirement string        `json:"requirement"`
	Before      verify.Status `json:"before,omitempty"`
	After       verify.Status `json:"after,omitempty"`
	Type        ChangeType    `json:"type"`
}

func (c Change) String() string {
	switch c.Type {
	case ChangeAdded:
		return fmt.Sprintf("+ %s: %s", c.Requirement, c.After)
	case ChangeRemoved:
		return fmt.Sprintf("- %s: %s", c.Requirement, c.Before)
	default:
		return fmt.Sprintf("~ %s: %s -> %s", c.Requirement, c.Before, c.After)
	}
}

// Diff lists requirement status changes from run a to run b, sorted by
// requirement id.
func Diff(a, b *verify.Report) []Change {
	before := a.Statuses()
	after := b.Statuses()

	var changes []Change
	for id, sa := range before {
		sb, ok := after[id]
		switch {
		case !ok:
			changes = append(changes, Change{Requirement: id, Before: sa, Type: ChangeRemoved})
		case sa != sb:
			changes = append(changes, Change{Requirement: id, Before: sa, After: sb, Type: ChangeModified})
		}
	}
	for id, sb := range after {
		if _, ok := before[id]; !ok {
			changes = append(changes, Change{Requirement: id, After: sb, Type: ChangeAdded})
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Requirement < changes[j].Requirement
	})
	return changes
}

// DiffRuns loads two runs by reference and diffs them.
func DiffRuns(s Store, a, b string) ([]Change, error) {
	runA, err := s.Get(a)
	if err != nil {
		return nil, fmt.Errorf("load run %q: %w", a, err)
	}
	runB, err := s.Get(b)
	if err != nil {
		return nil, fmt.Errorf("load run %q: %w", b, err)
	}
	return Diff(runA.Report, runB.Report), nil
}
