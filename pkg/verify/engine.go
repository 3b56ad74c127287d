// Package verify runs a requirements tree against a design instance and
// rolls leaf outcomes up into a report.
package verify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cgast/veriq/pkg/calc"
	"github.com/cgast/veriq/pkg/design"
	"github.com/cgast/veriq/pkg/events"
	"github.com/cgast/veriq/pkg/requirement"
)

// Option configures an Executor.
type Option func(*Executor)

// WithEvents publishes run progress to p.
func WithEvents(p events.Publisher) Option {
	return func(e *Executor) {
		e.events = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithCalculations evaluates calcs before the requirements so that
// procedures can read "@name" paths.
func WithCalculations(calcs *calc.Set) Option {
	return func(e *Executor) {
		e.calcs = calcs
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}

// Executor runs verification. It holds no per-run state, so one Executor
// may serve concurrent runs.
type Executor struct {
	events events.Publisher
	logger *zap.Logger
	calcs  *calc.Set
	now    func() time.Time
}

// NewExecutor creates an executor with the given options.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		events: events.Discard,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run verifies inst against tree. Requirements are visited depth-first,
// children before their parent, in declaration order. A leaf whose
// procedure errors or panics is Errored and the run continues. ctx is
// checked between leaves only; leaves not started before it is done are
// Errored with the context error.
//
// The returned error is reserved for problems that prevent a run at all.
func (e *Executor) Run(ctx context.Context, tree *requirement.Tree, inst *design.Instance) (*Report, error) {
	if tree == nil || inst == nil {
		return nil, fmt.Errorf("verify: tree and instance are required")
	}

	started := e.now()
	report := &Report{
		Model:     inst.Model(),
		StartedAt: started,
		Values:    inst.Data(),
	}
	e.events.Publish(events.NewEvent(events.EventVerifyStart, map[string]any{
		"model":        inst.Model(),
		"requirements": tree.Len(),
	}))
	e.logger.Debug("verification started",
		zap.String("model", inst.Model()),
		zap.Int("requirements", tree.Len()),
	)

	if e.calcs != nil && e.calcs.Len() > 0 {
		results, err := e.calcs.Evaluate(inst)
		if err != nil {
			return nil, fmt.Errorf("evaluating calculations: %w", err)
		}
		for _, name := range e.calcs.Names() {
			r := results[name]
			cr := CalcResult{Name: name, Value: r.Value}
			if r.Err != nil {
				cr.Error = r.Err.Error()
				e.logger.Warn("calculation failed", zap.String("calculation", name), zap.Error(r.Err))
			}
			report.Calculations = append(report.Calculations, cr)
			e.events.Publish(events.NewEvent(events.EventCalcResult, cr))
		}
		inst = inst.WithDerived(results)
	}

	report.Root = e.visit(ctx, tree.Root(), inst)
	report.Duration = e.now().Sub(started)

	summary := report.Summary()
	e.events.Publish(events.Event{
		Type:      events.EventVerifyEnd,
		Timestamp: e.now(),
		Data:      summary,
		Duration:  report.Duration,
	})
	e.logger.Info("verification finished",
		zap.String("model", report.Model),
		zap.String("status", string(report.Root.Status)),
		zap.Int("passed", summary.Passed),
		zap.Int("failed", summary.Failed),
		zap.Int("errored", summary.Errored),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

func (e *Executor) visit(ctx context.Context, n *requirement.Node, inst *design.Instance) *NodeReport {
	nr := &NodeReport{ID: n.ID, Description: n.Description}

	if n.IsLeaf() {
		if s, ok := n.Procedure.(fmt.Stringer); ok {
			nr.Procedure = s.String()
		}
		if err := ctx.Err(); err != nil {
			nr.Outcome = Outcome{Status: Errored, Message: fmt.Sprintf("not run: %v", err)}
			e.publishResult(nr)
			return nr
		}
		e.events.Publish(events.RequirementEvent(events.EventRequirementStart, n.ID, Running))
		start := e.now()
		nr.Outcome = evaluate(n.Procedure, inst)
		nr.Duration = e.now().Sub(start)
		if nr.Status == Errored {
			e.logger.Warn("requirement errored", zap.String("requirement", n.ID), zap.String("error", nr.Message))
		}
		e.publishResult(nr)
		return nr
	}

	statuses := make([]Status, 0, len(n.Children))
	for _, c := range n.Children {
		cr := e.visit(ctx, c, inst)
		nr.Children = append(nr.Children, cr)
		statuses = append(statuses, cr.Status)
	}
	e.events.Publish(events.RequirementEvent(events.EventRequirementStart, n.ID, Aggregating))
	nr.Outcome = Outcome{Status: Rollup(statuses)}
	if nr.Status != Passed {
		nr.Message = rollupMessage(nr)
	}
	e.publishResult(nr)
	return nr
}

func (e *Executor) publishResult(nr *NodeReport) {
	ev := events.RequirementEvent(events.EventRequirementResult, nr.ID, nr.Outcome)
	ev.Duration = nr.Duration
	e.events.Publish(ev)
	e.logger.Debug("requirement result",
		zap.String("requirement", nr.ID),
		zap.String("status", string(nr.Status)),
		zap.String("message", nr.Message),
	)
}

// evaluate runs one procedure, turning errors and panics into Errored.
func evaluate(p requirement.Procedure, inst *design.Instance) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Status: Errored, Message: fmt.Sprintf("panic: %v", r)}
		}
	}()

	verdict, err := p.Evaluate(inst)
	if err != nil {
		return Outcome{Status: Errored, Message: err.Error()}
	}
	if verdict.Holds {
		return Outcome{Status: Passed, Message: verdict.Message}
	}
	return Outcome{Status: Failed, Message: verdict.Message}
}

func rollupMessage(nr *NodeReport) string {
	var errored, failed []string
	for _, c := range nr.Children {
		switch c.Status {
		case Failed:
			failed = append(failed, c.ID)
		case Passed:
		default:
			errored = append(errored, c.ID)
		}
	}
	var parts []string
	if len(errored) > 0 {
		parts = append(parts, "errored: "+strings.Join(errored, ", "))
	}
	if len(failed) > 0 {
		parts = append(parts, "failed: "+strings.Join(failed, ", "))
	}
	return strings.Join(parts, "; ")
}
