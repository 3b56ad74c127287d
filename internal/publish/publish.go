package publish

import (
	"context"
	"fmt"
	"strings"

	gh "github.com/google/go-github/v60/github"
	"go.uber.org/zap"

	"github.com/cgast/veriq/internal/history"
	"github.com/cgast/veriq/pkg/verify"
)

// Result describes what Publish did.
type Result struct {
	Number  int    `json:"number,omitempty"`
	URL     string `json:"url,omitempty"`
	Comment bool   `json:"comment,omitempty"` // an open issue was updated instead of created
	Skipped bool   `json:"skipped,omitempty"`
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLabels applies labels to created issues.
func WithLabels(labels ...string) Option {
	return func(p *Publisher) {
		p.labels = labels
	}
}

// WithOnlyFailures skips verified runs.
func WithOnlyFailures(only bool) Option {
	return func(p *Publisher) {
		p.onlyFailures = only
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Publisher) {
		p.logger = l
	}
}

// Publisher turns runs into GitHub issues. An open issue with the same
// title gets a comment instead of a duplicate.
type Publisher struct {
	client       *Client
	labels       []string
	onlyFailures bool
	logger       *zap.Logger
}

// NewPublisher creates a publisher.
func NewPublisher(client *Client, opts ...Option) *Publisher {
	p := &Publisher{client: client, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish reports run on repo ("owner/name").
func (p *Publisher) Publish(ctx context.Context, run *history.Run, repo string) (*Result, error) {
	owner, name, err := ParseRepo(repo)
	if err != nil {
		return nil, err
	}
	if p.onlyFailures && run.Report.Verified() {
		p.logger.Info("run verified, not publishing", zap.String("run", run.ID))
		return &Result{Skipped: true}, nil
	}

	title := Title(run)
	body := Body(run)

	existing, err := p.findOpen(ctx, owner, name, title)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		comment, _, err := p.client.inner.Issues.CreateComment(ctx, owner, name, existing.GetNumber(), &gh.IssueComment{Body: &body})
		if err != nil {
			return nil, fmt.Errorf("comment on issue #%d: %w", existing.GetNumber(), err)
		}
		p.logger.Info("commented on open issue",
			zap.String("repo", repo),
			zap.Int("issue", existing.GetNumber()),
		)
		return &Result{Number: existing.GetNumber(), URL: comment.GetHTMLURL(), Comment: true}, nil
	}

	req := &gh.IssueRequest{Title: &title, Body: &body}
	if len(p.labels) > 0 {
		labels := append([]string(nil), p.labels...)
		req.Labels = &labels
	}
	issue, _, err := p.client.inner.Issues.Create(ctx, owner, name, req)
	if err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}
	p.logger.Info("created issue", zap.String("repo", repo), zap.Int("issue", issue.GetNumber()))
	return &Result{Number: issue.GetNumber(), URL: issue.GetHTMLURL()}, nil
}

func (p *Publisher) findOpen(ctx context.Context, owner, name, title string) (*gh.Issue, error) {
	opts := &gh.IssueListByRepoOptions{
		State:       "open",
		Labels:      p.labels,
		ListOptions: gh.ListOptions{PerPage: 100},
	}
	issues, _, err := p.client.inner.Issues.ListByRepo(ctx, owner, name, opts)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	for _, issue := range issues {
		if issue.GetTitle() == title && !issue.IsPullRequest() {
			return issue, nil
		}
	}
	return nil, nil
}

// Title is the issue title for a run. It depends only on the model and
// source, so repeated failures of the same design land on one issue.
func Title(run *history.Run) string {
	title := fmt.Sprintf("veriq: %s does not verify", run.Report.Model)
	if run.Report.Verified() {
		title = fmt.Sprintf("veriq: %s verifies", run.Report.Model)
	}
	if run.Report.Source != "" {
		title += " (" + run.Report.Source + ")"
	}
	return title
}

// Body renders a markdown summary of a run.
func Body(run *history.Run) string {
	r := run.Report
	s := r.Summary()

	var b strings.Builder
	fmt.Fprintf(&b, "Run `%s` recorded %s.\n\n", run.ID, run.RecordedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "**%s**: %d passed, %d failed, %d errored of %d requirements.\n\n",
		strings.ToUpper(string(r.Root.Status)), s.Passed, s.Failed, s.Errored, s.Total)

	b.WriteString("| Requirement | Status | Message |\n|---|---|---|\n")
	_ = r.Walk(func(n *verify.NodeReport, depth int) error {
		if n.Status == verify.Passed && !n.IsLeaf() {
			return nil
		}
		fmt.Fprintf(&b, "| %s%s | %s | %s |\n",
			strings.Repeat("&nbsp;&nbsp;", depth), n.ID, n.Status, escapeCell(n.Message))
		return nil
	})

	for _, c := range r.Calculations {
		if c.Error != "" {
			fmt.Fprintf(&b, "\nCalculation `%s` failed: %s\n", c.Name, c.Error)
		}
	}
	return b.String()
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
