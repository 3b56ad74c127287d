package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cgast/veriq/internal/export"
	"github.com/cgast/veriq/internal/history"
	"github.com/cgast/veriq/pkg/design"
	"github.com/cgast/veriq/pkg/events"
	"github.com/cgast/veriq/pkg/manifest"
	"github.com/cgast/veriq/pkg/verify"
)

// designResult is the outcome of verifying one design file.
type designResult struct {
	path       string
	loadErr    error
	violations design.Violations
	report     *verify.Report
	run        *history.Run
}

func (a *app) verifyCmd() *cobra.Command {
	var (
		designs    []string
		params     []string
		record     bool
		exportPath string
		eventsPath string
		jobs       int
	)
	cmd := &cobra.Command{
		Use:   "verify <manifest>",
		Short: "Verify design files against the manifest's requirements",
		Long: `Validates each design file against the root model schema, evaluates the
manifest's calculations and runs the requirements tree. Several designs are
verified in parallel. The default design is <manifest>.design.toml.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseParams(params)
			if err != nil {
				return err
			}
			if len(designs) == 0 {
				designs = []string{defaultDesign(args[0])}
			}
			if exportPath != "" && len(designs) > 1 {
				return withCode(exitUsage, fmt.Errorf("--export takes a single design, got %d", len(designs)))
			}
			if exportPath != "" {
				if _, err := export.FormatFromPath(exportPath); err != nil {
					return withCode(exitUsage, err)
				}
			}

			p, err := a.loadProject(args[0], values)
			if err != nil {
				return err
			}

			var store history.Store
			if record || a.cfg.History.Record {
				s, err := history.Open(a.historyPath())
				if err != nil {
					return err
				}
				defer s.Close()
				store = s
			}

			bus := events.NewMemoryBus(0)
			results, err := a.verifyAll(cmd.Context(), p, designs, store, bus, jobs)
			if err != nil {
				return err
			}

			code := exitVerified
			for _, r := range results {
				switch {
				case r.loadErr != nil:
					fmt.Fprintf(a.stdout, "%s: %v\n", r.path, r.loadErr)
					code = max(code, exitInvalid)
				case !r.violations.Valid():
					fmt.Fprintf(a.stdout, "%s: design invalid, %d violation(s)\n", r.path, len(r.violations))
					for _, v := range r.violations {
						fmt.Fprintf(a.stdout, "  %s\n", v)
					}
					code = max(code, exitInvalid)
				default:
					printReport(a.stdout, r.report)
					if r.run != nil {
						fmt.Fprintf(a.stdout, "  recorded run %s\n", r.run.ID)
					}
					if !r.report.Verified() {
						code = max(code, exitFailed)
					}
				}
			}

			if exportPath != "" && results[0].report != nil {
				if err := export.WriteFile(exportPath, results[0].report); err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "exported %s\n", exportPath)
			}

			if eventsPath != "" {
				if err := writeEvents(eventsPath, bus.History(time.Time{})); err != nil {
					return err
				}
			}

			if store != nil && a.cfg.History.MaxRuns > 0 {
				pruned, err := store.Prune(a.cfg.History.MaxRuns)
				if err != nil {
					a.logger.Warn("pruning history failed", zap.Error(err))
				} else if pruned > 0 {
					a.logger.Debug("pruned history", zap.Int("runs", pruned))
				}
			}

			if code != exitVerified {
				return withCode(code, nil)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&designs, "design", "d", nil, "Design file to verify (repeatable)")
	cmd.Flags().StringArrayVar(&params, "param", nil, "Manifest parameter key=value (repeatable)")
	cmd.Flags().BoolVar(&record, "record", false, "Record reports in the run history (default from history.record)")
	cmd.Flags().StringVar(&exportPath, "export", "", "Export the report to a .toml or .json file")
	cmd.Flags().StringVar(&eventsPath, "events", "", "Write the run's event trace as JSON lines")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", runtime.GOMAXPROCS(0), "Designs verified in parallel")
	return cmd
}

// verifyAll verifies designs concurrently. Results keep the order of paths.
// The error is reserved for failures that stop every run.
func (a *app) verifyAll(ctx context.Context, p *manifest.Project, paths []string, store history.Store, bus events.Publisher, jobs int) ([]designResult, error) {
	pub := events.Tee(logPublisher{logger: a.logger}, bus)
	executor := verify.NewExecutor(
		verify.WithLogger(a.logger),
		verify.WithCalculations(p.Calcs),
		verify.WithEvents(pub),
	)

	results := make([]designResult, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, path := range paths {
		g.Go(func() error {
			res := designResult{path: path}
			defer func() { results[i] = res }()

			inst, violations, err := a.instantiate(p, path)
			if err != nil {
				res.loadErr = err
				return nil
			}
			pub.Publish(events.NewEvent(events.EventDesignLoaded, map[string]any{"design": path}))
			res.violations = violations
			pub.Publish(events.NewEvent(events.EventDesignValidated, map[string]any{
				"design":     path,
				"violations": len(violations),
			}))
			if !violations.Valid() {
				return nil
			}

			report, err := executor.Run(ctx, p.Tree, inst)
			if err != nil {
				return fmt.Errorf("verify %s: %w", path, err)
			}
			report.Source = path
			res.report = report

			if store != nil {
				run, err := store.Record(report)
				if err != nil {
					return fmt.Errorf("record %s: %w", path, err)
				}
				res.run = run
				pub.Publish(events.NewEvent(events.EventRunRecorded, run.Info()))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// writeEvents writes one JSON event per line.
func writeEvents(path string, evs []events.Event) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write events: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	for _, e := range evs {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("write events: %w", err)
		}
	}
	return f.Close()
}
