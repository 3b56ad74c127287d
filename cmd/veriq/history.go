package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cgast/veriq/internal/export"
	"github.com/cgast/veriq/internal/history"
	"github.com/cgast/veriq/internal/inspector"
	"github.com/cgast/veriq/pkg/events"
)

func (a *app) historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded verification runs",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s history.Store) error {
				runs, err := s.List()
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					fmt.Fprintln(a.stdout, "no recorded runs")
					return nil
				}
				printRuns(a.stdout, runs)
				return nil
			})
		},
	}

	var exportPath string
	show := &cobra.Command{
		Use:   "show <run-id|latest>",
		Short: "Show a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s history.Store) error {
				run, err := getRun(s, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "run %s recorded %s\n", run.ID, run.RecordedAt.Local().Format("2006-01-02 15:04:05"))
				printReport(a.stdout, run.Report)
				if exportPath != "" {
					if err := export.WriteFile(exportPath, run.Report); err != nil {
						return withCode(exitUsage, err)
					}
					fmt.Fprintf(a.stdout, "exported %s\n", exportPath)
				}
				return nil
			})
		},
	}
	show.Flags().StringVar(&exportPath, "export", "", "Export the report to a .toml or .json file")

	diff := &cobra.Command{
		Use:   "diff <run-a> <run-b>",
		Short: "List requirements whose status changed between two runs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s history.Store) error {
				changes, err := history.DiffRuns(s, args[0], args[1])
				if err != nil {
					if errors.Is(err, history.ErrNotFound) {
						return withCode(exitUsage, err)
					}
					return err
				}
				if len(changes) == 0 {
					fmt.Fprintln(a.stdout, "no changes")
					return nil
				}
				for _, c := range changes {
					fmt.Fprintln(a.stdout, c)
				}
				return nil
			})
		},
	}

	var (
		addr string
		poll time.Duration
	)
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run history as a read-only JSON API",
		Long: `Serves /api/status, /api/runs, /api/runs/{ref}, /api/runs/{ref}/export
and /api/diff?a=&b= until interrupted. /api/events streams a run.recorded
Server-Sent Event for every run recorded while the server is up. The history
database is only opened per request, so verify --record keeps working.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.Inspector.Addr
			}
			if poll <= 0 {
				return withCode(exitUsage, fmt.Errorf("--poll must be positive"))
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := inspector.New(history.PathStore{Path: a.historyPath()}, events.NewMemoryBus(0), a.logger)
			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Watch(ctx, time.Now(), poll) })
			g.Go(func() error {
				defer stop()
				return srv.ListenAndServe(ctx, addr)
			})
			return g.Wait()
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "Listen address (default from inspector.addr)")
	serve.Flags().DurationVar(&poll, "poll", 2*time.Second, "How often to look for new runs")

	cmd.AddCommand(list, show, diff, serve)
	return cmd
}

// withStore opens the run history for the duration of fn.
func (a *app) withStore(fn func(history.Store) error) error {
	s, err := history.Open(a.historyPath())
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func getRun(s history.Store, ref string) (*history.Run, error) {
	run, err := s.Get(ref)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			return nil, withCode(exitUsage, fmt.Errorf("%s: %w", ref, err))
		}
		return nil, err
	}
	return run, nil
}
