package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cgast/veriq/internal/history"
	"github.com/cgast/veriq/internal/publish"
)

func (a *app) publishCmd() *cobra.Command {
	var repo string
	cmd := &cobra.Command{
		Use:   "publish <run-id|latest>",
		Short: "Report a recorded run as a GitHub issue",
		Long: `Opens a GitHub issue summarizing a recorded run, or comments on the open
issue for the same design. Needs github.token in .veriq/platforms.yaml.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gh := a.platforms.GitHub
			if repo == "" {
				repo = gh.DefaultRepo
			}
			if repo == "" {
				return withCode(exitUsage, fmt.Errorf("no repository: pass --repo or set github.default_repo"))
			}
			if gh.Token == "" {
				return withCode(exitUsage, fmt.Errorf("github.token is not configured"))
			}

			var clientOpts []publish.ClientOption
			if gh.BaseURL != "" {
				clientOpts = append(clientOpts, publish.WithBaseURL(gh.BaseURL))
			}
			client, err := publish.NewClient(gh.Token, clientOpts...)
			if err != nil {
				return withCode(exitUsage, err)
			}
			publisher := publish.NewPublisher(client,
				publish.WithLabels(a.cfg.Publish.Labels...),
				publish.WithOnlyFailures(a.cfg.Publish.OnlyFailures),
				publish.WithLogger(a.logger),
			)

			return a.withStore(func(s history.Store) error {
				run, err := getRun(s, args[0])
				if err != nil {
					return err
				}
				res, err := publisher.Publish(cmd.Context(), run, repo)
				if err != nil {
					return err
				}
				switch {
				case res.Skipped:
					fmt.Fprintf(a.stdout, "run %s verified, nothing published\n", run.ID)
				case res.Comment:
					fmt.Fprintf(a.stdout, "commented on #%d %s\n", res.Number, res.URL)
				default:
					fmt.Fprintf(a.stdout, "opened #%d %s\n", res.Number, res.URL)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&repo, "repo", "", "Repository owner/name (default: github.default_repo)")
	return cmd
}
