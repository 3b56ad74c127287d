package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) schemaCmd() *cobra.Command {
	var (
		output string
		format string
		check  bool
	)
	cmd := &cobra.Command{
		Use:   "schema <manifest>",
		Short: "Derive the JSON schema of the root design model",
		Long: `Derives the schema of the manifest's root model and writes it as JSON
Schema. The default output is <manifest>.schema.json (or .schema.yaml).

With --check the schema on disk is compared with the derived one and the
command fails when they differ.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.loadProject(args[0], nil)
			if err != nil {
				return err
			}

			var data []byte
			switch format {
			case "json":
				data, err = p.Schema.MarshalIndentJSON()
			case "yaml":
				data, err = p.Schema.MarshalYAMLDocument()
			default:
				return withCode(exitUsage, fmt.Errorf("unknown format %q (expected json or yaml)", format))
			}
			if err != nil {
				return fmt.Errorf("encode schema: %w", err)
			}

			if output == "" {
				output = stem(args[0]) + ".schema." + format
			}
			if output == "-" {
				_, err := a.stdout.Write(data)
				return err
			}

			if check {
				current, err := os.ReadFile(output)
				if err != nil {
					return withCode(exitFailed, fmt.Errorf("schema check: %w", err))
				}
				if !bytes.Equal(bytes.TrimSpace(current), bytes.TrimSpace(data)) {
					return withCode(exitFailed, fmt.Errorf("schema %s is out of date; run veriq schema %s", output, args[0]))
				}
				fmt.Fprintf(a.stdout, "%s is up to date\n", output)
				return nil
			}

			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write schema: %w", err)
			}
			a.logger.Info("schema written", zap.String("path", output), zap.String("model", p.Schema.Model))
			fmt.Fprintf(a.stdout, "wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path, - for stdout")
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json or yaml")
	cmd.Flags().BoolVar(&check, "check", false, "Fail if the schema on disk differs")
	return cmd
}
