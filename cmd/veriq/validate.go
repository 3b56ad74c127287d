package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cgast/veriq/pkg/design"
	"github.com/cgast/veriq/pkg/manifest"
)

func (a *app) validateCmd() *cobra.Command {
	var (
		designs []string
		params  []string
	)
	cmd := &cobra.Command{
		Use:   "validate <manifest>",
		Short: "Check a manifest and, optionally, design files against its schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseParams(params)
			if err != nil {
				return err
			}
			p, err := a.loadProject(args[0], values)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%s: ok (%d models, %d calculations, %d requirements)\n",
				args[0], p.Registry.Len(), p.Calcs.Len(), p.Tree.Len())

			invalid := 0
			for _, path := range designs {
				violations, err := a.validateDesign(p, path)
				if err != nil {
					fmt.Fprintf(a.stdout, "%s: %v\n", path, err)
					invalid++
					continue
				}
				if violations.Valid() {
					fmt.Fprintf(a.stdout, "%s: valid %s\n", path, p.Schema.Model)
					continue
				}
				invalid++
				fmt.Fprintf(a.stdout, "%s: %d violation(s)\n", path, len(violations))
				for _, v := range violations {
					fmt.Fprintf(a.stdout, "  %s\n", v)
				}
			}
			if invalid > 0 {
				return withCode(exitInvalid, nil)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&designs, "design", "d", nil, "Design file to validate (repeatable)")
	cmd.Flags().StringArrayVar(&params, "param", nil, "Manifest parameter key=value (repeatable)")
	return cmd
}

// validateDesign loads a design file and validates it. A load error means
// the design could not be read at all.
func (a *app) validateDesign(p *manifest.Project, path string) (design.Violations, error) {
	_, violations, err := a.instantiate(p, path)
	return violations, err
}

func (a *app) instantiate(p *manifest.Project, path string) (*design.Instance, design.Violations, error) {
	raw, err := design.LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	inst, violations := p.Instantiate(raw, design.WithAllowUnknown(a.cfg.Validate.AllowUnknownFields))
	a.logger.Debug("design validated",
		zap.String("design", path),
		zap.String("model", p.Schema.Model),
		zap.Int("violations", len(violations)),
	)
	return inst, violations, nil
}
