package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/cgast/veriq/pkg/manifest"
)

// loadProject loads and builds a manifest. Every failure is a declaration
// error.
func (a *app) loadProject(path string, params map[string]string) (*manifest.Project, error) {
	m, err := manifest.Load(path, params)
	if err != nil {
		return nil, withCode(exitUsage, fmt.Errorf("load manifest: %w", err))
	}
	p, err := manifest.Build(m, nil)
	if err != nil {
		var vr manifest.ValidationResult
		if errors.As(err, &vr) {
			return nil, withCode(exitUsage, fmt.Errorf("manifest %s is invalid:\n  %s", path, strings.Join(validationMessages(vr), "\n  ")))
		}
		return nil, withCode(exitUsage, fmt.Errorf("manifest %s: %w", path, err))
	}
	a.logger.Debug("manifest loaded",
		zap.String("manifest", path),
		zap.String("root", m.Root),
		zap.Int("requirements", p.Tree.Len()),
		zap.Int("calculations", p.Calcs.Len()),
	)
	return p, nil
}

// validationMessages extracts messages from a ValidationResult.
func validationMessages(vr manifest.ValidationResult) []string {
	msgs := make([]string, len(vr.Errors))
	for i, e := range vr.Errors {
		msgs[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return msgs
}

// stem returns path without its extension.
func stem(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// defaultDesign is the design file that sits next to a manifest.
func defaultDesign(manifestPath string) string {
	return stem(manifestPath) + ".design.toml"
}

// parseParams turns k=v pairs into a map.
func parseParams(pairs []string) (map[string]string, error) {
	params := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, withCode(exitUsage, fmt.Errorf("invalid --param %q, expected key=value", p))
		}
		params[strings.TrimSpace(k)] = v
	}
	return params, nil
}
