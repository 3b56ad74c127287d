// Package export writes verification reports to TOML or JSON files.
//
// The TOML layout has a [run] table with the run metadata, a [model] table
// with the validated design values, a [calc] table with calculation results
// and a [verification] table with one entry per requirement. Values that
// are none are omitted because TOML has no null.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/cgast/veriq/pkg/verify"
)

// Format is an export file format.
type Format string

const (
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported export extension %q (want .toml or .json)", filepath.Ext(path))
	}
}

// WriteFile exports r to path in the format named by its extension.
func WriteFile(path string, r *verify.Report) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := Write(f, r, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write exports r to w.
func Write(w io.Writer, r *verify.Report, format Format) error {
	switch format {
	case FormatTOML:
		if err := toml.NewEncoder(w).Encode(Document(r)); err != nil {
			return fmt.Errorf("encode TOML: %w", err)
		}
		return nil
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		doc := struct {
			Verified bool           `json:"verified"`
			Summary  verify.Summary `json:"summary"`
			*verify.Report
		}{r.Verified(), r.Summary(), r}
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode JSON: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// Document builds the TOML export layout of r.
func Document(r *verify.Report) map[string]any {
	run := map[string]any{
		"model":      r.Model,
		"started_at": r.StartedAt,
		"duration":   r.Duration.String(),
		"verified":   r.Verified(),
	}
	if r.Source != "" {
		run["source"] = r.Source
	}
	if r.Root != nil {
		run["status"] = string(r.Root.Status)
	}
	s := r.Summary()
	run["summary"] = map[string]any{
		"total":   s.Total,
		"passed":  s.Passed,
		"failed":  s.Failed,
		"errored": s.Errored,
	}

	doc := map[string]any{"run": run}
	if m := dropNone(r.Values); m != nil {
		doc["model"] = m
	}

	calcs := map[string]any{}
	calcErrors := map[string]any{}
	for _, c := range r.Calculations {
		if c.Error != "" {
			calcErrors[c.Name] = c.Error
			continue
		}
		if v := dropNone(c.Value); v != nil {
			calcs[c.Name] = v
		}
	}
	if len(calcs) > 0 {
		doc["calc"] = calcs
	}
	if len(calcErrors) > 0 {
		doc["calc_errors"] = calcErrors
	}

	verification := map[string]any{}
	_ = r.Walk(func(n *verify.NodeReport, _ int) error {
		entry := map[string]any{"status": string(n.Status)}
		if n.Message != "" {
			entry["message"] = n.Message
		}
		if n.Description != "" {
			entry["description"] = n.Description
		}
		if n.Procedure != "" {
			entry["procedure"] = n.Procedure
		}
		verification[n.ID] = entry
		return nil
	})
	doc["verification"] = verification
	return doc
}

// dropNone removes nil members from nested maps. TOML has no null and
// rejects nil array elements, so a none list element is written as an empty
// table to keep list positions in line with $.x[i] paths.
func dropNone(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case map[string]any:
		if x == nil {
			return nil
		}
		out := make(map[string]any, len(x))
		for k, item := range x {
			if d := dropNone(item); d != nil {
				out[k] = d
			}
		}
		return out
	case []any:
		out := make([]any, 0, len(x))
		for _, item := range x {
			d := dropNone(item)
			if d == nil {
				d = map[string]any{}
			}
			out = append(out, d)
		}
		return out
	default:
		return v
	}
}
